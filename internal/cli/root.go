package cli

import (
	"github.com/spf13/cobra"

	"github.com/descry-io/descry/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "descry",
	Short: "Deployment descriptor builder",
	Long: `Descry builds declarative deployment descriptors for the platform's
three topologies (ec2-tunnel, fargate-alb, hybrid).

It resolves the deployable image tag from git history, materializes
supplied secrets as SSM parameter declarations, and assembles the
AWS and Cloudflare resource graph in dependency order. The resulting
descriptor is handed to the provisioning engine; descry itself never
mutates cloud state.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(secretsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(versionCmd)
}
