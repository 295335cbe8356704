package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets [config]",
	Short: "List recognized secrets and their status",
	Long: `Lists the recognized secret names, whether each has a value from
config or environment, and the environment variable that overrides it.
Secret values are never printed.`,
	RunE: runSecrets,
}

func runSecrets(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, name := range secrets.Recognized {
		status := "unset"
		if secrets.Has(cfg.Secrets, name) {
			status = "set"
		}
		fmt.Fprintf(out, "%-20s %-6s %s\n", name, status, config.EnvVar(name))
	}
	return nil
}
