package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/descry-io/descry/internal/config"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [config]",
	Short: "Resolve and print the image tag",
	Long: `Resolves the image tag the build would use, without building the
descriptor. Precedence: explicit override, git commit at the project
path, git commit at the fallback path, then the configured default.`,
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tag := resolveTag(cfg)
	fmt.Fprintf(cmd.OutOrStdout(), "%s:%s (%s)\n", cfg.Image.Repository, tag.Tag, tag.Source)
	return nil
}
