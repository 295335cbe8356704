package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/emit"
	"github.com/descry-io/descry/internal/image"
	"github.com/descry-io/descry/internal/logging"
	"github.com/descry-io/descry/internal/stack"
)

var (
	buildOutFile       string
	buildFormat        string
	buildCheckImage    bool
	buildRequirePinned bool
	buildOffline       bool
)

var buildCmd = &cobra.Command{
	Use:   "build [config]",
	Short: "Build the deployment descriptor",
	Long: `Builds the complete deployment descriptor from a pkl config file:
resolves the image tag, materializes supplied secrets, assembles the
resource graph for the configured topology and validates it is acyclic.

The descriptor is written to stdout unless --out is given. Identical
inputs produce byte-identical descriptors.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutFile, "out", "o", "", "Write the descriptor to a file instead of stdout")
	buildCmd.Flags().StringVar(&buildFormat, "format", "pkl", "Output format (pkl, json)")
	buildCmd.Flags().BoolVar(&buildCheckImage, "check-image", false, "Verify the resolved image exists in ECR or the local daemon")
	buildCmd.Flags().BoolVar(&buildRequirePinned, "require-pinned", false, "Fail unless the tag resolves to an override or a commit")
	buildCmd.Flags().BoolVar(&buildOffline, "offline", false, "Skip all AWS lookups; defer account-level values to the engine")
	buildCmd.MarkFlagsMutuallyExclusive("check-image", "offline")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path, err := resolveConfigPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tag := resolveTag(cfg)
	if buildRequirePinned && !tag.Pinned() {
		return fmt.Errorf("tag %q resolved from %s; a pinned tag is required", tag.Tag, tag.Source)
	}

	if buildCheckImage {
		checkImage(cmd, cfg, tag)
	}

	lookups := newLookups(ctx, cfg.Region, buildOffline)

	descriptor, err := stack.New(cfg, lookups, tag).Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build descriptor: %w", err)
	}

	var out []byte
	switch buildFormat {
	case "pkl":
		out = []byte(emit.Pkl(descriptor))
	case "json":
		out, err = emit.JSON(descriptor)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (expected pkl or json)", buildFormat)
	}

	if buildOutFile == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(buildOutFile, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", buildOutFile, err)
	}
	logging.Info("descriptor written",
		"path", buildOutFile,
		"resources", len(descriptor.Resources),
		"tag", tag.Tag,
		"tagSource", string(tag.Source))
	return nil
}

// checkImage warns when the resolved image cannot be found; it never fails
// the build because the push may simply not have happened yet.
func checkImage(cmd *cobra.Command, cfg *config.Config, tag image.Resolution) {
	ctx := cmd.Context()

	checker, err := image.NewChecker(ctx, cfg.Region)
	if err != nil {
		logging.Warn("image check skipped", "error", err)
		return
	}
	if !checker.Exists(ctx, cfg.Image.Repository, tag.Tag) {
		logging.Warn("image not found in ECR or the local daemon; push it before apply",
			"repository", cfg.Image.Repository, "tag", tag.Tag)
	}
}
