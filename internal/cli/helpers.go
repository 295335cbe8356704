package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/descry-io/descry/internal/awsmeta"
	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/image"
	"github.com/descry-io/descry/internal/logging"
)

const defaultConfigFile = "descry.pkl"

// resolveConfigPath picks the config file from an optional positional
// argument: a directory means "the default file inside it".
func resolveConfigPath(args []string) (string, error) {
	if len(args) == 0 {
		return defaultConfigFile, nil
	}

	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
	}
	if info.IsDir() {
		return filepath.Join(absPath, defaultConfigFile), nil
	}
	return absPath, nil
}

// newLookups returns live AWS lookups, degrading to static offline lookups
// when requested or when no credential chain is available.
func newLookups(ctx context.Context, region string, offline bool) *awsmeta.Lookups {
	if offline {
		return awsmeta.Static(region, "", "", nil)
	}
	lookups, err := awsmeta.New(ctx, region)
	if err != nil {
		logging.Warn("AWS lookups unavailable, continuing offline", "error", err)
		return awsmeta.Static(region, "", "", nil)
	}
	return lookups
}

// resolveTag runs image tag resolution from the config's image settings.
func resolveTag(cfg *config.Config) image.Resolution {
	return image.Resolve(cfg.Image.TagOverride, cfg.Image.ProjectPath, cfg.Image.FallbackPath, cfg.Image.DefaultTag)
}
