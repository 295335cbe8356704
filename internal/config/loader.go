package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/apple/pkl-go/pkl"

	"github.com/descry-io/descry/internal/secrets"
)

// Load evaluates a pkl config file, applies defaults and environment
// overrides, and validates the result.
func Load(ctx context.Context, path string) (*Config, error) {
	evaluator, err := pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg Config
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(path), &cfg); err != nil {
		return nil, fmt.Errorf("failed to evaluate config %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	ApplyEnvOverrides(&cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Network.VpcCidr == "" {
		cfg.Network.VpcCidr = "10.0.0.0/16"
	}
	if len(cfg.Network.SubnetCidrs) == 0 {
		cfg.Network.SubnetCidrs = []string{"10.0.1.0/24", "10.0.2.0/24"}
	}
	if cfg.Image.DefaultTag == "" {
		cfg.Image.DefaultTag = "latest"
	}
	if cfg.Database.Engine == "" {
		cfg.Database.Engine = "postgres"
	}
	if cfg.Database.InstanceClass == "" {
		cfg.Database.InstanceClass = "db.t4g.micro"
	}
	if cfg.Database.AllocatedStorage == 0 {
		cfg.Database.AllocatedStorage = 20
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "app"
	}
	if cfg.Database.Username == "" {
		cfg.Database.Username = "app"
	}
	if cfg.Service.ContainerPort == 0 {
		cfg.Service.ContainerPort = 8080
	}
	if cfg.Service.Cpu == 0 {
		cfg.Service.Cpu = 256
	}
	if cfg.Service.Memory == 0 {
		cfg.Service.Memory = 512
	}
	if cfg.Service.DesiredCount == 0 {
		cfg.Service.DesiredCount = 1
	}
	if cfg.Instance.RootVolumeGb == 0 {
		cfg.Instance.RootVolumeGb = 20
	}
}

// ApplyEnvOverrides copies DESCRY_SECRET_* environment variables into the
// secrets map so tokens never have to live in checked-in config. An env
// value wins over the file value for the same name.
func ApplyEnvOverrides(cfg *Config, getenv func(string) string) {
	for _, name := range secrets.Recognized {
		val := getenv(EnvVar(name))
		if val == "" {
			continue
		}
		if cfg.Secrets == nil {
			cfg.Secrets = make(map[string]string)
		}
		cfg.Secrets[name] = val
	}
}

// EnvVar maps a recognized secret name to its override variable:
// databasePassword -> DESCRY_SECRET_DATABASE_PASSWORD.
func EnvVar(name string) string {
	var b strings.Builder
	b.WriteString("DESCRY_SECRET_")
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
