package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [config]",
	Short: "Run read-only preflight checks",
	Long: `Verifies the external prerequisites a descriptor depends on: the
Cloudflare API token and zone, the ACM certificate for the fargate-alb
topology, and the ECR repository. All checks are read-only; checks
without credentials are skipped.`,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path, err := resolveConfigPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	verifier, err := verify.New(ctx, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range verifier.Run(ctx) {
		status := "ok"
		if !res.OK {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(out, "%-22s %-5s %s\n", res.Name, status, res.Detail)
	}

	if failed > 0 {
		return fmt.Errorf("%d preflight check(s) failed", failed)
	}
	return nil
}
