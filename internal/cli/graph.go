package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/graph"
	"github.com/descry-io/descry/internal/stack"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph [config]",
	Short: "Output the dependency graph",
	Long: `Builds the descriptor and renders its resource dependency graph.
Pipe the DOT output to 'dot' to generate an image:

  descry graph | dot -Tpng > graph.png

The mermaid format renders directly in markdown.`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphFormat, "format", "dot", "Output format (dot, mermaid)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path, err := resolveConfigPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Graph shape never depends on account-level values, so lookups stay
	// offline here.
	lookups := newLookups(ctx, cfg.Region, true)

	descriptor, err := stack.New(cfg, lookups, resolveTag(cfg)).Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build descriptor: %w", err)
	}

	var format graph.Format
	switch graphFormat {
	case "dot":
		format = graph.FormatDOT
	case "mermaid":
		format = graph.FormatMermaid
	default:
		return fmt.Errorf("unknown format %q (expected dot or mermaid)", graphFormat)
	}

	out, err := graph.Render(descriptor, format)
	if err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
