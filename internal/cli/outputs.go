package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/descry-io/descry/internal/emit"
)

var outputsCmd = &cobra.Command{
	Use:   "outputs <descriptor.json>",
	Short: "Print the outputs of a built descriptor",
	Long: `Reads a descriptor previously built with --format json and prints
its outputs. Engine-owned values appear as ptr:// references until the
engine has applied the descriptor.`,
	Args: cobra.ExactArgs(1),
	RunE: runOutputs,
}

func runOutputs(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	descriptor, err := emit.DecodeJSON(f)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(descriptor.Outputs))
	for k := range descriptor.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	for _, k := range keys {
		fmt.Fprintf(out, "%s = %v\n", k, descriptor.Outputs[k])
	}
	return nil
}
