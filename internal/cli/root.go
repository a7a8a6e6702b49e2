package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "metricbench",
	Short:   "Lock-free metrics pipeline and its benchmark harness",
	Version: version,
	Long: `Metricbench exercises a lock-free metrics pipeline: writer tasks update
atomic metric cells, a packer walks the registry into binary snapshots on a
fixed interval, and a reader decodes them on the other side of a bounded
channel. The bench command measures end-to-end throughput and writer-call
latency against a bare atomic-counter baseline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func init() {
	RootCmd.AddCommand(benchCmd)
}
