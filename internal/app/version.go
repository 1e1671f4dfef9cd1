package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Current())
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
