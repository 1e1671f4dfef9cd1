package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/spectra"
)

var (
	convertTo    string
	convertOut   string
	convertForce bool

	convertCmd = &cobra.Command{
		Use:   "convert <peak-file>...",
		Short: "Rewrite peak files as JSON documents or CSV matrices",
		Long: `Rewrite peak files in the other supported format. Each peak is written to
<out>/<peak-id>.<format>, with the id reduced to a safe file name.

Existing files are left alone unless --force is given.`,
		Example: `  # CSV exports to JSON peak documents
  peakpurity convert --to json --out docs/ exports/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runConvert,
	}
)

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "json", "output format: json or csv")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", ".", "output directory")
	convertCmd.Flags().BoolVar(&convertForce, "force", false, "overwrite existing files")

	RootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	loader := spectra.NewLoader("")
	peaks, err := loader.LoadAll(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range peaks {
		path, err := loader.Save(convertOut, p, convertTo, convertForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s -> %s\n", p.Path, path)
	}
	return nil
}
