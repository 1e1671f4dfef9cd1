package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/api"
	"github.com/banshee-data/peakpurity/internal/config"
	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/monitoring"
	"github.com/banshee-data/peakpurity/internal/purity"
	"github.com/banshee-data/peakpurity/internal/report"
	"github.com/banshee-data/peakpurity/internal/spectra"
)

var (
	analyzeWorkers int
	analyzeLabel   string
	analyzeDetail  bool
	analyzeTrace   bool
	analyzeRemote  string

	analyzeCmd = &cobra.Command{
		Use:   "analyze <peak-file>...",
		Short: "Classify peak files",
		Long: `Classify one or more peak files (.json peak documents or .csv absorbance
matrices) and print a verdict table.

Peaks are analysed in parallel. A peak that cannot be classified (bounds
outside the run, a flat window, too few columns) is reported as
indeterminate and does not stop the batch.

With --db the verdicts are stored under a new run, including the
indeterminate ones, so the batch can be audited later.`,
		Example: `  # Table of verdicts
  peakpurity analyze exports/*.json

  # Full signal breakdown for one peak
  peakpurity analyze --detail --trace peak3.json

  # Persist under a labelled run with instrument tuning
  peakpurity analyze --db purity.db --config dad2.json --label "batch 7" exports/*.csv

  # Ask a running server instead of analysing locally
  peakpurity analyze --remote http://lab-server:8080 peak3.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}
)

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeWorkers, "workers", "w", -1, "parallel workers (default: from --config, else one per CPU)")
	analyzeCmd.Flags().StringVar(&analyzeLabel, "label", "", "label for the stored run")
	analyzeCmd.Flags().BoolVar(&analyzeDetail, "detail", false, "print every signal against its threshold")
	analyzeCmd.Flags().BoolVar(&analyzeTrace, "trace", false, "print noise and cropping diagnostics (implies --detail)")
	analyzeCmd.Flags().StringVar(&analyzeRemote, "remote", "", "base URL of a peakpurity server to analyse on")

	RootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeRemote != "" && dbPath != "" {
		return errors.New("--remote and --db cannot be combined; store on the server instead")
	}
	tuning, err := loadTuning()
	if err != nil {
		return err
	}
	params := tuning.Params()
	workers := tuning.GetWorkers()
	if analyzeWorkers >= 0 {
		workers = analyzeWorkers
	}

	peaks, err := spectra.NewLoader("").LoadAll(args)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	var results []purity.Result
	if analyzeRemote != "" {
		results = analyzeRemotely(ctx, api.NewClient(analyzeRemote, nil), peaks, tuning)
	} else {
		sources := make([]purity.PeakSource, len(peaks))
		for i, p := range peaks {
			sources[i] = p
		}
		results, err = purity.AnalyzeBatch(ctx, sources, params, workers)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	for _, res := range results {
		if res.Err == nil {
			monitoring.Debugf("%s: rule %s, %d retained columns, noise variance %.3g",
				res.PeakID, res.Verdict.Rule, len(res.Verdict.Trace.RetainedColumns), res.Verdict.Trace.NoiseVariance)
		}
	}

	out := cmd.OutOrStdout()
	r := report.ForWriter(out)
	rows := report.RowsFromResults(results)
	if analyzeDetail || analyzeTrace {
		printDetail(out, r, rows, params)
	} else {
		report.Fprint(out, r.BatchTable(rows))
	}
	report.Fprint(out, r.Summary(report.Tally(rows)))

	if dbPath != "" {
		runID, err := storeBatch(peaks, results, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Stored run %s\n", runID)
	}
	return ctx.Err()
}

func printDetail(w io.Writer, r report.Renderer, rows []report.Row, p purity.Params) {
	for _, row := range rows {
		if row.Err != nil {
			fmt.Fprintf(w, "Peak %s: indeterminate: %v\n", row.PeakID, row.Err)
			continue
		}
		report.Fprint(w, r.Verdict(row.PeakID, row.Verdict, p))
		if analyzeTrace {
			report.Fprint(w, r.Trace(row.Verdict.Trace))
		}
	}
}

// storeBatch records every analysed peak under a new run. Peaks skipped by
// cancellation are not stored.
func storeBatch(peaks []*spectra.Peak, results []purity.Result, p purity.Params) (string, error) {
	database, err := openDB(true)
	if err != nil {
		return "", err
	}
	defer database.Close()

	run := &db.Run{Label: analyzeLabel}
	if err := db.NewRunStore(database).Create(run, p); err != nil {
		return "", err
	}
	verdicts := db.NewVerdictStore(database)
	for i, res := range results {
		if res.Err != nil && !purity.IsIndeterminate(res.Err) {
			continue
		}
		rec, err := db.NewVerdictRecord(run.RunID, peaks[i], res.Verdict, res.Err, p)
		if err != nil {
			return "", err
		}
		if err := verdicts.Insert(rec); err != nil {
			return "", err
		}
	}
	return run.RunID, nil
}

// analyzeRemotely posts peaks to a server one at a time. Per-peak failures,
// including the server's 422 for indeterminate peaks, land in Result.Err.
// The --config overrides travel with each request; without --config the
// server's own parameters apply.
func analyzeRemotely(ctx context.Context, c *api.Client, peaks []*spectra.Peak, tuning *config.TuningConfig) []purity.Result {
	results := make([]purity.Result, len(peaks))
	for i, p := range peaks {
		results[i] = purity.Result{Index: i, PeakID: p.ID}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		req := &api.AnalyzeRequest{Document: *p.Document()}
		if configPath != "" {
			req.Params = tuning
		}
		resp, err := c.Analyze(ctx, req)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Verdict = purity.Verdict{Pure: resp.Pure, Rule: resp.Rule, Signals: resp.Signals}
	}
	return results
}
