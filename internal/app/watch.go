package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/monitoring"
	"github.com/banshee-data/peakpurity/internal/purity"
	"github.com/banshee-data/peakpurity/internal/report"
	"github.com/banshee-data/peakpurity/internal/spectra"
	"github.com/banshee-data/peakpurity/internal/watch"
)

var (
	watchSettle  time.Duration
	watchArchive bool
	watchLabel   string

	watchCmd = &cobra.Command{
		Use:   "watch <dir>",
		Short: "Classify peak files as they appear in a directory",
		Long: `Watch a directory and classify every peak file written into it.

A file is analysed once it has been quiet for the settle period. Files
already present when the watch starts are analysed first. With --archive,
analysed files move to processed/ and unreadable ones to failed/ inside the
watched directory.

With --db a run is opened when the watch starts and every verdict is stored
under it. Press Ctrl+C to stop.`,
		Example: `  # Print verdicts as files arrive
  peakpurity watch /data/exports

  # Store under a run and tidy the export directory
  peakpurity watch --db purity.db --label "overnight" --archive /data/exports`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "quiet period before a file is read")
	watchCmd.Flags().BoolVar(&watchArchive, "archive", false, "move handled files into processed/ or failed/")
	watchCmd.Flags().StringVar(&watchLabel, "label", "", "label for the stored run")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	tuning, err := loadTuning()
	if err != nil {
		return err
	}
	analyzer, err := purity.NewAnalyzer(tuning.Params())
	if err != nil {
		return err
	}
	database, err := openDB(false)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	h, err := newPeakHandler(cmd.OutOrStdout(), spectra.NewLoader(dir), analyzer, database, watchLabel)
	if err != nil {
		return err
	}
	if h.runID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Storing verdicts under run %s\n", h.runID)
	}

	w, err := watch.New(dir, h.handle, watch.Options{Settle: watchSettle, Archive: watchArchive})
	if err != nil {
		return err
	}
	return w.Run(commandContext(cmd))
}

// peakHandler analyses one watched file and optionally stores the verdict.
type peakHandler struct {
	mu       sync.Mutex
	out      io.Writer
	r        report.Renderer
	loader   *spectra.Loader
	analyzer *purity.Analyzer
	verdicts *db.VerdictStore
	runID    string
}

func newPeakHandler(out io.Writer, loader *spectra.Loader, a *purity.Analyzer, database *db.DB, label string) (*peakHandler, error) {
	h := &peakHandler{out: out, r: report.ForWriter(out), loader: loader, analyzer: a}
	if database == nil {
		return h, nil
	}
	run := &db.Run{Label: label}
	if err := db.NewRunStore(database).Create(run, a.Params()); err != nil {
		return nil, err
	}
	h.runID = run.RunID
	h.verdicts = db.NewVerdictStore(database)
	return h, nil
}

// handle returns an error only when the file could not be read or the
// verdict could not be stored. An indeterminate peak is a result, not a
// failure.
func (h *peakHandler) handle(_ context.Context, path string) error {
	peak, err := h.loader.Load(path)
	if err != nil {
		return err
	}
	verdict, analyzeErr := h.analyzer.Analyze(peak)
	if analyzeErr != nil && !purity.IsIndeterminate(analyzeErr) {
		return analyzeErr
	}
	monitoring.Debugf("%s: %d retained columns", peak.ID, len(verdict.Trace.RetainedColumns))

	h.mu.Lock()
	report.Fprint(h.out, h.r.Line(report.Row{PeakID: peak.ID, Verdict: verdict, Err: analyzeErr}))
	h.mu.Unlock()

	if h.verdicts == nil {
		return nil
	}
	rec, err := db.NewVerdictRecord(h.runID, peak, verdict, analyzeErr, h.analyzer.Params())
	if err != nil {
		return err
	}
	return h.verdicts.Insert(rec)
}
