package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/report"
)

var (
	runsLimit int

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Example: `  peakpurity runs --db purity.db
  peakpurity runs show --db purity.db <run-id>
  peakpurity runs history --db purity.db run42-peak3`,
		Args: cobra.NoArgs,
		RunE: runRunsList,
	}

	runsShowCmd = &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the verdicts of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsShow,
	}

	runsHistoryCmd = &cobra.Command{
		Use:   "history <peak-id>",
		Short: "Print every stored verdict for one peak across runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsHistory,
	}
)

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 for all)")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsHistoryCmd)

	RootCmd.AddCommand(runsCmd)
}

func formatStamp(ns int64) string {
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	database, err := openDB(true)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := db.NewRunStore(database).List(runsLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs stored.")
		return nil
	}
	verdicts := db.NewVerdictStore(database)
	fmt.Fprintf(out, "%-36s  %-20s  %-24s  %s\n", "Run", "Created", "Label", "Pure/Impure/Indet.")
	for _, run := range runs {
		sum, err := verdicts.Summarize(run.RunID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-36s  %-20s  %-24s  %d/%d/%d\n",
			run.RunID, formatStamp(run.CreatedAt), run.Label, sum.Pure, sum.Impure, sum.Indeterminate)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	database, err := openDB(true)
	if err != nil {
		return err
	}
	defer database.Close()

	run, err := db.NewRunStore(database).Get(args[0])
	if err != nil {
		return err
	}
	recs, err := db.NewVerdictStore(database).ListByRun(run.RunID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s %q created %s\n", run.RunID, run.Label, formatStamp(run.CreatedAt))
	r := report.ForWriter(out)
	rows := rowsFromRecords(recs)
	report.Fprint(out, r.BatchTable(rows))
	report.Fprint(out, r.Summary(report.Tally(rows)))
	return nil
}

func runRunsHistory(cmd *cobra.Command, args []string) error {
	database, err := openDB(true)
	if err != nil {
		return err
	}
	defer database.Close()

	recs, err := db.NewVerdictStore(database).ListByPeak(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintf(out, "No verdicts stored for peak %s.\n", args[0])
		return nil
	}
	for _, rec := range recs {
		outcome := "impure"
		switch {
		case rec.Indeterminate():
			outcome = "indeterminate (" + rec.ErrorKind + ")"
		case rec.Pure:
			outcome = "pure"
		}
		fmt.Fprintf(out, "%s  run %s  %s  rule %s  sha256 %.12s\n",
			formatStamp(rec.CreatedAt), rec.RunID, outcome, rec.Rule, rec.MatrixSHA256)
	}
	return nil
}

// rowsFromRecords rebuilds table rows from stored verdicts.
func rowsFromRecords(recs []*db.VerdictRecord) []report.Row {
	rows := make([]report.Row, len(recs))
	for i, rec := range recs {
		rows[i] = report.Row{PeakID: rec.PeakID}
		if rec.Indeterminate() {
			rows[i].Err = errors.New(rec.Error)
			rows[i].Kind = rec.ErrorKind
			continue
		}
		rows[i].Verdict.Pure = rec.Pure
		rows[i].Verdict.Rule = rec.Rule
		rows[i].Verdict.Signals = rec.Signals
	}
	return rows
}
