package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/purity"
	"github.com/banshee-data/peakpurity/internal/report"
	"github.com/banshee-data/peakpurity/internal/spectra"
)

var (
	auditRunID string

	auditCmd = &cobra.Command{
		Use:   "audit --run <run-id> <peak-file>...",
		Short: "Re-analyse a stored run and report drift",
		Long: `Re-analyse every verdict of a stored run against the given peak files,
using the parameters each verdict was stored with, and report any signal
that differs.

Files are matched to verdicts by peak ID. Verdicts with no matching file
are skipped. The pipeline is deterministic, so any drift means the file,
the bounds or the analysis code changed since the verdict was stored.
The command fails when drift is found.`,
		Example: `  peakpurity audit --db purity.db --run 3f2c... exports/*.json`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    runAudit,
	}
)

func init() {
	auditCmd.Flags().StringVar(&auditRunID, "run", "", "run ID to audit (required)")
	_ = auditCmd.MarkFlagRequired("run")

	RootCmd.AddCommand(auditCmd)
}

var errAuditDrift = errors.New("audit found drift")

func runAudit(cmd *cobra.Command, args []string) error {
	database, err := openDB(true)
	if err != nil {
		return err
	}
	defer database.Close()

	if _, err := db.NewRunStore(database).Get(auditRunID); err != nil {
		return err
	}
	peaks, err := spectra.NewLoader("").LoadAll(args)
	if err != nil {
		return err
	}
	byID := spectra.IndexByID(peaks)

	results, skipped, err := db.AuditRun(db.NewVerdictStore(database), auditRunID, func(rec *db.VerdictRecord) (purity.PeakSource, error) {
		if p, ok := byID[rec.PeakID]; ok {
			return p, nil
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r := report.ForWriter(out)
	report.Fprint(out, r.AuditTable(results))

	dirty := 0
	for _, res := range results {
		if !res.Clean() {
			dirty++
		}
	}
	fmt.Fprintf(out, "%d audited, %d with drift, %d skipped (no matching file)\n", len(results), dirty, skipped)
	if dirty > 0 {
		return fmt.Errorf("%w in %d of %d verdicts", errAuditDrift, dirty, len(results))
	}
	return nil
}
