// Package app implements the peakpurity command line.
package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/config"
	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/monitoring"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	// RootCmd is the root command for peakpurity
	RootCmd = &cobra.Command{
		Use:   "peakpurity",
		Short: "Classify chromatographic peaks as pure or co-eluting",
		Long: `peakpurity decides whether a diode-array chromatographic peak holds one
compound or several co-eluting ones, from the absorbance matrix over the
peak's time window.

Each peak is scored on five signals (Agilent noise-aware similarity ratio,
unimodality of the correlation profile, PCA explained variance, minimum and
mean correlation to the apex spectrum) and a fixed decision tree turns those
signals into a verdict.

Verdicts can be stored in a SQLite database grouped into runs, audited later
against the original files, and served over HTTP.`,
		Example: `  # Classify two peaks
  peakpurity analyze peak1.json peak2.csv

  # Store the verdicts of a batch under a labelled run
  peakpurity analyze --db purity.db --label "batch 7" exports/*.json

  # Check stored verdicts still reproduce
  peakpurity audit --db purity.db --run <run-id> exports/*.json

  # Serve the HTTP API
  peakpurity serve --db purity.db --listen :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			monitoring.SetVerbose(verbose)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database for runs and verdicts")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "tuning JSON file (default: built-in parameters)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log per-peak diagnostics")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

var errNoDB = errors.New("this command needs --db")

// loadTuning returns the --config file, or built-in defaults when unset.
func loadTuning() (*config.TuningConfig, error) {
	if configPath == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(configPath)
}

// openDB opens and migrates the --db database. It returns nil, nil when
// --db is unset and the database is optional.
func openDB(required bool) (*db.DB, error) {
	if dbPath == "" {
		if required {
			return nil, errNoDB
		}
		return nil, nil
	}
	return db.NewDB(dbPath)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
