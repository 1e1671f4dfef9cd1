package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/db"
)

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage the verdict database schema",
		Long: `Manage the verdict database schema.

Commands that open the database with --db migrate it to the latest version
automatically; these subcommands are for inspecting or repairing the
schema by hand.`,
		Example: `  peakpurity migrate version --db purity.db
  peakpurity migrate down --db purity.db
  peakpurity migrate force 1 --db purity.db`,
	}

	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, args []string) error {
			if err := d.MigrateUp(); err != nil {
				return err
			}
			return printMigrateVersion(cmd, d)
		}),
	}

	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, args []string) error {
			if err := d.MigrateDown(); err != nil {
				return err
			}
			return printMigrateVersion(cmd, d)
		}),
	}

	migrateVersionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, args []string) error {
			return printMigrateVersion(cmd, d)
		}),
	}

	migrateForceCmd = &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations (clears the dirty flag)",
		Args:  cobra.ExactArgs(1),
		RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			if err := d.MigrateForce(v); err != nil {
				return err
			}
			return printMigrateVersion(cmd, d)
		}),
	}
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd, migrateForceCmd)

	RootCmd.AddCommand(migrateCmd)
}

// withRawDB opens --db without migrating it.
func withRawDB(f func(cmd *cobra.Command, d *db.DB, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return errNoDB
		}
		d, err := db.OpenDB(dbPath)
		if err != nil {
			return err
		}
		defer d.Close()
		return f(cmd, d, args)
	}
}

func printMigrateVersion(cmd *cobra.Command, d *db.DB) error {
	v, dirty, err := d.MigrateVersion()
	if err != nil {
		return err
	}
	latest, err := db.LatestMigrationVersion()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d of %d (%s)\n", v, latest, state)
	return nil
}
