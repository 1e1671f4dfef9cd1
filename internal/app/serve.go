package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/peakpurity/internal/api"
	"github.com/banshee-data/peakpurity/internal/monitoring"
)

var (
	serveListen string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the purity HTTP API",
		Long: `Serve the purity HTTP API.

Without --db only analysis endpoints are available; the run and verdict
endpoints answer 503. With --db the admin routes are mounted as well:
/debug/tailsql/ for read-only SQL against the verdict store and
/debug/backup for a gzipped snapshot.`,
		Example: `  peakpurity serve --listen :8080 --db purity.db --config dad2.json`,
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "listen address")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	tuning, err := loadTuning()
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

	mux := api.NewServer(tuning, database).ServeMux()
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			return fmt.Errorf("attach admin routes: %w", err)
		}
	}

	ln, err := net.Listen("tcp", serveListen)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())
	return serveUntilDone(commandContext(cmd), ln, api.LoggingMiddleware(mux))
}

// serveUntilDone serves h on ln until ctx is cancelled, then shuts down
// gracefully with a short deadline.
func serveUntilDone(ctx context.Context, ln net.Listener, h http.Handler) error {
	server := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return <-errc
}
