// Package api serves purity analysis over HTTP and provides a client for it.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/peakpurity/internal/config"
	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/monitoring"
)

// ANSI escape codes for the access log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds a request body; a peak document is the largest payload.
const maxBodyBytes = 64 << 20

// Server handles the purity API. The database is optional; without it the
// run and verdict endpoints answer 503.
type Server struct {
	tuning   *config.TuningConfig
	db       *db.DB
	runs     *db.RunStore
	verdicts *db.VerdictStore
}

// NewServer returns a Server analysing with tuning as its base parameters.
// database may be nil.
func NewServer(tuning *config.TuningConfig, database *db.DB) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	s := &Server{tuning: tuning, db: database}
	if database != nil {
		s.runs = db.NewRunStore(database)
		s.verdicts = db.NewVerdictStore(database)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. Admin routes are attached separately by
// the caller so tests can exercise the API alone.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/purity", s.handleAnalyze)
	mux.HandleFunc("GET /api/params", s.handleParams)
	mux.HandleFunc("GET /api/version", s.handleVersion)

	mux.HandleFunc("POST /api/runs", s.withStore(s.handleCreateRun))
	mux.HandleFunc("GET /api/runs", s.withStore(s.handleListRuns))
	mux.HandleFunc("GET /api/runs/{id}", s.withStore(s.handleGetRun))
	mux.HandleFunc("DELETE /api/runs/{id}", s.withStore(s.handleDeleteRun))
	mux.HandleFunc("GET /api/runs/{id}/verdicts", s.withStore(s.handleRunVerdicts))
	mux.HandleFunc("POST /api/runs/{id}/audit", s.withStore(s.handleRunAudit))
	mux.HandleFunc("GET /api/verdicts/{id}", s.withStore(s.handleGetVerdict))
	return mux
}
