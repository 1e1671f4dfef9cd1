package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/peakpurity/internal/config"
	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/httputil"
	"github.com/banshee-data/peakpurity/internal/monitoring"
	"github.com/banshee-data/peakpurity/internal/purity"
	"github.com/banshee-data/peakpurity/internal/spectra"
	"github.com/banshee-data/peakpurity/internal/version"
)

// AnalyzeRequest is a peak document plus optional overrides. When RunID (or
// the run query parameter) is set the verdict is stored under that run and the run's parameters are the
// base the overrides apply to.
type AnalyzeRequest struct {
	spectra.Document
	Params       *config.TuningConfig `json:"params,omitempty"`
	RunID        string               `json:"run_id,omitempty"`
	IncludeTrace bool                 `json:"include_trace,omitempty"`
}

// AnalyzeResponse is the verdict for one peak.
type AnalyzeResponse struct {
	PeakID    string         `json:"peak_id"`
	Pure      bool           `json:"pure"`
	Rule      purity.Rule    `json:"rule"`
	Signals   purity.Signals `json:"signals"`
	Trace     *purity.Trace  `json:"trace,omitempty"`
	Params    purity.Params  `json:"params"`
	VerdictID string         `json:"verdict_id,omitempty"`
}

// CreateRunRequest opens a run for later verdicts.
type CreateRunRequest struct {
	Label  string               `json:"label"`
	Params *config.TuningConfig `json:"params,omitempty"`
}

// RunResponse is a run with its verdict counts.
type RunResponse struct {
	*db.Run
	Summary db.RunSummary `json:"summary"`
}

// AuditRequest carries the peaks a run's verdicts are checked against,
// matched by peak ID.
type AuditRequest struct {
	Peaks []spectra.Document `json:"peaks"`
}

// AuditResponse lists per-verdict audit results.
type AuditResponse struct {
	Results []*db.AuditResult `json:"results"`
	Skipped int               `json:"skipped"`
	Clean   bool              `json:"clean"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if q := r.URL.Query().Get("run"); q != "" {
		if req.RunID != "" && req.RunID != q {
			httputil.BadRequest(w, "run query parameter and run_id disagree")
			return
		}
		req.RunID = q
	}

	base := s.tuning
	var run *db.Run
	if req.RunID != "" {
		if s.runs == nil {
			httputil.ServiceUnavailable(w, "no verdict database attached")
			return
		}
		var err error
		run, err = s.runs.Get(req.RunID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		runParams, err := run.Params()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		base = config.FromParams(runParams)
	}
	tuning := base.Merge(req.Params)
	if err := tuning.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	params := tuning.Params()

	peak, err := req.Document.Peak()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	verdict, analyzeErr := purity.Analyze(peak, params)
	if analyzeErr != nil && !purity.IsIndeterminate(analyzeErr) {
		httputil.InternalServerError(w, analyzeErr.Error())
		return
	}

	resp := AnalyzeResponse{PeakID: peak.ID, Params: params}
	if run != nil {
		rec, err := db.NewVerdictRecord(run.RunID, peak, verdict, analyzeErr, params)
		if err == nil {
			err = s.verdicts.Insert(rec)
		}
		if err != nil {
			monitoring.Logf("store verdict for peak %q: %v", peak.ID, err)
			httputil.InternalServerError(w, "failed to store verdict")
			return
		}
		resp.VerdictID = rec.VerdictID
	}

	if analyzeErr != nil {
		httputil.Unprocessable(w, purity.ErrorKind(analyzeErr), analyzeErr.Error())
		return
	}
	resp.Pure = verdict.Pure
	resp.Rule = verdict.Rule
	resp.Signals = verdict.Signals
	if req.IncludeTrace {
		resp.Trace = &verdict.Trace
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.tuning.Params())
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Current())
}

// withStore answers 503 when no database is attached.
func (s *Server) withStore(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.db == nil {
			httputil.ServiceUnavailable(w, "no verdict database attached")
			return
		}
		h(w, r)
	}
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	tuning := s.tuning.Merge(req.Params)
	if err := tuning.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	run := &db.Run{Label: req.Label}
	if err := s.runs.Create(run, tuning.Params()); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	runs, err := s.runs.List(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []*db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	sum, err := s.verdicts.Summarize(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, RunResponse{Run: run, Summary: sum})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.Delete(r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunVerdicts(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := s.runs.Get(runID); err != nil {
		s.storeError(w, err)
		return
	}
	recs, err := s.verdicts.ListByRun(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if recs == nil {
		recs = []*db.VerdictRecord{}
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) handleRunAudit(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := s.runs.Get(runID); err != nil {
		s.storeError(w, err)
		return
	}
	var req AuditRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	peaks := make([]*spectra.Peak, 0, len(req.Peaks))
	for i := range req.Peaks {
		p, err := req.Peaks[i].Peak()
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("peak %d: %v", i, err))
			return
		}
		peaks = append(peaks, p)
	}
	byID := spectra.IndexByID(peaks)

	results, skipped, err := db.AuditRun(s.verdicts, runID, func(rec *db.VerdictRecord) (purity.PeakSource, error) {
		if p, ok := byID[rec.PeakID]; ok {
			return p, nil
		}
		return nil, nil
	})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	resp := AuditResponse{Results: results, Skipped: skipped, Clean: true}
	if resp.Results == nil {
		resp.Results = []*db.AuditResult{}
	}
	for _, res := range results {
		if !res.Clean() {
			resp.Clean = false
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleGetVerdict(w http.ResponseWriter, r *http.Request) {
	rec, err := s.verdicts.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, rec)
}
