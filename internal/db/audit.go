package db

import (
	"fmt"

	"github.com/banshee-data/peakpurity/internal/monitoring"
	"github.com/banshee-data/peakpurity/internal/purity"
)

// SignalDrift is one signal whose recomputed value differs from the stored one.
type SignalDrift struct {
	Signal     purity.Signal `json:"signal"`
	Stored     float64       `json:"stored"`
	Recomputed float64       `json:"recomputed"`
}

// AuditResult compares a stored verdict against a fresh analysis of its input.
type AuditResult struct {
	VerdictID        string        `json:"verdict_id"`
	PeakID           string        `json:"peak_id"`
	FingerprintMatch bool          `json:"fingerprint_match"`
	BoundsMatch      bool          `json:"bounds_match"`
	Drift            []SignalDrift `json:"drift,omitempty"`
	VerdictChanged   bool          `json:"verdict_changed"`
	StoredError      string        `json:"stored_error,omitempty"`
	RecomputedError  string        `json:"recomputed_error,omitempty"`
}

// Clean reports whether the recomputation reproduced the stored verdict
// exactly on the same input.
func (a *AuditResult) Clean() bool {
	return a.FingerprintMatch && a.BoundsMatch && len(a.Drift) == 0 && !a.VerdictChanged
}

// Audit re-analyses src with the parameters stored on rec and reports every
// difference. Signals are compared for exact equality: the pipeline is
// deterministic, so any drift means the input, the parameters or the code
// changed.
func Audit(rec *VerdictRecord, src purity.PeakSource) (*AuditResult, error) {
	if src == nil || src.Spectra() == nil {
		return nil, fmt.Errorf("audit %s: peak has no spectral matrix", rec.VerdictID)
	}
	params, err := rec.Params()
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", rec.VerdictID, err)
	}

	left, right := src.Bounds()
	res := &AuditResult{
		VerdictID:        rec.VerdictID,
		PeakID:           rec.PeakID,
		FingerprintMatch: src.Spectra().Fingerprint() == rec.MatrixSHA256,
		BoundsMatch:      left == rec.Left && right == rec.Right,
		StoredError:      rec.ErrorKind,
	}

	verdict, analyzeErr := purity.Analyze(src, params)
	if analyzeErr != nil && !purity.IsIndeterminate(analyzeErr) {
		return nil, fmt.Errorf("audit %s: %w", rec.VerdictID, analyzeErr)
	}
	if analyzeErr != nil {
		res.RecomputedError = purity.ErrorKind(analyzeErr)
	}

	switch {
	case rec.Indeterminate() || analyzeErr != nil:
		res.VerdictChanged = res.StoredError != res.RecomputedError
	default:
		res.Drift = compareSignals(rec.Signals, verdict.Signals)
		res.VerdictChanged = rec.Pure != verdict.Pure || rec.Rule != verdict.Rule
	}
	return res, nil
}

func compareSignals(stored, got purity.Signals) []SignalDrift {
	pairs := []struct {
		signal purity.Signal
		a, b   float64
	}{
		{purity.SignalAgilent, stored.AgilentRatio, got.AgilentRatio},
		{purity.SignalUnimodality, boolToFloat(stored.Unimodal), boolToFloat(got.Unimodal)},
		{purity.SignalPCA, stored.PCARatio, got.PCARatio},
		{purity.SignalMinCorrelation, stored.MinCorrelation, got.MinCorrelation},
		{purity.SignalMeanCorrelation, stored.MeanCorrelation, got.MeanCorrelation},
	}
	var drift []SignalDrift
	for _, p := range pairs {
		if p.a != p.b {
			drift = append(drift, SignalDrift{Signal: p.signal, Stored: p.a, Recomputed: p.b})
		}
	}
	return drift
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// PeakLookup resolves a stored verdict to the peak it was computed from.
// It returns (nil, nil) when the input is no longer available.
type PeakLookup func(rec *VerdictRecord) (purity.PeakSource, error)

// AuditRun audits every verdict of a run whose input lookup can still find.
// Verdicts with no available input are skipped and counted.
func AuditRun(store *VerdictStore, runID string, lookup PeakLookup) (results []*AuditResult, skipped int, err error) {
	recs, err := store.ListByRun(runID)
	if err != nil {
		return nil, 0, err
	}
	for _, rec := range recs {
		src, err := lookup(rec)
		if err != nil {
			return results, skipped, fmt.Errorf("resolve peak %q: %w", rec.PeakID, err)
		}
		if src == nil {
			skipped++
			monitoring.Debugf("audit: no input for verdict %s (peak %q)", rec.VerdictID, rec.PeakID)
			continue
		}
		res, err := Audit(rec, src)
		if err != nil {
			return results, skipped, err
		}
		results = append(results, res)
	}
	return results, skipped, nil
}
