package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/peakpurity/internal/purity"
)

// VerdictRecord is one analysed peak as persisted. A record whose Error is
// non-empty is indeterminate: Pure, Rule and Signals are zero and not stored.
type VerdictRecord struct {
	VerdictID    string          `json:"verdict_id"`
	RunID        string          `json:"run_id"`
	PeakID       string          `json:"peak_id"`
	SourcePath   string          `json:"source_path,omitempty"`
	Left         int             `json:"left"`
	Right        int             `json:"right"`
	Pure         bool            `json:"pure"`
	Rule         purity.Rule     `json:"rule"`
	Signals      purity.Signals  `json:"signals"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	Error        string          `json:"error,omitempty"`
	MatrixSHA256 string          `json:"matrix_sha256"`
	ParamsJSON   json.RawMessage `json:"params_json,omitempty"`
	CreatedAt    int64           `json:"created_at"`
}

// Indeterminate reports whether the analysis of this peak failed.
func (v *VerdictRecord) Indeterminate() bool { return v.Error != "" }

// Params decodes ParamsJSON, falling back to the defaults for fields it
// does not set.
func (v *VerdictRecord) Params() (purity.Params, error) {
	return decodeParams(v.ParamsJSON)
}

// NewVerdictRecord builds the record for one analysed peak. analyzeErr is the
// error Analyze returned for src, if any.
func NewVerdictRecord(runID string, src purity.PeakSource, verdict purity.Verdict, analyzeErr error, p purity.Params) (*VerdictRecord, error) {
	if src == nil || src.Spectra() == nil {
		return nil, errors.New("verdict record needs a peak with a spectral matrix")
	}
	params, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode verdict params: %w", err)
	}
	left, right := src.Bounds()
	rec := &VerdictRecord{
		RunID:        runID,
		Left:         left,
		Right:        right,
		MatrixSHA256: src.Spectra().Fingerprint(),
		ParamsJSON:   params,
	}
	if ider, ok := src.(interface{ PeakID() string }); ok {
		rec.PeakID = ider.PeakID()
	}
	if pather, ok := src.(interface{ SourcePath() string }); ok {
		rec.SourcePath = pather.SourcePath()
	}
	if analyzeErr != nil {
		rec.ErrorKind = purity.ErrorKind(analyzeErr)
		rec.Error = analyzeErr.Error()
		return rec, nil
	}
	rec.Pure = verdict.Pure
	rec.Rule = verdict.Rule
	rec.Signals = verdict.Signals
	return rec, nil
}

// VerdictStore provides persistence for per-peak verdicts.
type VerdictStore struct {
	db *DB
}

// NewVerdictStore creates a new VerdictStore.
func NewVerdictStore(db *DB) *VerdictStore {
	return &VerdictStore{db: db}
}

// Insert persists a verdict. If VerdictID is empty, a UUID is generated.
func (s *VerdictStore) Insert(v *VerdictRecord) error {
	if v.RunID == "" {
		return errors.New("verdict has no run_id")
	}
	if v.VerdictID == "" {
		v.VerdictID = uuid.New().String()
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = s.db.now()
	}

	var paramsStr interface{}
	if len(v.ParamsJSON) > 0 {
		paramsStr = string(v.ParamsJSON)
	}
	var pure, rule, agilent, unimodal, pca, minCorr, meanCorr, errKind, errText interface{}
	if v.Indeterminate() {
		errKind, errText = v.ErrorKind, v.Error
	} else {
		pure = boolToInt(v.Pure)
		rule = v.Rule.String()
		agilent = v.Signals.AgilentRatio
		unimodal = boolToInt(v.Signals.Unimodal)
		pca = v.Signals.PCARatio
		minCorr = v.Signals.MinCorrelation
		meanCorr = v.Signals.MeanCorrelation
	}

	return s.db.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO purity_verdicts (
				verdict_id, run_id, peak_id, source_path, left_bound, right_bound,
				pure, rule, agilent_ratio, unimodal, pca_ratio,
				min_correlation, mean_correlation, error_kind, error_text,
				matrix_sha256, params_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.VerdictID, v.RunID, v.PeakID, v.SourcePath, v.Left, v.Right,
			pure, rule, agilent, unimodal, pca,
			minCorr, meanCorr, errKind, errText,
			v.MatrixSHA256, paramsStr, v.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert verdict: %w", err)
		}
		return nil
	})
}

const verdictColumns = `
	verdict_id, run_id, peak_id, source_path, left_bound, right_bound,
	pure, rule, agilent_ratio, unimodal, pca_ratio,
	min_correlation, mean_correlation, error_kind, error_text,
	matrix_sha256, params_json, created_at`

// Get returns a single verdict by ID.
func (s *VerdictStore) Get(verdictID string) (*VerdictRecord, error) {
	row := s.db.QueryRow(`SELECT `+verdictColumns+`
		FROM purity_verdicts
		WHERE verdict_id = ?`, verdictID)
	v, err := scanVerdict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verdict %s: %w", verdictID, ErrNotFound)
		}
		return nil, err
	}
	return v, nil
}

// ListByRun returns all verdicts of a run in insertion order.
func (s *VerdictStore) ListByRun(runID string) ([]*VerdictRecord, error) {
	rows, err := s.db.Query(`SELECT `+verdictColumns+`
		FROM purity_verdicts
		WHERE run_id = ?
		ORDER BY created_at ASC, rowid ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []*VerdictRecord
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListByPeak returns every stored verdict for a peak ID, newest first.
func (s *VerdictStore) ListByPeak(peakID string) ([]*VerdictRecord, error) {
	rows, err := s.db.Query(`SELECT `+verdictColumns+`
		FROM purity_verdicts
		WHERE peak_id = ?
		ORDER BY created_at DESC, rowid DESC`, peakID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []*VerdictRecord
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Delete removes a verdict by ID.
func (s *VerdictStore) Delete(verdictID string) error {
	return s.db.retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM purity_verdicts WHERE verdict_id = ?`, verdictID)
		if err != nil {
			return fmt.Errorf("delete verdict: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("verdict %s: %w", verdictID, ErrNotFound)
		}
		return nil
	})
}

// RunSummary counts the verdicts of a run by outcome.
type RunSummary struct {
	Total         int `json:"total"`
	Pure          int `json:"pure"`
	Impure        int `json:"impure"`
	Indeterminate int `json:"indeterminate"`
}

// Summarize counts the verdicts of a run by outcome.
func (s *VerdictStore) Summarize(runID string) (RunSummary, error) {
	var sum RunSummary
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN error_text IS NULL AND pure = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN error_text IS NULL AND pure = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN error_text IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM purity_verdicts
		WHERE run_id = ?`, runID).Scan(&sum.Total, &sum.Pure, &sum.Impure, &sum.Indeterminate)
	if err != nil {
		return RunSummary{}, fmt.Errorf("summarize run: %w", err)
	}
	return sum, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVerdict(row rowScanner) (*VerdictRecord, error) {
	var v VerdictRecord
	var (
		pure, unimodal                 sql.NullInt64
		rule, errKind, errText, params sql.NullString
		agilent, pca, minCorr, meanCor sql.NullFloat64
	)
	err := row.Scan(
		&v.VerdictID, &v.RunID, &v.PeakID, &v.SourcePath, &v.Left, &v.Right,
		&pure, &rule, &agilent, &unimodal, &pca,
		&minCorr, &meanCor, &errKind, &errText,
		&v.MatrixSHA256, &params, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan verdict row: %w", err)
	}
	if params.Valid {
		v.ParamsJSON = json.RawMessage(params.String)
	}
	if errText.Valid {
		v.Error = errText.String
		v.ErrorKind = errKind.String
		return &v, nil
	}
	v.Pure = pure.Int64 == 1
	if rule.Valid {
		r, err := purity.ParseRule(rule.String)
		if err != nil {
			return nil, fmt.Errorf("verdict %s: %w", v.VerdictID, err)
		}
		v.Rule = r
	}
	v.Signals = purity.Signals{
		AgilentRatio:    agilent.Float64,
		Unimodal:        unimodal.Int64 == 1,
		PCARatio:        pca.Float64,
		MinCorrelation:  minCorr.Float64,
		MeanCorrelation: meanCor.Float64,
	}
	return &v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
