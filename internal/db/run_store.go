package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/peakpurity/internal/purity"
)

// Run groups the verdicts of one batch analysis. ParamsJSON records the
// parameters every verdict of the run was computed with.
type Run struct {
	RunID      string          `json:"run_id"`
	Label      string          `json:"label"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

// Params decodes ParamsJSON, falling back to the defaults for fields it
// does not set.
func (r *Run) Params() (purity.Params, error) {
	return decodeParams(r.ParamsJSON)
}

// RunStore provides persistence for batch runs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Create persists a new run for the given parameters. If run.RunID is empty
// a UUID is generated.
func (s *RunStore) Create(run *Run, p purity.Params) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.db.now()
	}
	params, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode run params: %w", err)
	}
	run.ParamsJSON = params

	return s.db.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO purity_runs (run_id, label, params_json, created_at)
			VALUES (?, ?, ?, ?)`,
			run.RunID, run.Label, string(run.ParamsJSON), run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, label, params_json, created_at
		FROM purity_runs
		WHERE run_id = ?`, runID)

	var r Run
	var paramsStr sql.NullString
	if err := row.Scan(&r.RunID, &r.Label, &paramsStr, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &r, nil
}

// List returns runs ordered by creation time descending. A limit of zero or
// less returns every run.
func (s *RunStore) List(limit int) ([]*Run, error) {
	query := `
		SELECT run_id, label, params_json, created_at
		FROM purity_runs
		ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var paramsStr sql.NullString
		if err := rows.Scan(&r.RunID, &r.Label, &paramsStr, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if paramsStr.Valid {
			r.ParamsJSON = json.RawMessage(paramsStr.String)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// Delete removes a run and, through the foreign key, all of its verdicts.
func (s *RunStore) Delete(runID string) error {
	return s.db.retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM purity_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}

func decodeParams(raw json.RawMessage) (purity.Params, error) {
	p := purity.DefaultParams()
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return purity.Params{}, fmt.Errorf("decode params: %w", err)
	}
	return p, nil
}
