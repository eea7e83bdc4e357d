package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soda92/phis-introducing-med/internal/introduce"
)

// DB is the slice of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists run records to Postgres for later reporting.
type Store struct {
	db DB
}

// NewStore creates a Store over db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Name implements introduce.RecordSink.
func (s *Store) Name() string { return "postgres" }

const insertRunSQL = `
	INSERT INTO medication_runs (run_id, patient_id, history, outpatient, selected, outcome, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// SaveRun inserts one row per patient run. Medication lists are stored as
// JSONB so reporting queries can unnest them.
func (s *Store) SaveRun(ctx context.Context, rec introduce.RunRecord) error {
	history, err := json.Marshal(rec.History)
	if err != nil {
		return fmt.Errorf("records: encoding history: %w", err)
	}
	outpatient, err := json.Marshal(rec.Outpatient)
	if err != nil {
		return fmt.Errorf("records: encoding outpatient: %w", err)
	}
	selected, err := json.Marshal(rec.Selected)
	if err != nil {
		return fmt.Errorf("records: encoding selections: %w", err)
	}

	_, err = s.db.Exec(ctx, insertRunSQL,
		rec.RunID, rec.PatientID, history, outpatient, selected,
		string(rec.Outcome), rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("records: inserting run: %w", err)
	}
	return nil
}
