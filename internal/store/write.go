package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
)

// ErrConflict is returned when another writer appended to the same
// workflow first.
var ErrConflict = errors.New("workflow was modified concurrently")

// Workflow identifies one persisted state machine: a feature for a tenant.
type Workflow struct {
	Feature string
	Tenant  string
}

// AppendEvents writes machine history events for a workflow in one
// transaction. runID tags the unit of work; specHash identifies the
// feature definition that validated the events. Events are written in
// order and must carry seq values above the last persisted one.
func (s *Store) AppendEvents(ctx context.Context, wf Workflow, runID, specHash string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transitions
		(id, run_id, feature, tenant, kind, from_state, to_state, seq, spec_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.Feature != "" && ev.Feature != wf.Feature {
			return fmt.Errorf("append events: event for feature %q in workflow %q", ev.Feature, wf.Feature)
		}
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("append events: id: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			id.String(),
			runID,
			wf.Feature,
			wf.Tenant,
			string(ev.Kind),
			ev.From,
			ev.To,
			ev.Seq,
			specHash,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("append events: seq %d: %w", ev.Seq, ErrConflict)
			}
			return fmt.Errorf("append events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}

// SaveScan stores a report and returns the new scan ID.
func (s *Store) SaveScan(ctx context.Context, r *ir.Report) (string, error) {
	reportJSON, err := marshalReport(r)
	if err != nil {
		return "", fmt.Errorf("save scan: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("save scan: id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, root, fingerprint, findings, report, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM scans))
	`,
		id.String(),
		r.Root,
		r.Fingerprint,
		len(r.Findings),
		reportJSON,
	)
	if err != nil {
		return "", fmt.Errorf("save scan: %w", err)
	}
	return id.String(), nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
