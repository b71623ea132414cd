package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// TransitionRecord is one persisted state change.
type TransitionRecord struct {
	ID       string           `json:"id"`
	RunID    string           `json:"run_id"`
	Feature  string           `json:"feature"`
	Tenant   string           `json:"tenant"`
	Kind     engine.EventKind `json:"kind"`
	From     string           `json:"from"`
	To       string           `json:"to"`
	Seq      int64            `json:"seq"`
	SpecHash string           `json:"spec_hash"`
}

// ScanRecord is one persisted scan.
type ScanRecord struct {
	ID          string     `json:"id"`
	Root        string     `json:"root"`
	Fingerprint string     `json:"fingerprint"`
	Findings    int        `json:"findings"`
	Seq         int64      `json:"seq"`
	Report      *ir.Report `json:"report,omitempty"`
}

// CurrentState returns the state a workflow was last moved to and the seq
// of that record. A workflow with no records returns "" and 0.
func (s *Store) CurrentState(ctx context.Context, wf Workflow) (string, int64, error) {
	var (
		state string
		seq   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT to_state, seq
		FROM transitions
		WHERE feature = ? AND tenant = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, wf.Feature, wf.Tenant).Scan(&state, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("current state: %w", err)
	}
	return state, seq, nil
}

// History returns every record of a workflow in seq order.
//
// Returns an empty slice (not nil) if the workflow has no records.
func (s *Store) History(ctx context.Context, wf Workflow) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, feature, tenant, kind, from_state, to_state, seq, spec_hash
		FROM transitions
		WHERE feature = ? AND tenant = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, wf.Feature, wf.Tenant)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []TransitionRecord{}
	for rows.Next() {
		var rec TransitionRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Feature, &rec.Tenant, &kind,
			&rec.From, &rec.To, &rec.Seq, &rec.SpecHash); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.Kind = engine.EventKind(kind)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// Tenants returns the tenants with records for a feature, sorted.
func (s *Store) Tenants(ctx context.Context, feature string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT tenant
		FROM transitions
		WHERE feature = ?
		ORDER BY tenant COLLATE BINARY ASC
	`, feature)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	tenants := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}

// LatestScan returns the most recent scan of root with its report.
// Returns ErrNotFound if root was never scanned.
func (s *Store) LatestScan(ctx context.Context, root string) (*ScanRecord, error) {
	var (
		rec    ScanRecord
		report string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, root, fingerprint, findings, seq, report
		FROM scans
		WHERE root = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, root).Scan(&rec.ID, &rec.Root, &rec.Fingerprint, &rec.Findings, &rec.Seq, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan of %s: %w", root, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest scan: %w", err)
	}
	if rec.Report, err = unmarshalReport(report); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListScans returns up to limit scans of root, newest first, without
// their reports. A limit of zero or less returns all.
func (s *Store) ListScans(ctx context.Context, root string, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root, fingerprint, findings, seq
		FROM scans
		WHERE root = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, root, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	scans := []ScanRecord{}
	for rows.Next() {
		var rec ScanRecord
		if err := rows.Scan(&rec.ID, &rec.Root, &rec.Fingerprint, &rec.Findings, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan scan record: %w", err)
		}
		scans = append(scans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return scans, nil
}
