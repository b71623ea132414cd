package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/warden/internal/ir"
)

// marshalReport converts a report to canonical JSON TEXT for storage, so
// equal reports are stored byte-identically.
func marshalReport(r *ir.Report) (string, error) {
	data, err := ir.MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

// unmarshalReport parses a stored report.
func unmarshalReport(data string) (*ir.Report, error) {
	var r ir.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}
