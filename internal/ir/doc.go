// Package ir provides the shared data model for warden.
//
// This package contains type definitions and the canonical encoding used for
// content hashes. All other internal packages import ir; ir imports nothing
// internal, which keeps it the foundational layer with no import cycles.
//
// Key design constraints:
//   - NO float types in hashed or persisted values - use int64 for numbers
//   - All JSON tags use snake_case and field order is the schema order
//   - Collections are emitted in a deterministic order so repeated scans of an
//     unchanged tree produce byte-identical reports
package ir
