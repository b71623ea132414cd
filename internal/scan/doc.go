// Package scan is the orchestrator: it walks a project, runs the pattern
// scanner, import validator and layer enforcer on every source file,
// builds the module graph, detects cycles, and folds everything into one
// ir.Report.
//
// Per-file analysis runs on a worker pool. Files are independent and
// read-only; the only shared structure is the graph, which serialises edge
// insertion. Results are merged in file order after the pool drains, so
// the report does not depend on scheduling. A file that cannot be read or
// decoded becomes an ir.FileError and the scan continues.
//
// Statistics are accumulated per call and returned in the report; a
// Scanner holds no mutable state, so concurrent scans never interfere.
package scan
