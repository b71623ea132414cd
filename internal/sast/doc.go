// Package sast holds the pattern rules run against every source file.
//
// A Rule pairs identity (ID, category, severity, remediation text) with a
// Matcher over lexed source. Matchers work line by line on the views the
// lang lexer produces: Masked lines for code shape, Literals for string
// contents. Rules are independent; one rule failing never stops the others.
//
// The built-in set is returned by DefaultRules and versioned by
// RulesetVersion, which is recorded in every report.
package sast
