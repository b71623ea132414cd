// Package deps validates third-party package names against a registry of
// trusted names.
//
// Check classifies a name by its edit distance to the nearest trusted
// entry: an exact or allow-listed name is valid, one or two edits away is
// suspicious (a likely typosquat), anything further is unknown. Unknown
// names are informational only.
//
// Names come from import statements (see ThirdParty) and from manifests
// (see ParseManifest).
package deps
