package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFinding = "warden/finding/v1"
	DomainFeature = "warden/feature/v1"
)

// findingIDLength is the number of hex characters kept from the digest.
const findingIDLength = 16

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FindingID computes a content-addressed ID for a finding. Two runs that
// report the same rule at the same location with the same message produce
// the same ID. Severity is excluded so severity overrides keep IDs stable.
func FindingID(f Finding) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"rule_id": f.RuleID,
		"file":    f.File,
		"line":    f.Line,
		"column":  f.Column,
		"message": f.Message,
	})
	if err != nil {
		return "", fmt.Errorf("FindingID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFinding, canonical)[:findingIDLength], nil
}

// MustFindingID is like FindingID but panics on error.
func MustFindingID(f Finding) string {
	id, err := FindingID(f)
	if err != nil {
		panic(err)
	}
	return id
}

// FeatureHash identifies a compiled feature definition. It is recorded
// with every persisted transition so audits can tell which definition
// validated it.
func FeatureHash(spec *FeatureSpec) (string, error) {
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("FeatureHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFeature, canonical), nil
}

// Fingerprint is a fast digest of a report's findings and cycles. Timing
// and file errors are excluded, so an unchanged tree always produces the
// same fingerprint.
func Fingerprint(findings []Finding, cycles []Cycle) (string, error) {
	if findings == nil {
		findings = []Finding{}
	}
	if cycles == nil {
		cycles = []Cycle{}
	}
	canonical, err := MarshalCanonical(struct {
		Findings []Finding `json:"findings"`
		Cycles   []Cycle   `json:"cycles"`
	}{findings, cycles})
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return fmt.Sprintf("%016x", xxh3.Hash(canonical)), nil
}

// ContentDigest is the xxh3-64 digest of decoded file text.
func ContentDigest(text string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(text))
}
