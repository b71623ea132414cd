package ir

// Version constants for the report schema and tool.
const (
	// ReportVersion is the report schema version.
	ReportVersion = "1"

	// ToolVersion is the warden release version.
	ToolVersion = "0.3.0"
)
