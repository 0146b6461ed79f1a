package ledger

// Version constants stamped into saved ledgers.
const (
	// SchemaVersion is the ledger document schema version.
	SchemaVersion = "1"

	// ToolVersion is the trustgate version.
	ToolVersion = "0.1.0"
)
