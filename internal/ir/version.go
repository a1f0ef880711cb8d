package ir

// Version constants for the persisted layout and the engine.
const (
	// LayoutVersion identifies the relational layout written by the store.
	// A change here forces a reindex regardless of the configured policy.
	LayoutVersion = "1"

	// EngineVersion is the qindex engine version.
	EngineVersion = "0.1.0"
)
