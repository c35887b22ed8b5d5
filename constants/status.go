package constants

// RunStatus is the canonical status for rows in the runs table.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"   // upload accepted, scoring in progress
	RunStatusSucceeded RunStatus = "SUCCEEDED" // processed file persisted and published
	RunStatusFailed    RunStatus = "FAILED"    // terminal failure
)
