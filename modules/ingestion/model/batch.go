package model

import "time"

type BatchStatus string

const (
	BatchStatusPending      BatchStatus = "pending"
	BatchStatusProcessing   BatchStatus = "processing"
	BatchStatusParsed       BatchStatus = "parsed"
	BatchStatusTransforming BatchStatus = "transforming"
	BatchStatusCompleted    BatchStatus = "completed"
	BatchStatusFailed       BatchStatus = "failed"
	BatchStatusPartial      BatchStatus = "partial"
)

// BatchCounters tracks the row-level bookkeeping required by the parse and
// transform steps' invariants (total = parsed + error_rows; parsed = valid + invalid).
type BatchCounters struct {
	Total         int
	Parsed        int
	Valid         int
	DuplicateRows int
	ErrorRows     int
}

// Batch is one received CSV and its processing state. Status advances forward
// through the pipeline; the one step back is the worker's reaper, which
// returns a batch stuck in processing to pending and one stuck in
// transforming to parsed.
type Batch struct {
	ID           string
	TenantID     string
	LeadSourceID string
	FileRef      string
	FileHash     string
	ReceivedAt   time.Time
	Status       BatchStatus
	Counters     BatchCounters
	Log          []string
	Errors       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LogEntry formats an append-only log line with a timestamp prefix, matching
// the teacher's convention of storing log lines as plain strings in a jsonb array.
func LogEntry(event string) string {
	return time.Now().UTC().Format(time.RFC3339) + " " + event
}
