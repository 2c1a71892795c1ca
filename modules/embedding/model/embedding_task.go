package model

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// EmbeddingTask is a work item for the embedding queue worker. Unique on
// (table_name, record_id); re-enqueuing a pending task is a no-op,
// re-enqueuing a completed one resets it to pending.
type EmbeddingTask struct {
	ID            string
	TableName     string
	RecordID      string
	TextToEmbed   string
	Status        TaskStatus
	Attempts      int
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Stats summarizes queue depth after a worker run.
type Stats struct {
	PendingCount int
	FailedCount  int
}
