package model

import "time"

type SyncRunStatus string

const (
	SyncRunStatusRunning  SyncRunStatus = "running"
	SyncRunStatusFailed   SyncRunStatus = "failed"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusCompletedWithErrors SyncRunStatus = "completed_with_errors"
)

// SyncLog records one CRM Puller run against a connection.
type SyncLog struct {
	ID              string
	CrmConnectionID string
	SyncType        string
	Status          SyncRunStatus
	StartedAt       time.Time
	FinishedAt      *time.Time
	DurationMs      *int64
	Fetched         int
	Created         int
	Updated         int
	Errors          []string
}
