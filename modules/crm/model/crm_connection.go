package model

import "time"

type SyncStatus string

const (
	SyncStatusNeverRun             SyncStatus = "never_run"
	SyncStatusRunning               SyncStatus = "running"
	SyncStatusCompleted             SyncStatus = "completed"
	SyncStatusCompletedWithErrors   SyncStatus = "completed_with_errors"
	SyncStatusFailed                SyncStatus = "failed"
)

// CrmConnection holds one tenant's credentials for the synchronized CRM.
type CrmConnection struct {
	ID             string
	TenantID       string
	BaseURL        string
	APIKey         string
	IsActive       bool
	LastSyncAt     *time.Time
	LastSyncStatus SyncStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
