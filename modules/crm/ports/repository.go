package ports

import (
	"context"
	"time"

	"github.com/haloestate/leadpipe/modules/crm/model"
)

// ConnectionRepository persists per-tenant CRM credentials and sync state.
type ConnectionRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*model.CrmConnection, error)
	ListActive(ctx context.Context) ([]*model.CrmConnection, error)
	UpdateSyncState(ctx context.Context, id string, lastSyncAt time.Time, status model.SyncStatus) error
}

// CrmLeadRepository upserts mirrored CRM people, gated on sync_hash so an
// unchanged record costs nothing beyond the lookup.
type CrmLeadRepository interface {
	GetSyncHash(ctx context.Context, crmConnectionID, externalID string) (string, bool, error)
	Upsert(ctx context.Context, lead *model.CrmLead) (id string, changed bool, err error)
	GetByID(ctx context.Context, tenantID, id string) (*model.CrmLead, error)
}

// SyncLogRepository records one CRM Puller run.
type SyncLogRepository interface {
	Create(ctx context.Context, log *model.SyncLog) error
	Finish(ctx context.Context, id string, status model.SyncRunStatus, finishedAt time.Time, durationMs int64, fetched, created, updated int, errs []string) error
}
