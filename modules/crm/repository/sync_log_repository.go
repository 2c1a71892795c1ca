package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haloestate/leadpipe/modules/crm/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SyncLogRepository struct {
	pool *pgxpool.Pool
}

func NewSyncLogRepository(pool *pgxpool.Pool) *SyncLogRepository {
	return &SyncLogRepository{pool: pool}
}

func (r *SyncLogRepository) Create(ctx context.Context, log *model.SyncLog) error {
	log.ID = uuid.New().String()
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now().UTC()
	}
	if log.Status == "" {
		log.Status = model.SyncRunStatusRunning
	}
	errsJSON, err := json.Marshal(log.Errors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sync_logs (id, crm_connection_id, sync_type, status, started_at, fetched, created, updated, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query, log.ID, log.CrmConnectionID, log.SyncType, log.Status, log.StartedAt, log.Fetched, log.Created, log.Updated, errsJSON)
	return err
}

func (r *SyncLogRepository) Finish(ctx context.Context, id string, status model.SyncRunStatus, finishedAt time.Time, durationMs int64, fetched, created, updated int, errs []string) error {
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	query := `
		UPDATE sync_logs SET status = $1, finished_at = $2, duration_ms = $3, fetched = $4, created = $5, updated = $6, errors = $7
		WHERE id = $8
	`
	_, err = r.pool.Exec(ctx, query, status, finishedAt, durationMs, fetched, created, updated, errsJSON, id)
	return err
}
