package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haloestate/leadpipe/modules/lineage/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LineageRepository struct {
	pool *pgxpool.Pool
}

func NewLineageRepository(pool *pgxpool.Pool) *LineageRepository {
	return &LineageRepository{pool: pool}
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, so a lineage row can
// be written standalone or as part of a caller's surrounding transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *LineageRepository) Create(ctx context.Context, entry *model.LineageEntry) error {
	return r.CreateWith(ctx, r.pool, entry)
}

func (r *LineageRepository) CreateTx(ctx context.Context, tx pgx.Tx, entry *model.LineageEntry) error {
	return r.CreateWith(ctx, tx, entry)
}

// CreateWith writes the lineage row through exec, letting callers that need
// the atomicity described in spec §5 pass their own open transaction.
func (r *LineageRepository) CreateWith(ctx context.Context, exec execer, entry *model.LineageEntry) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()

	var detailsJSON []byte
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		detailsJSON = b
	} else {
		detailsJSON = []byte("{}")
	}

	query := `
		INSERT INTO lineage_entries (
			id, tenant_id, source_table, source_id, target_table, target_id,
			operation, transformation_type, performed_by, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := exec.Exec(ctx, query,
		entry.ID, entry.TenantID, entry.SourceTable, entry.SourceID, entry.TargetTable, entry.TargetID,
		entry.Operation, entry.TransformationType, entry.PerformedBy, detailsJSON, entry.CreatedAt,
	)
	return err
}
