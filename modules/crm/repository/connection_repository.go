package repository

import (
	"context"
	"errors"
	"time"

	"github.com/haloestate/leadpipe/modules/crm/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConnectionRepository struct {
	pool *pgxpool.Pool
}

func NewConnectionRepository(pool *pgxpool.Pool) *ConnectionRepository {
	return &ConnectionRepository{pool: pool}
}

const connectionColumns = `
	id, tenant_id, base_url, api_key, is_active, last_sync_at, last_sync_status, created_at, updated_at
`

func scanConnection(row pgx.Row) (*model.CrmConnection, error) {
	var c model.CrmConnection
	err := row.Scan(
		&c.ID, &c.TenantID, &c.BaseURL, &c.APIKey, &c.IsActive, &c.LastSyncAt, &c.LastSyncStatus, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrConnectionNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConnectionRepository) GetByID(ctx context.Context, tenantID, id string) (*model.CrmConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM crm_connections WHERE tenant_id = $1 AND id = $2`
	return scanConnection(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *ConnectionRepository) ListActive(ctx context.Context) ([]*model.CrmConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM crm_connections WHERE is_active = true`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CrmConnection
	for rows.Next() {
		var c model.CrmConnection
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.BaseURL, &c.APIKey, &c.IsActive, &c.LastSyncAt, &c.LastSyncStatus, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *ConnectionRepository) UpdateSyncState(ctx context.Context, id string, lastSyncAt time.Time, status model.SyncStatus) error {
	query := `UPDATE crm_connections SET last_sync_at = $1, last_sync_status = $2, updated_at = now() WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, lastSyncAt, status, id)
	return err
}
