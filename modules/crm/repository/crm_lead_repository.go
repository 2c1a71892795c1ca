package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/haloestate/leadpipe/modules/crm/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CrmLeadRepository struct {
	pool *pgxpool.Pool
}

func NewCrmLeadRepository(pool *pgxpool.Pool) *CrmLeadRepository {
	return &CrmLeadRepository{pool: pool}
}

func (r *CrmLeadRepository) GetByID(ctx context.Context, tenantID, id string) (*model.CrmLead, error) {
	query := `
		SELECT id, tenant_id, crm_connection_id, external_id, first_name, last_name, email, email_normalized,
		       phone, phone_normalized, address, address_normalized, assigned_user_id, assigned_user_name,
		       assigned_user_email, stage, source, sync_hash, last_synced_at, created_at, updated_at
		FROM crm_leads WHERE tenant_id = $1 AND id = $2
	`
	var l model.CrmLead
	err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&l.ID, &l.TenantID, &l.CrmConnectionID, &l.ExternalID, &l.FirstName, &l.LastName, &l.Email, &l.EmailNormalized,
		&l.Phone, &l.PhoneNormalized, &l.Address, &l.AddressNormalized, &l.AssignedUserID, &l.AssignedUserName,
		&l.AssignedUserEmail, &l.Stage, &l.Source, &l.SyncHash, &l.LastSyncedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCrmLeadNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *CrmLeadRepository) GetSyncHash(ctx context.Context, crmConnectionID, externalID string) (string, bool, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT sync_hash FROM crm_leads WHERE crm_connection_id = $1 AND external_id = $2`, crmConnectionID, externalID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return hash, true, nil
}

// Upsert inserts a new CrmLead or, if one already exists for
// (crm_connection_id, external_id), updates it only when sync_hash
// differs — an unchanged record costs one round trip and no write.
func (r *CrmLeadRepository) Upsert(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.LastSyncedAt = now
	lead.UpdatedAt = now
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	tagsJSON, err := json.Marshal(lead.Tags)
	if err != nil {
		return "", false, err
	}

	query := `
		INSERT INTO crm_leads (
			id, tenant_id, crm_connection_id, external_id, first_name, last_name, email, email_normalized,
			phone, phone_normalized, address, address_normalized, assigned_user_id, assigned_user_name,
			assigned_user_email, stage, source, tags, sync_hash, last_synced_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$21)
		ON CONFLICT (crm_connection_id, external_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			email_normalized = EXCLUDED.email_normalized,
			phone = EXCLUDED.phone,
			phone_normalized = EXCLUDED.phone_normalized,
			address = EXCLUDED.address,
			address_normalized = EXCLUDED.address_normalized,
			assigned_user_id = EXCLUDED.assigned_user_id,
			assigned_user_name = EXCLUDED.assigned_user_name,
			assigned_user_email = EXCLUDED.assigned_user_email,
			stage = EXCLUDED.stage,
			source = EXCLUDED.source,
			tags = EXCLUDED.tags,
			sync_hash = EXCLUDED.sync_hash,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = EXCLUDED.updated_at
		WHERE crm_leads.sync_hash IS DISTINCT FROM EXCLUDED.sync_hash
		RETURNING id, (xmax = 0) AS inserted
	`
	var id string
	var inserted bool
	err = r.pool.QueryRow(ctx, query,
		lead.ID, lead.TenantID, lead.CrmConnectionID, lead.ExternalID, lead.FirstName, lead.LastName, lead.Email, lead.EmailNormalized,
		lead.Phone, lead.PhoneNormalized, lead.Address, lead.AddressNormalized, lead.AssignedUserID, lead.AssignedUserName,
		lead.AssignedUserEmail, lead.Stage, lead.Source, tagsJSON, lead.SyncHash, now,
	).Scan(&id, &inserted)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	// sync_hash unchanged: the conflict clause's WHERE skipped the update, so
	// no row came back. Look up the existing id to hand back to the caller.
	var existingID string
	lookupErr := r.pool.QueryRow(ctx,
		`SELECT id FROM crm_leads WHERE crm_connection_id = $1 AND external_id = $2`,
		lead.CrmConnectionID, lead.ExternalID,
	).Scan(&existingID)
	if lookupErr != nil {
		return "", false, lookupErr
	}
	return existingID, false, nil
}
