package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/haloestate/leadpipe/modules/leads/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type CanonicalLeadRepository struct {
	pool *pgxpool.Pool
}

func NewCanonicalLeadRepository(pool *pgxpool.Pool) *CanonicalLeadRepository {
	return &CanonicalLeadRepository{pool: pool}
}

const canonicalLeadColumns = `
	id, tenant_id, lead_source_id, raw_row_id, source_record_id, lead_type,
	first_name, last_name, email, email_normalized, phone, phone_normalized,
	address, address_normalized, raw_data, source_created_at, match_status,
	match_confidence, embedding, embedding_text, embedded_at, created_at, updated_at
`

func scanCanonicalLead(row pgx.Row) (*model.CanonicalLead, error) {
	var l model.CanonicalLead
	var rawDataJSON []byte
	var embedding *pgvector.Vector
	err := row.Scan(
		&l.ID, &l.TenantID, &l.LeadSourceID, &l.RawRowID, &l.SourceRecordID, &l.LeadType,
		&l.FirstName, &l.LastName, &l.Email, &l.EmailNormalized, &l.Phone, &l.PhoneNormalized,
		&l.Address, &l.AddressNormalized, &rawDataJSON, &l.SourceCreatedAt, &l.MatchStatus,
		&l.MatchConfidence, &embedding, &l.EmbeddingText, &l.EmbeddedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCanonicalLeadNotFound
		}
		return nil, err
	}
	if len(rawDataJSON) > 0 {
		if err := json.Unmarshal(rawDataJSON, &l.RawData); err != nil {
			return nil, err
		}
	}
	if embedding != nil {
		l.Embedding = embedding.Slice()
	}
	return &l, nil
}

// CreateTx inserts the canonical lead using the given transaction, so the
// caller can commit it atomically alongside the raw-row back-link, lineage
// entry, and embedding task it's created together with.
func (r *CanonicalLeadRepository) CreateTx(ctx context.Context, tx pgx.Tx, lead *model.CanonicalLead) error {
	lead.ID = uuid.New().String()
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.MatchStatus == "" {
		lead.MatchStatus = model.MatchStatusPending
	}
	rawDataJSON, err := json.Marshal(lead.RawData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO canonical_leads (
			id, tenant_id, lead_source_id, raw_row_id, source_record_id, lead_type,
			first_name, last_name, email, email_normalized, phone, phone_normalized,
			address, address_normalized, raw_data, source_created_at, match_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = tx.Exec(ctx, query,
		lead.ID, lead.TenantID, lead.LeadSourceID, lead.RawRowID, lead.SourceRecordID, lead.LeadType,
		lead.FirstName, lead.LastName, lead.Email, lead.EmailNormalized, lead.Phone, lead.PhoneNormalized,
		lead.Address, lead.AddressNormalized, rawDataJSON, lead.SourceCreatedAt, lead.MatchStatus,
		lead.CreatedAt, lead.UpdatedAt,
	)
	return err
}

func (r *CanonicalLeadRepository) Create(ctx context.Context, lead *model.CanonicalLead) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.CreateTx(ctx, tx, lead); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CanonicalLeadRepository) GetByTenantSourceEmail(ctx context.Context, tenantID, leadSourceID, emailNormalized string) (*model.CanonicalLead, error) {
	query := `
		SELECT ` + canonicalLeadColumns + `
		FROM canonical_leads
		WHERE tenant_id = $1 AND lead_source_id = $2 AND email_normalized = $3
		ORDER BY created_at ASC LIMIT 1
	`
	return scanCanonicalLead(r.pool.QueryRow(ctx, query, tenantID, leadSourceID, emailNormalized))
}

func (r *CanonicalLeadRepository) GetByID(ctx context.Context, tenantID, id string) (*model.CanonicalLead, error) {
	query := `SELECT ` + canonicalLeadColumns + ` FROM canonical_leads WHERE tenant_id = $1 AND id = $2`
	return scanCanonicalLead(r.pool.QueryRow(ctx, query, tenantID, id))
}
