package repository

import (
	"context"

	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScorerCorpusRepository gives the Scorer read access to crm_leads. It never
// writes to that table — the CRM Puller owns it.
type ScorerCorpusRepository struct {
	pool *pgxpool.Pool
}

func NewScorerCorpusRepository(pool *pgxpool.Pool) *ScorerCorpusRepository {
	return &ScorerCorpusRepository{pool: pool}
}

func (r *ScorerCorpusRepository) FindByEmailNormalized(ctx context.Context, tenantID, emailNormalized string) ([]model.CrmLeadRef, error) {
	if emailNormalized == "" {
		return nil, nil
	}
	query := `
		SELECT id, email_normalized, phone_normalized, address_normalized, assigned_user_id
		FROM crm_leads WHERE tenant_id = $1 AND email_normalized = $2
	`
	return r.queryRefs(ctx, query, tenantID, emailNormalized)
}

func (r *ScorerCorpusRepository) FindByPhoneNormalized(ctx context.Context, tenantID, phoneNormalized string) ([]model.CrmLeadRef, error) {
	if phoneNormalized == "" {
		return nil, nil
	}
	query := `
		SELECT id, email_normalized, phone_normalized, address_normalized, assigned_user_id
		FROM crm_leads WHERE tenant_id = $1 AND phone_normalized = $2
	`
	return r.queryRefs(ctx, query, tenantID, phoneNormalized)
}

// trigramPrefilterThreshold is deliberately loose: pg_trgm's similarity()
// only narrows the candidate set via the GIN index here. The authoritative
// confidence is recomputed in Go with pure Jaccard trigram similarity to
// match the scorer's exact semantics, since pg_trgm's similarity metric is
// not numerically identical to Jaccard-over-3-grams.
const trigramPrefilterThreshold = 0.2

func (r *ScorerCorpusRepository) FindByAddressTrigram(ctx context.Context, tenantID, addressNormalized string, limit int) ([]model.CrmLeadRef, error) {
	if addressNormalized == "" {
		return nil, nil
	}
	query := `
		SELECT id, email_normalized, phone_normalized, address_normalized, assigned_user_id
		FROM crm_leads
		WHERE tenant_id = $1 AND similarity(address_normalized, $2) > $3
		ORDER BY similarity(address_normalized, $2) DESC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, tenantID, addressNormalized, trigramPrefilterThreshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRefs(rows)
}

func (r *ScorerCorpusRepository) queryRefs(ctx context.Context, query string, args ...any) ([]model.CrmLeadRef, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRefs(rows)
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRefs(rows rowsScanner) ([]model.CrmLeadRef, error) {
	var out []model.CrmLeadRef
	for rows.Next() {
		var ref model.CrmLeadRef
		if err := rows.Scan(&ref.ID, &ref.EmailNormalized, &ref.PhoneNormalized, &ref.AddressNormalized, &ref.AssignedUserID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
