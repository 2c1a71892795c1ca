package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CanonicalStatusRepository writes canonical_leads.match_status and
// match_confidence. It is the matching module's narrow write path into a
// table owned, for every other purpose, by the leads module.
type CanonicalStatusRepository struct {
	pool *pgxpool.Pool
}

func NewCanonicalStatusRepository(pool *pgxpool.Pool) *CanonicalStatusRepository {
	return &CanonicalStatusRepository{pool: pool}
}

func (r *CanonicalStatusRepository) UpdateMatchStatusTx(ctx context.Context, tx pgx.Tx, canonicalLeadID string, status string, confidence *float64) error {
	query := `UPDATE canonical_leads SET match_status = $1, match_confidence = $2, updated_at = now() WHERE id = $3`
	_, err := tx.Exec(ctx, query, status, confidence, canonicalLeadID)
	return err
}

func (r *CanonicalStatusRepository) UpdateMatchStatus(ctx context.Context, canonicalLeadID string, status string, confidence *float64) error {
	query := `UPDATE canonical_leads SET match_status = $1, match_confidence = $2, updated_at = now() WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, status, confidence, canonicalLeadID)
	return err
}
