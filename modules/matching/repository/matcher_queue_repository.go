package repository

import (
	"context"

	"github.com/haloestate/leadpipe/modules/matching/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MatcherQueueRepository struct {
	pool *pgxpool.Pool
}

func NewMatcherQueueRepository(pool *pgxpool.Pool) *MatcherQueueRepository {
	return &MatcherQueueRepository{pool: pool}
}

// ClaimForScoring opens a transaction and locks up to limit canonical leads
// in pending or review status, skipping rows another worker already holds.
// The caller must commit (on success) or roll back (on any error) the
// returned transaction.
func (r *MatcherQueueRepository) ClaimForScoring(ctx context.Context, limit int) (pgx.Tx, []ports.ClaimableCanonical, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}

	query := `
		SELECT id, tenant_id, lead_source_id, match_status
		FROM canonical_leads
		WHERE match_status IN ('pending', 'review', 'multiple')
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`
	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		tx.Rollback(ctx)
		return nil, nil, err
	}
	defer rows.Close()

	var out []ports.ClaimableCanonical
	for rows.Next() {
		var c ports.ClaimableCanonical
		if err := rows.Scan(&c.ID, &c.TenantID, &c.LeadSourceID, &c.MatchStatus); err != nil {
			rows.Close()
			tx.Rollback(ctx)
			return nil, nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		tx.Rollback(ctx)
		return nil, nil, err
	}

	return tx, out, nil
}
