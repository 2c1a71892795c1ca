package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CandidateRepository struct {
	pool *pgxpool.Pool
}

func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

const candidateColumns = `
	id, tenant_id, canonical_lead_id, crm_lead_id, match_type, confidence_score,
	match_reasons, status, reviewed_by, reviewed_at, lead_match_id, expires_at, created_at, updated_at
`

func scanCandidate(row pgx.Row) (*model.MatchCandidate, error) {
	var c model.MatchCandidate
	var reasonsJSON []byte
	err := row.Scan(
		&c.ID, &c.TenantID, &c.CanonicalLeadID, &c.CrmLeadID, &c.MatchType, &c.ConfidenceScore,
		&reasonsJSON, &c.Status, &c.ReviewedBy, &c.ReviewedAt, &c.LeadMatchID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCandidateNotFound
		}
		return nil, err
	}
	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &c.MatchReasons); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// UpsertTx writes through the Matcher's claim transaction.
func (r *CandidateRepository) UpsertTx(ctx context.Context, tx pgx.Tx, candidate *model.MatchCandidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	candidate.UpdatedAt = now
	if candidate.Status == "" {
		candidate.Status = model.CandidateStatusPending
	}
	reasonsJSON, err := json.Marshal(candidate.MatchReasons)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO match_candidates (
			id, tenant_id, canonical_lead_id, crm_lead_id, match_type, confidence_score,
			match_reasons, status, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (canonical_lead_id, crm_lead_id) DO UPDATE SET
			match_type = EXCLUDED.match_type,
			confidence_score = EXCLUDED.confidence_score,
			match_reasons = EXCLUDED.match_reasons,
			status = 'pending',
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
		WHERE match_candidates.status = 'pending'
	`
	_, err = tx.Exec(ctx, query,
		candidate.ID, candidate.TenantID, candidate.CanonicalLeadID, candidate.CrmLeadID, candidate.MatchType,
		candidate.ConfidenceScore, reasonsJSON, candidate.Status, candidate.ExpiresAt, now,
	)
	return err
}

func (r *CandidateRepository) Upsert(ctx context.Context, candidate *model.MatchCandidate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.UpsertTx(ctx, tx, candidate); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CandidateRepository) ListPendingByCanonical(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM match_candidates WHERE tenant_id = $1 AND canonical_lead_id = $2 AND status = 'pending'`
	rows, err := r.pool.Query(ctx, query, tenantID, canonicalLeadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MatchCandidate
	for rows.Next() {
		c, err := scanCandidateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCandidateRows(rows pgx.Rows) (*model.MatchCandidate, error) {
	var c model.MatchCandidate
	var reasonsJSON []byte
	if err := rows.Scan(
		&c.ID, &c.TenantID, &c.CanonicalLeadID, &c.CrmLeadID, &c.MatchType, &c.ConfidenceScore,
		&reasonsJSON, &c.Status, &c.ReviewedBy, &c.ReviewedAt, &c.LeadMatchID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &c.MatchReasons); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// ExpireStaleForCanonicalTx rejects, with a superseded reason, any pending
// candidate for this canonical not present in keepCrmLeadIDs — used when a
// re-scoring pass no longer produces a previously-offered pair.
func (r *CandidateRepository) ExpireStaleForCanonicalTx(ctx context.Context, tx pgx.Tx, tenantID, canonicalLeadID string, keepCrmLeadIDs []string) error {
	query := `
		UPDATE match_candidates SET status = 'rejected', updated_at = now()
		WHERE tenant_id = $1 AND canonical_lead_id = $2 AND status = 'pending' AND NOT (crm_lead_id = ANY($3))
	`
	_, err := tx.Exec(ctx, query, tenantID, canonicalLeadID, keepCrmLeadIDs)
	return err
}

func (r *CandidateRepository) ExpireStaleForCanonical(ctx context.Context, tenantID, canonicalLeadID string, keepCrmLeadIDs []string, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.ExpireStaleForCanonicalTx(ctx, tx, tenantID, canonicalLeadID, keepCrmLeadIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CandidateRepository) GetByID(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM match_candidates WHERE tenant_id = $1 AND id = $2`
	return scanCandidate(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *CandidateRepository) RejectOtherPendingTx(ctx context.Context, tx pgx.Tx, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error {
	query := `
		UPDATE match_candidates SET status = 'rejected', reviewed_by = $1, reviewed_at = now(), updated_at = now()
		WHERE tenant_id = $2 AND canonical_lead_id = $3 AND status = 'pending' AND id != $4
	`
	_, err := tx.Exec(ctx, query, reviewer, tenantID, canonicalLeadID, exceptCandidateID)
	return err
}

func (r *CandidateRepository) RejectOtherPending(ctx context.Context, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.RejectOtherPendingTx(ctx, tx, tenantID, canonicalLeadID, exceptCandidateID, reviewer); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CandidateRepository) SetApprovedTx(ctx context.Context, tx pgx.Tx, candidateID, reviewer, matchID string) error {
	query := `
		UPDATE match_candidates SET status = 'approved', reviewed_by = $1, reviewed_at = now(), lead_match_id = $2, updated_at = now()
		WHERE id = $3
	`
	_, err := tx.Exec(ctx, query, reviewer, matchID, candidateID)
	return err
}

func (r *CandidateRepository) SetApproved(ctx context.Context, candidateID, reviewer, matchID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.SetApprovedTx(ctx, tx, candidateID, reviewer, matchID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CandidateRepository) SetRejected(ctx context.Context, candidateID, reviewer string) error {
	query := `
		UPDATE match_candidates SET status = 'rejected', reviewed_by = $1, reviewed_at = now(), updated_at = now()
		WHERE id = $2
	`
	_, err := r.pool.Exec(ctx, query, reviewer, candidateID)
	return err
}

// SweepExpired moves expired pending candidates to expired and returns them
// so the caller can re-derive affected canonicals' match_status.
func (r *CandidateRepository) SweepExpired(ctx context.Context) ([]*model.MatchCandidate, error) {
	query := `
		UPDATE match_candidates SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at < now()
		RETURNING ` + candidateColumns
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MatchCandidate
	for rows.Next() {
		c, err := scanCandidateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
