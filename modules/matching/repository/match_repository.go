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

type MatchRepository struct {
	pool *pgxpool.Pool
}

func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// CreateTx writes through the transaction holding the Matcher's claim lock
// (SELECT ... FOR UPDATE SKIP LOCKED on canonical_leads), so the insert
// commits atomically with the canonical's match_status update.
func (r *MatchRepository) CreateTx(ctx context.Context, tx pgx.Tx, match *model.Match) error {
	match.ID = uuid.New().String()
	now := time.Now().UTC()
	match.CreatedAt = now
	match.UpdatedAt = now
	if match.Status == "" {
		match.Status = model.MatchRowStatusActive
	}
	detailsJSON, err := json.Marshal(match.MatchDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO matches (
			id, tenant_id, canonical_lead_id, crm_lead_id, match_type, confidence, match_details,
			matched_by, matched_by_user_id, attributed_team_id, attributed_agent_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(ctx, query,
		match.ID, match.TenantID, match.CanonicalLeadID, match.CrmLeadID, match.MatchType, match.Confidence, detailsJSON,
		match.MatchedBy, match.MatchedByUserID, match.AttributedTeamID, match.AttributedAgentID, match.Status, match.CreatedAt, match.UpdatedAt,
	)
	return err
}

// Create runs outside a claim transaction, for the Review Resolver's
// approve path.
func (r *MatchRepository) Create(ctx context.Context, match *model.Match) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.CreateTx(ctx, tx, match); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *MatchRepository) GetActiveByCanonical(ctx context.Context, tenantID, canonicalLeadID string) (*model.Match, error) {
	query := `
		SELECT id, tenant_id, canonical_lead_id, crm_lead_id, match_type, confidence, match_details,
			matched_by, matched_by_user_id, attributed_team_id, attributed_agent_id, status, created_at, updated_at
		FROM matches
		WHERE tenant_id = $1 AND canonical_lead_id = $2 AND status = 'active'
	`
	var m model.Match
	var detailsJSON []byte
	err := r.pool.QueryRow(ctx, query, tenantID, canonicalLeadID).Scan(
		&m.ID, &m.TenantID, &m.CanonicalLeadID, &m.CrmLeadID, &m.MatchType, &m.Confidence, &detailsJSON,
		&m.MatchedBy, &m.MatchedByUserID, &m.AttributedTeamID, &m.AttributedAgentID, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrMatchNotFound
		}
		return nil, err
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &m.MatchDetails); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
