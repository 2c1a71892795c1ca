package repository

import (
	"context"

	"github.com/haloestate/leadpipe/modules/reporting/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) SourceSummary(ctx context.Context, tenantID string) ([]*model.SourceSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, lead_source_id, slug, display_name, total_leads, matched_leads, review_leads, unmatched_leads
		FROM report_source_summary WHERE tenant_id = $1 ORDER BY slug
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SourceSummary
	for rows.Next() {
		var s model.SourceSummary
		if err := rows.Scan(&s.TenantID, &s.LeadSourceID, &s.Slug, &s.DisplayName, &s.TotalLeads, &s.MatchedLeads, &s.ReviewLeads, &s.UnmatchedLeads); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *ReportRepository) TeamSummary(ctx context.Context, tenantID string) ([]*model.TeamSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, team_id, team_name, matched_count, avg_confidence
		FROM report_team_summary WHERE tenant_id = $1 ORDER BY team_name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TeamSummary
	for rows.Next() {
		var t model.TeamSummary
		if err := rows.Scan(&t.TenantID, &t.TeamID, &t.TeamName, &t.MatchedCount, &t.AvgConfidence); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *ReportRepository) AgentSummary(ctx context.Context, tenantID string) ([]*model.AgentSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, agent_id, agent_name, team_id, matched_count, avg_confidence
		FROM report_agent_summary WHERE tenant_id = $1 ORDER BY agent_name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AgentSummary
	for rows.Next() {
		var a model.AgentSummary
		if err := rows.Scan(&a.TenantID, &a.AgentID, &a.AgentName, &a.TeamID, &a.MatchedCount, &a.AvgConfidence); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *ReportRepository) IngestionSummary(ctx context.Context, tenantID string) ([]*model.IngestionSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, batch_id, lead_source_id, status, total_rows, parsed_rows, valid_rows, duplicate_rows, error_rows, received_at
		FROM report_ingestion_summary WHERE tenant_id = $1 ORDER BY received_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.IngestionSummary
	for rows.Next() {
		var b model.IngestionSummary
		if err := rows.Scan(&b.TenantID, &b.BatchID, &b.LeadSourceID, &b.Status, &b.TotalRows, &b.ParsedRows, &b.ValidRows, &b.DuplicateRows, &b.ErrorRows, &b.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *ReportRepository) ReviewQueue(ctx context.Context, tenantID string) ([]*model.ReviewQueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, candidate_id, canonical_lead_id, crm_lead_id, match_type, confidence_score, expires_at,
		       canonical_email, canonical_address, crm_email, crm_address
		FROM report_review_queue WHERE tenant_id = $1 ORDER BY expires_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ReviewQueueEntry
	for rows.Next() {
		var e model.ReviewQueueEntry
		if err := rows.Scan(&e.TenantID, &e.CandidateID, &e.CanonicalLeadID, &e.CrmLeadID, &e.MatchType, &e.ConfidenceScore, &e.ExpiresAt,
			&e.CanonicalEmail, &e.CanonicalAddress, &e.CrmEmail, &e.CrmAddress); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
