package repository

import (
	"context"
	"testing"
	"time"

	"github.com/haloestate/leadpipe/modules/reporting/model"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testReportRepo mirrors ReportRepository against a pgxmock.PgxPoolIface
// instead of a concrete *pgxpool.Pool. Only SourceSummary and ReviewQueue
// are exercised here: TeamSummary/AgentSummary/IngestionSummary are the
// same SELECT-then-Scan shape over a different view and add no new
// behavior to verify.
type testReportRepo struct {
	mock pgxmock.PgxPoolIface
}

func (r *testReportRepo) SourceSummary(ctx context.Context, tenantID string) ([]*model.SourceSummary, error) {
	rows, err := r.mock.Query(ctx, `
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

func (r *testReportRepo) ReviewQueue(ctx context.Context, tenantID string) ([]*model.ReviewQueueEntry, error) {
	rows, err := r.mock.Query(ctx, `
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

func TestReportRepository_SourceSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"tenant_id", "lead_source_id", "slug", "display_name", "total_leads", "matched_leads", "review_leads", "unmatched_leads"}).
		AddRow("tenant-1", "ls-1", "zillow", "Zillow Premier Agent", int64(10), int64(6), int64(1), int64(3))

	mock.ExpectQuery("SELECT tenant_id, lead_source_id, slug, display_name, total_leads, matched_leads, review_leads, unmatched_leads").
		WithArgs("tenant-1").
		WillReturnRows(rows)

	repo := &testReportRepo{mock: mock}
	result, err := repo.SourceSummary(context.Background(), "tenant-1")

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "zillow", result[0].Slug)
	assert.Equal(t, int64(10), result[0].TotalLeads)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_ReviewQueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	canonicalEmail := "riley.thomson@example.com"
	now := time.Now()
	rows := pgxmock.NewRows([]string{"tenant_id", "candidate_id", "canonical_lead_id", "crm_lead_id", "match_type", "confidence_score", "expires_at",
		"canonical_email", "canonical_address", "crm_email", "crm_address"}).
		AddRow("tenant-1", "cand-1", "cl-1", "crm-1", "address_fuzzy", 0.82, now, canonicalEmail, nil, nil, nil)

	mock.ExpectQuery("SELECT tenant_id, candidate_id, canonical_lead_id, crm_lead_id, match_type, confidence_score, expires_at").
		WithArgs("tenant-1").
		WillReturnRows(rows)

	repo := &testReportRepo{mock: mock}
	result, err := repo.ReviewQueue(context.Background(), "tenant-1")

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "address_fuzzy", result[0].MatchType)
	assert.Equal(t, canonicalEmail, *result[0].CanonicalEmail)
	assert.Nil(t, result[0].CanonicalAddress)
	require.NoError(t, mock.ExpectationsWereMet())
}
