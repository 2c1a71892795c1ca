package ports

import (
	"context"

	"github.com/haloestate/leadpipe/modules/reporting/model"
)

// ReportRepository reads the reporting views. All methods are scoped to a
// tenant; the views themselves carry tenant_id so a single query per report
// suffices.
type ReportRepository interface {
	SourceSummary(ctx context.Context, tenantID string) ([]*model.SourceSummary, error)
	TeamSummary(ctx context.Context, tenantID string) ([]*model.TeamSummary, error)
	AgentSummary(ctx context.Context, tenantID string) ([]*model.AgentSummary, error)
	IngestionSummary(ctx context.Context, tenantID string) ([]*model.IngestionSummary, error)
	ReviewQueue(ctx context.Context, tenantID string) ([]*model.ReviewQueueEntry, error)
}
