package ports

import (
	"context"

	"github.com/haloestate/leadpipe/modules/leadsources/model"
)

// LeadSourceRepository defines data access for configured feeds.
type LeadSourceRepository interface {
	Create(ctx context.Context, source *model.LeadSource) error
	GetBySlug(ctx context.Context, tenantID, slug string) (*model.LeadSource, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.LeadSource, error)
	List(ctx context.Context, tenantID string) ([]*model.LeadSource, error)
}
