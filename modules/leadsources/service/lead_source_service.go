package service

import (
	"context"

	"github.com/haloestate/leadpipe/modules/leadsources/model"
	"github.com/haloestate/leadpipe/modules/leadsources/ports"
)

type LeadSourceService struct {
	repo ports.LeadSourceRepository
}

func NewLeadSourceService(repo ports.LeadSourceRepository) *LeadSourceService {
	return &LeadSourceService{repo: repo}
}

func (s *LeadSourceService) Create(ctx context.Context, source *model.LeadSource) error {
	if source.Slug == "" {
		return model.ErrSlugRequired
	}
	return s.repo.Create(ctx, source)
}

func (s *LeadSourceService) GetBySlug(ctx context.Context, tenantID, slug string) (*model.LeadSource, error) {
	return s.repo.GetBySlug(ctx, tenantID, slug)
}

func (s *LeadSourceService) List(ctx context.Context, tenantID string) ([]*model.LeadSource, error) {
	return s.repo.List(ctx, tenantID)
}
