package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haloestate/leadpipe/modules/leadsources/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLeadSourceRepository implements ports.LeadSourceRepository
type mockLeadSourceRepository struct {
	CreateFunc    func(ctx context.Context, source *model.LeadSource) error
	GetBySlugFunc func(ctx context.Context, tenantID, slug string) (*model.LeadSource, error)
	GetByIDFunc   func(ctx context.Context, tenantID, id string) (*model.LeadSource, error)
	ListFunc      func(ctx context.Context, tenantID string) ([]*model.LeadSource, error)
}

func (m *mockLeadSourceRepository) Create(ctx context.Context, source *model.LeadSource) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, source)
	}
	return nil
}

func (m *mockLeadSourceRepository) GetBySlug(ctx context.Context, tenantID, slug string) (*model.LeadSource, error) {
	if m.GetBySlugFunc != nil {
		return m.GetBySlugFunc(ctx, tenantID, slug)
	}
	return nil, nil
}

func (m *mockLeadSourceRepository) GetByID(ctx context.Context, tenantID, id string) (*model.LeadSource, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	return nil, nil
}

func (m *mockLeadSourceRepository) List(ctx context.Context, tenantID string) ([]*model.LeadSource, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, tenantID)
	}
	return nil, nil
}

func TestLeadSourceService_Create(t *testing.T) {
	t.Run("rejects missing slug", func(t *testing.T) {
		svc := NewLeadSourceService(&mockLeadSourceRepository{})

		err := svc.Create(context.Background(), &model.LeadSource{DisplayName: "Zillow"})

		assert.Equal(t, model.ErrSlugRequired, err)
	})

	t.Run("creates a configured source", func(t *testing.T) {
		var created *model.LeadSource
		mockRepo := &mockLeadSourceRepository{
			CreateFunc: func(ctx context.Context, source *model.LeadSource) error {
				created = source
				return nil
			},
		}
		svc := NewLeadSourceService(mockRepo)

		err := svc.Create(context.Background(), &model.LeadSource{Slug: "zillow", DisplayName: "Zillow Premier Agent"})

		require.NoError(t, err)
		assert.Equal(t, "zillow", created.Slug)
	})

	t.Run("propagates repository error", func(t *testing.T) {
		expected := errors.New("db unavailable")
		mockRepo := &mockLeadSourceRepository{
			CreateFunc: func(ctx context.Context, source *model.LeadSource) error { return expected },
		}
		svc := NewLeadSourceService(mockRepo)

		err := svc.Create(context.Background(), &model.LeadSource{Slug: "opcity"})

		assert.Equal(t, expected, err)
	})
}

func TestLeadSourceService_GetBySlug(t *testing.T) {
	mockRepo := &mockLeadSourceRepository{
		GetBySlugFunc: func(ctx context.Context, tenantID, slug string) (*model.LeadSource, error) {
			assert.Equal(t, "tenant-1", tenantID)
			assert.Equal(t, "realtor", slug)
			return &model.LeadSource{ID: "ls-1", Slug: slug}, nil
		},
	}
	svc := NewLeadSourceService(mockRepo)

	result, err := svc.GetBySlug(context.Background(), "tenant-1", "realtor")

	require.NoError(t, err)
	assert.Equal(t, "ls-1", result.ID)
}

func TestLeadSource_FirstNonEmpty(t *testing.T) {
	source := &model.LeadSource{
		FieldMapping: model.FieldMapping{
			"email": {"Email", "lead_email"},
		},
	}

	t.Run("finds value from first matching column", func(t *testing.T) {
		row := map[string]string{"Email": "  jane@example.com  "}
		v, ok := source.FirstNonEmpty(row, "email")
		assert.True(t, ok)
		assert.Equal(t, "jane@example.com", v)
	})

	t.Run("falls through to the next candidate column", func(t *testing.T) {
		row := map[string]string{"Email": "", "lead_email": "jane@example.com"}
		v, ok := source.FirstNonEmpty(row, "email")
		assert.True(t, ok)
		assert.Equal(t, "jane@example.com", v)
	})

	t.Run("reports no value when every candidate is blank", func(t *testing.T) {
		row := map[string]string{"Email": "   "}
		_, ok := source.FirstNonEmpty(row, "email")
		assert.False(t, ok)
	})

	t.Run("reports no value for an unmapped field", func(t *testing.T) {
		_, ok := source.FirstNonEmpty(map[string]string{}, "phone")
		assert.False(t, ok)
	})
}
