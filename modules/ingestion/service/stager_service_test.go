package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/modules/ingestion/model"
	leadsourcesmodel "github.com/haloestate/leadpipe/modules/leadsources/model"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBatchRepository implements ports.BatchRepository
type mockBatchRepository struct {
	GetByFileHashFunc           func(ctx context.Context, tenantID, fileHash string) (*model.Batch, error)
	GetByIDFunc                 func(ctx context.Context, tenantID, id string) (*model.Batch, error)
	CreateFunc                  func(ctx context.Context, batch *model.Batch) error
	UpdateStatusAndCountersFunc func(ctx context.Context, batch *model.Batch) error
	AppendLogFunc               func(ctx context.Context, batchID string, entry string) error
	CreateRawRowsFunc           func(ctx context.Context, rows []*model.RawRow) error
	ListValidUnmatchedRowsFunc  func(ctx context.Context, batchID string) ([]*model.RawRow, error)
	MarkDuplicateFunc           func(ctx context.Context, rowID, duplicateOf string) error
	LinkCanonicalFunc           func(ctx context.Context, rowID, canonicalLeadID string) error
}

func (m *mockBatchRepository) GetByFileHash(ctx context.Context, tenantID, fileHash string) (*model.Batch, error) {
	if m.GetByFileHashFunc != nil {
		return m.GetByFileHashFunc(ctx, tenantID, fileHash)
	}
	return nil, model.ErrBatchNotFound
}

func (m *mockBatchRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Batch, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	return nil, model.ErrBatchNotFound
}

func (m *mockBatchRepository) Create(ctx context.Context, batch *model.Batch) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, batch)
	}
	return nil
}

func (m *mockBatchRepository) UpdateStatusAndCounters(ctx context.Context, batch *model.Batch) error {
	if m.UpdateStatusAndCountersFunc != nil {
		return m.UpdateStatusAndCountersFunc(ctx, batch)
	}
	return nil
}

func (m *mockBatchRepository) AppendLog(ctx context.Context, batchID string, entry string) error {
	if m.AppendLogFunc != nil {
		return m.AppendLogFunc(ctx, batchID, entry)
	}
	return nil
}

func (m *mockBatchRepository) CreateRawRows(ctx context.Context, rows []*model.RawRow) error {
	if m.CreateRawRowsFunc != nil {
		return m.CreateRawRowsFunc(ctx, rows)
	}
	return nil
}

func (m *mockBatchRepository) ListValidUnmatchedRows(ctx context.Context, batchID string) ([]*model.RawRow, error) {
	if m.ListValidUnmatchedRowsFunc != nil {
		return m.ListValidUnmatchedRowsFunc(ctx, batchID)
	}
	return nil, nil
}

func (m *mockBatchRepository) MarkDuplicateTx(ctx context.Context, tx pgx.Tx, rowID, duplicateOf string) error {
	return m.MarkDuplicate(ctx, rowID, duplicateOf)
}

func (m *mockBatchRepository) MarkDuplicate(ctx context.Context, rowID, duplicateOf string) error {
	if m.MarkDuplicateFunc != nil {
		return m.MarkDuplicateFunc(ctx, rowID, duplicateOf)
	}
	return nil
}

func (m *mockBatchRepository) LinkCanonicalTx(ctx context.Context, tx pgx.Tx, rowID, canonicalLeadID string) error {
	return m.LinkCanonical(ctx, rowID, canonicalLeadID)
}

func (m *mockBatchRepository) LinkCanonical(ctx context.Context, rowID, canonicalLeadID string) error {
	if m.LinkCanonicalFunc != nil {
		return m.LinkCanonicalFunc(ctx, rowID, canonicalLeadID)
	}
	return nil
}

// mockLeadSourceRepository implements leadsourcesports.LeadSourceRepository
type mockLeadSourceRepository struct {
	GetBySlugFunc func(ctx context.Context, tenantID, slug string) (*leadsourcesmodel.LeadSource, error)
	GetByIDFunc   func(ctx context.Context, tenantID, id string) (*leadsourcesmodel.LeadSource, error)
}

func (m *mockLeadSourceRepository) Create(ctx context.Context, source *leadsourcesmodel.LeadSource) error {
	return nil
}

func (m *mockLeadSourceRepository) GetBySlug(ctx context.Context, tenantID, slug string) (*leadsourcesmodel.LeadSource, error) {
	if m.GetBySlugFunc != nil {
		return m.GetBySlugFunc(ctx, tenantID, slug)
	}
	return nil, leadsourcesmodel.ErrLeadSourceNotFound
}

func (m *mockLeadSourceRepository) GetByID(ctx context.Context, tenantID, id string) (*leadsourcesmodel.LeadSource, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	return nil, leadsourcesmodel.ErrLeadSourceNotFound
}

func (m *mockLeadSourceRepository) List(ctx context.Context, tenantID string) ([]*leadsourcesmodel.LeadSource, error) {
	return nil, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

func TestStagerService_Stage(t *testing.T) {
	tenantID := "tenant-1"

	t.Run("short-circuits on a previously staged file", func(t *testing.T) {
		existing := &model.Batch{ID: "batch-1", Status: model.BatchStatusParsed}
		leadSources := &mockLeadSourceRepository{
			GetBySlugFunc: func(ctx context.Context, tenantID, slug string) (*leadsourcesmodel.LeadSource, error) {
				return &leadsourcesmodel.LeadSource{ID: "ls-1", Slug: slug}, nil
			},
		}
		batches := &mockBatchRepository{
			GetByFileHashFunc: func(ctx context.Context, tenantID, fileHash string) (*model.Batch, error) {
				return existing, nil
			},
		}
		svc := NewStagerService(batches, leadSources, nil, testLogger(t))

		result, err := svc.Stage(context.Background(), tenantID, "zillow", "leads.csv", []byte("a,b\n1,2\n"), OriginMetadata{Channel: "api_upload"})

		require.NoError(t, err)
		assert.True(t, result.Deduplicated)
		assert.Same(t, existing, result.Batch)
	})

	t.Run("creates a new pending batch for an unseen file", func(t *testing.T) {
		var created *model.Batch
		leadSources := &mockLeadSourceRepository{
			GetBySlugFunc: func(ctx context.Context, tenantID, slug string) (*leadsourcesmodel.LeadSource, error) {
				return &leadsourcesmodel.LeadSource{ID: "ls-1", Slug: slug}, nil
			},
		}
		batches := &mockBatchRepository{
			CreateFunc: func(ctx context.Context, batch *model.Batch) error {
				batch.ID = "batch-new"
				created = batch
				return nil
			},
		}
		svc := NewStagerService(batches, leadSources, nil, testLogger(t))

		result, err := svc.Stage(context.Background(), tenantID, "zillow", "leads.csv", []byte("a,b\n1,2\n"), OriginMetadata{Channel: "api_upload", Detail: "upload.csv"})

		require.NoError(t, err)
		assert.False(t, result.Deduplicated)
		assert.Equal(t, "ls-1", created.LeadSourceID)
		assert.Equal(t, model.BatchStatusPending, created.Status)
		assert.Len(t, created.Log, 1)
	})

	t.Run("propagates an unknown lead source", func(t *testing.T) {
		leadSources := &mockLeadSourceRepository{}
		svc := NewStagerService(&mockBatchRepository{}, leadSources, nil, testLogger(t))

		result, err := svc.Stage(context.Background(), tenantID, "unknown", "leads.csv", []byte("a\n1\n"), OriginMetadata{})

		assert.Nil(t, result)
		assert.Equal(t, leadsourcesmodel.ErrLeadSourceNotFound, err)
	})

	t.Run("propagates a batch lookup failure that isn't not-found", func(t *testing.T) {
		expected := errors.New("connection reset")
		leadSources := &mockLeadSourceRepository{
			GetBySlugFunc: func(ctx context.Context, tenantID, slug string) (*leadsourcesmodel.LeadSource, error) {
				return &leadsourcesmodel.LeadSource{ID: "ls-1"}, nil
			},
		}
		batches := &mockBatchRepository{
			GetByFileHashFunc: func(ctx context.Context, tenantID, fileHash string) (*model.Batch, error) {
				return nil, expected
			},
		}
		svc := NewStagerService(batches, leadSources, nil, testLogger(t))

		result, err := svc.Stage(context.Background(), tenantID, "zillow", "leads.csv", []byte("a\n1\n"), OriginMetadata{})

		assert.Nil(t, result)
		assert.Equal(t, expected, err)
	})
}
