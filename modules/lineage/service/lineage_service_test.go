package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haloestate/leadpipe/modules/lineage/model"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLineageRepository implements ports.LineageRepository
type mockLineageRepository struct {
	CreateFunc   func(ctx context.Context, entry *model.LineageEntry) error
	CreateTxFunc func(ctx context.Context, tx pgx.Tx, entry *model.LineageEntry) error
}

func (m *mockLineageRepository) Create(ctx context.Context, entry *model.LineageEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

func (m *mockLineageRepository) CreateTx(ctx context.Context, tx pgx.Tx, entry *model.LineageEntry) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, entry)
	}
	return nil
}

func TestLineageService_Record(t *testing.T) {
	t.Run("writes the entry through the repository", func(t *testing.T) {
		var recorded *model.LineageEntry
		mockRepo := &mockLineageRepository{
			CreateFunc: func(ctx context.Context, entry *model.LineageEntry) error {
				recorded = entry
				return nil
			},
		}
		svc := NewLineageService(mockRepo)

		entry := &model.LineageEntry{
			TenantID:    "tenant-1",
			SourceTable: "batches",
			TargetTable: "canonical_leads",
			Operation:   model.OperationDerive,
		}
		err := svc.Record(context.Background(), entry)

		require.NoError(t, err)
		assert.Same(t, entry, recorded)
	})

	t.Run("propagates repository error", func(t *testing.T) {
		expected := errors.New("write failed")
		mockRepo := &mockLineageRepository{
			CreateFunc: func(ctx context.Context, entry *model.LineageEntry) error { return expected },
		}
		svc := NewLineageService(mockRepo)

		err := svc.Record(context.Background(), &model.LineageEntry{})

		assert.Equal(t, expected, err)
	})
}

func TestLineageService_RecordTx(t *testing.T) {
	var txSeen pgx.Tx
	mockRepo := &mockLineageRepository{
		CreateTxFunc: func(ctx context.Context, tx pgx.Tx, entry *model.LineageEntry) error {
			txSeen = tx
			return nil
		},
	}
	svc := NewLineageService(mockRepo)

	err := svc.RecordTx(context.Background(), nil, &model.LineageEntry{Operation: model.OperationCreate})

	require.NoError(t, err)
	assert.Nil(t, txSeen)
}
