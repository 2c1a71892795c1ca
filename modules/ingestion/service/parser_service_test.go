package service

import (
	"context"
	"testing"

	"github.com/haloestate/leadpipe/internal/platform/notify"
	"github.com/haloestate/leadpipe/modules/ingestion/model"
	leadsourcesmodel "github.com/haloestate/leadpipe/modules/leadsources/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotifier(t *testing.T) *notify.Notifier {
	t.Helper()
	return notify.New("", "", "", testLogger(t))
}

func TestParserService_Parse(t *testing.T) {
	source := &leadsourcesmodel.LeadSource{
		ID: "ls-1",
		CSVConfig: leadsourcesmodel.CSVConfig{
			Delimiter: ",",
			HasHeader: true,
		},
		FieldMapping: leadsourcesmodel.FieldMapping{
			"email": {"Email"},
		},
		ValidationRules: leadsourcesmodel.ValidationRules{
			RequiredFields: []string{"email"},
		},
	}

	t.Run("splits rows and marks validity per required fields", func(t *testing.T) {
		var inserted []*model.RawRow
		var updated *model.Batch
		leadSources := &mockLeadSourceRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*leadsourcesmodel.LeadSource, error) {
				return source, nil
			},
		}
		batches := &mockBatchRepository{
			CreateRawRowsFunc: func(ctx context.Context, rows []*model.RawRow) error {
				inserted = rows
				return nil
			},
			UpdateStatusAndCountersFunc: func(ctx context.Context, batch *model.Batch) error {
				updated = batch
				return nil
			},
		}
		svc := NewParserService(batches, leadSources, testNotifier(t), testLogger(t))

		batch := &model.Batch{ID: "batch-1", TenantID: "tenant-1", LeadSourceID: "ls-1"}
		csv := "Email,Name\njane@example.com,Jane\n,Missing Email\n"

		err := svc.Parse(context.Background(), batch, []byte(csv))

		require.NoError(t, err)
		require.Len(t, inserted, 2)
		assert.True(t, inserted[0].IsValid)
		assert.False(t, inserted[1].IsValid)
		assert.Contains(t, inserted[1].ValidationErrors, "missing required field: email")
		// row_number counts the header line, so the first data row is 2.
		assert.Equal(t, 2, inserted[0].RowNumber)
		assert.Equal(t, 3, inserted[1].RowNumber)

		assert.Equal(t, model.BatchStatusParsed, updated.Status)
		assert.Equal(t, 2, updated.Counters.Total)
		assert.Equal(t, 1, updated.Counters.Valid)
		assert.Equal(t, 1, updated.Counters.ErrorRows)
	})

	t.Run("honors a tab delimiter and skip_rows", func(t *testing.T) {
		tabSource := &leadsourcesmodel.LeadSource{
			ID: "ls-2",
			CSVConfig: leadsourcesmodel.CSVConfig{
				Delimiter: "\t",
				HasHeader: true,
				SkipRows:  1,
			},
			FieldMapping: leadsourcesmodel.FieldMapping{"email": {"ContactEmail"}},
		}
		var inserted []*model.RawRow
		leadSources := &mockLeadSourceRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*leadsourcesmodel.LeadSource, error) {
				return tabSource, nil
			},
		}
		batches := &mockBatchRepository{
			CreateRawRowsFunc: func(ctx context.Context, rows []*model.RawRow) error {
				inserted = rows
				return nil
			},
		}
		svc := NewParserService(batches, leadSources, testNotifier(t), testLogger(t))

		batch := &model.Batch{ID: "batch-2", TenantID: "tenant-1", LeadSourceID: "ls-2"}
		tsv := "# export banner, ignore\nContactEmail\tFName\nriley@example.com\tRiley\n"

		err := svc.Parse(context.Background(), batch, []byte(tsv))

		require.NoError(t, err)
		require.Len(t, inserted, 1)
		assert.Equal(t, "riley@example.com", inserted[0].RawData["ContactEmail"])
		// row_number counts the banner line and the header, so the only
		// data row is 3, not 1.
		assert.Equal(t, 3, inserted[0].RowNumber)
	})

	t.Run("fails the batch and alerts ops when the lead source can't be resolved", func(t *testing.T) {
		var updated *model.Batch
		leadSources := &mockLeadSourceRepository{}
		batches := &mockBatchRepository{
			UpdateStatusAndCountersFunc: func(ctx context.Context, batch *model.Batch) error {
				updated = batch
				return nil
			},
		}
		svc := NewParserService(batches, leadSources, testNotifier(t), testLogger(t))

		batch := &model.Batch{ID: "batch-3", TenantID: "tenant-1", LeadSourceID: "missing"}
		err := svc.Parse(context.Background(), batch, []byte("a,b\n1,2\n"))

		require.Error(t, err)
		assert.Equal(t, model.BatchStatusFailed, updated.Status)
		assert.Len(t, updated.Errors, 1)
	})

	t.Run("rejects an unparseable email_regex without touching raw rows", func(t *testing.T) {
		badSource := &leadsourcesmodel.LeadSource{
			ID:              "ls-3",
			CSVConfig:       leadsourcesmodel.CSVConfig{Delimiter: ",", HasHeader: true},
			ValidationRules: leadsourcesmodel.ValidationRules{EmailRegex: "(["},
		}
		createRawRowsCalled := false
		leadSources := &mockLeadSourceRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*leadsourcesmodel.LeadSource, error) {
				return badSource, nil
			},
		}
		batches := &mockBatchRepository{
			CreateRawRowsFunc: func(ctx context.Context, rows []*model.RawRow) error {
				createRawRowsCalled = true
				return nil
			},
		}
		svc := NewParserService(batches, leadSources, testNotifier(t), testLogger(t))

		batch := &model.Batch{ID: "batch-4", TenantID: "tenant-1", LeadSourceID: "ls-3"}
		err := svc.Parse(context.Background(), batch, []byte("Email\njane@example.com\n"))

		require.Error(t, err)
		assert.False(t, createRawRowsCalled)
	})
}
