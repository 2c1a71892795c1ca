package ports

import (
	"context"

	"github.com/haloestate/leadpipe/modules/ingestion/model"
	"github.com/jackc/pgx/v5"
)

// BatchRepository persists Batch rows and the raw CSV rows staged under them.
type BatchRepository interface {
	GetByFileHash(ctx context.Context, tenantID, fileHash string) (*model.Batch, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Batch, error)
	Create(ctx context.Context, batch *model.Batch) error
	UpdateStatusAndCounters(ctx context.Context, batch *model.Batch) error
	AppendLog(ctx context.Context, batchID string, entry string) error

	CreateRawRows(ctx context.Context, rows []*model.RawRow) error
	ListValidUnmatchedRows(ctx context.Context, batchID string) ([]*model.RawRow, error)
	MarkDuplicateTx(ctx context.Context, tx pgx.Tx, rowID string, duplicateOf string) error
	MarkDuplicate(ctx context.Context, rowID string, duplicateOf string) error
	LinkCanonicalTx(ctx context.Context, tx pgx.Tx, rowID string, canonicalLeadID string) error
	LinkCanonical(ctx context.Context, rowID string, canonicalLeadID string) error
}
