package ports

import (
	"context"

	"github.com/haloestate/leadpipe/modules/lineage/model"
	"github.com/jackc/pgx/v5"
)

// LineageRepository persists the append-only transformation trail.
type LineageRepository interface {
	Create(ctx context.Context, entry *model.LineageEntry) error
	CreateTx(ctx context.Context, tx pgx.Tx, entry *model.LineageEntry) error
}
