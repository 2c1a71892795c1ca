package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// EmbeddingEnqueuer schedules a row for the embedding worker. Implemented by
// the embedding module; declared here so the Transformer can depend on the
// narrow capability it needs without importing the embedding module's
// persistence details.
type EmbeddingEnqueuer interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, tableName, recordID, textToEmbed string) error
	Enqueue(ctx context.Context, tableName, recordID, textToEmbed string) error
}
