package ports

import (
	"context"

	"github.com/haloestate/leadpipe/internal/platform/workerqueue"
	"github.com/haloestate/leadpipe/modules/embedding/model"
)

// EmbeddingTaskRepository manages the embedding work queue and writes
// finished vectors back onto their owning rows.
type EmbeddingTaskRepository interface {
	Enqueue(ctx context.Context, tableName, recordID, textToEmbed string) error
	ClaimPending(ctx context.Context, querier workerqueue.Querier, maxAttempts, limit int) ([]*model.EmbeddingTask, error)
	MarkCompleted(ctx context.Context, taskID string) error
	RevertToPending(ctx context.Context, taskID string, lastError string) error
	FailPermanently(ctx context.Context, taskID string, lastError string) error
	WriteEmbedding(ctx context.Context, tableName, recordID string, embedding []float32, embeddingText string) error
	Stats(ctx context.Context) (*model.Stats, error)
}
