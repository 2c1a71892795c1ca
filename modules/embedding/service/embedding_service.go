package service

import (
	"context"
	"fmt"

	"github.com/haloestate/leadpipe/internal/platform/embeddingclient"
	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/workerqueue"
	"github.com/haloestate/leadpipe/modules/embedding/model"
	"github.com/haloestate/leadpipe/modules/embedding/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// resultApplyConcurrency bounds how many per-task vector writes run at once
// after a batch provider call returns.
const resultApplyConcurrency = 8

// EmbeddingService implements the Embedding Queue Worker: claim a batch,
// send it to the provider in one request, and realign the results back
// onto their owning rows.
type EmbeddingService struct {
	repo        ports.EmbeddingTaskRepository
	client      *embeddingclient.Client
	pool        workerqueue.Querier
	batchSize   int
	maxAttempts int
	log         *logger.Logger
}

func NewEmbeddingService(repo ports.EmbeddingTaskRepository, client *embeddingclient.Client, pool workerqueue.Querier, batchSize, maxAttempts int, log *logger.Logger) *EmbeddingService {
	return &EmbeddingService{repo: repo, client: client, pool: pool, batchSize: batchSize, maxAttempts: maxAttempts, log: log}
}

// Run claims up to batchSize pending tasks, sends them to the embedding
// provider as a single batch, and writes vectors back. Returns the number of
// tasks processed (successfully or not).
func (s *EmbeddingService) Run(ctx context.Context) (int, error) {
	tasks, err := s.repo.ClaimPending(ctx, s.pool, s.maxAttempts, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim embedding tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(tasks))
	for i, t := range tasks {
		texts[i] = t.TextToEmbed
	}

	embeddings, err := s.client.Embed(ctx, texts)
	if err != nil {
		s.log.Warn("embedding batch failed, reverting all claimed tasks", zap.Int("count", len(tasks)), zap.Error(err))
		for _, t := range tasks {
			s.revertOrFail(ctx, t, err.Error())
		}
		return len(tasks), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resultApplyConcurrency)
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			s.applyResult(gctx, t, embeddings[i])
			return nil
		})
	}
	_ = g.Wait()

	return len(tasks), nil
}

// applyResult writes one task's vector back and marks it completed,
// reverting or failing it on error. Run concurrently across a batch's
// tasks since each operates on an independent row.
func (s *EmbeddingService) applyResult(ctx context.Context, t *model.EmbeddingTask, embedding []float32) {
	if writeErr := s.repo.WriteEmbedding(ctx, t.TableName, t.RecordID, embedding, t.TextToEmbed); writeErr != nil {
		s.log.Error("write embedding failed", zap.String("task_id", t.ID), zap.String("table", t.TableName), zap.String("record_id", t.RecordID), zap.Error(writeErr))
		s.revertOrFail(ctx, t, writeErr.Error())
		return
	}
	if err := s.repo.MarkCompleted(ctx, t.ID); err != nil {
		s.log.Error("mark embedding task completed failed", zap.String("task_id", t.ID), zap.Error(err))
	}
}

func (s *EmbeddingService) revertOrFail(ctx context.Context, t *model.EmbeddingTask, lastError string) {
	if t.Attempts+1 >= s.maxAttempts {
		if err := s.repo.FailPermanently(ctx, t.ID, lastError); err != nil {
			s.log.Error("mark embedding task failed failed", zap.String("task_id", t.ID), zap.Error(err))
		}
		return
	}
	if err := s.repo.RevertToPending(ctx, t.ID, lastError); err != nil {
		s.log.Error("revert embedding task to pending failed", zap.String("task_id", t.ID), zap.Error(err))
	}
}

// Stats exposes {pending_count, failed_count} after a run.
func (s *EmbeddingService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.repo.Stats(ctx)
}
