package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/haloestate/leadpipe/internal/platform/workerqueue"
	"github.com/haloestate/leadpipe/modules/embedding/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type EmbeddingTaskRepository struct {
	pool *pgxpool.Pool
}

func NewEmbeddingTaskRepository(pool *pgxpool.Pool) *EmbeddingTaskRepository {
	return &EmbeddingTaskRepository{pool: pool}
}

const enqueueEmbeddingTaskQuery = `
	INSERT INTO embedding_tasks (id, table_name, record_id, text_to_embed, status, attempts, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 'pending', 0, now(), now())
	ON CONFLICT (table_name, record_id) DO UPDATE SET
		text_to_embed = EXCLUDED.text_to_embed,
		status = 'pending',
		attempts = 0,
		last_error = NULL,
		updated_at = now()
	WHERE embedding_tasks.status != 'pending'
`

// EnqueueTx upserts a task for (table_name, record_id) using the given
// transaction, so the caller can commit it atomically alongside the record
// it's embedding text for. A pending task is left untouched; any other
// status is reset to pending with a fresh text and attempts cleared.
func (r *EmbeddingTaskRepository) EnqueueTx(ctx context.Context, tx pgx.Tx, tableName, recordID, textToEmbed string) error {
	_, err := tx.Exec(ctx, enqueueEmbeddingTaskQuery, uuid.New().String(), tableName, recordID, textToEmbed)
	return err
}

func (r *EmbeddingTaskRepository) Enqueue(ctx context.Context, tableName, recordID, textToEmbed string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.EnqueueTx(ctx, tx, tableName, recordID, textToEmbed); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const claimEmbeddingTasksQuery = `
	WITH claimed AS (
		UPDATE embedding_tasks SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM embedding_tasks
			WHERE status = 'pending' AND attempts < $1
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED LIMIT $2
		)
		RETURNING id, table_name, record_id, text_to_embed, status, attempts, last_error, created_at, updated_at
	)
	SELECT * FROM claimed
`

func (r *EmbeddingTaskRepository) ClaimPending(ctx context.Context, querier workerqueue.Querier, maxAttempts, limit int) ([]*model.EmbeddingTask, error) {
	return workerqueue.ClaimRows(ctx, querier, claimEmbeddingTasksQuery, scanEmbeddingTask, maxAttempts, limit)
}

func scanEmbeddingTask(rows pgx.Rows) (*model.EmbeddingTask, error) {
	var t model.EmbeddingTask
	if err := rows.Scan(&t.ID, &t.TableName, &t.RecordID, &t.TextToEmbed, &t.Status, &t.Attempts, &t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *EmbeddingTaskRepository) MarkCompleted(ctx context.Context, taskID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE embedding_tasks SET status = 'completed', updated_at = now() WHERE id = $1`, taskID)
	return err
}

// RevertToPending returns a task to pending, increments its attempts, and
// records the error that caused the retry. It always writes pending; moving a
// task to failed once max_attempts is reached is done by the caller instead.
func (r *EmbeddingTaskRepository) RevertToPending(ctx context.Context, taskID string, lastError string) error {
	query := `
		UPDATE embedding_tasks SET
			attempts = attempts + 1,
			last_error = $1,
			status = 'pending',
			updated_at = now()
		WHERE id = $2
	`
	_, err := r.pool.Exec(ctx, query, lastError, taskID)
	return err
}

// FailPermanently increments attempts one last time and marks the task
// failed; it never re-enters the claimable pool afterward.
func (r *EmbeddingTaskRepository) FailPermanently(ctx context.Context, taskID string, lastError string) error {
	query := `UPDATE embedding_tasks SET status = 'failed', attempts = attempts + 1, last_error = $1, updated_at = now() WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, lastError, taskID)
	return err
}

// WriteEmbedding writes the vector and embedding_text back onto the owning
// row. table_name is a small, internally controlled set of values (never
// user input), so it is safe to switch on rather than interpolate.
func (r *EmbeddingTaskRepository) WriteEmbedding(ctx context.Context, tableName, recordID string, embedding []float32, embeddingText string) error {
	var table string
	switch tableName {
	case "canonical_leads":
		table = "canonical_leads"
	case "crm_leads":
		table = "crm_leads"
	default:
		return fmt.Errorf("unsupported embedding target table %q", tableName)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET embedding = $1, embedding_text = $2, embedded_at = $3, updated_at = $3
		WHERE id = $4
	`, table)
	_, err := r.pool.Exec(ctx, query, pgvector.NewVector(embedding), embeddingText, time.Now().UTC(), recordID)
	return err
}

func (r *EmbeddingTaskRepository) Stats(ctx context.Context) (*model.Stats, error) {
	query := `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'failed')
		FROM embedding_tasks
	`
	var s model.Stats
	if err := r.pool.QueryRow(ctx, query).Scan(&s.PendingCount, &s.FailedCount); err != nil {
		return nil, err
	}
	return &s, nil
}
