package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/haloestate/leadpipe/internal/platform/embeddingclient"
	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/workerqueue"
	"github.com/haloestate/leadpipe/modules/embedding/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbeddingTaskRepository implements ports.EmbeddingTaskRepository
type mockEmbeddingTaskRepository struct {
	mu        sync.Mutex
	tasks     []*model.EmbeddingTask
	written   map[string][]float32
	completed map[string]bool
	reverted  map[string]string
	failed    map[string]string
}

func newMockEmbeddingTaskRepository(tasks []*model.EmbeddingTask) *mockEmbeddingTaskRepository {
	return &mockEmbeddingTaskRepository{
		tasks:     tasks,
		written:   map[string][]float32{},
		completed: map[string]bool{},
		reverted:  map[string]string{},
		failed:    map[string]string{},
	}
}

func (m *mockEmbeddingTaskRepository) Enqueue(ctx context.Context, tableName, recordID, textToEmbed string) error {
	return nil
}

func (m *mockEmbeddingTaskRepository) ClaimPending(ctx context.Context, querier workerqueue.Querier, maxAttempts, limit int) ([]*model.EmbeddingTask, error) {
	return m.tasks, nil
}

func (m *mockEmbeddingTaskRepository) MarkCompleted(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[taskID] = true
	return nil
}

func (m *mockEmbeddingTaskRepository) RevertToPending(ctx context.Context, taskID string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reverted[taskID] = lastError
	return nil
}

func (m *mockEmbeddingTaskRepository) FailPermanently(ctx context.Context, taskID string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[taskID] = lastError
	return nil
}

func (m *mockEmbeddingTaskRepository) WriteEmbedding(ctx context.Context, tableName, recordID string, embedding []float32, embeddingText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written[recordID] = embedding
	return nil
}

func (m *mockEmbeddingTaskRepository) Stats(ctx context.Context) (*model.Stats, error) {
	return &model.Stats{}, nil
}

func embeddingTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

func TestEmbeddingService_ApplyResult(t *testing.T) {
	t.Run("writes the vector and marks the task completed", func(t *testing.T) {
		repo := newMockEmbeddingTaskRepository(nil)
		svc := &EmbeddingService{repo: repo, maxAttempts: 3, log: embeddingTestLogger(t)}
		task := &model.EmbeddingTask{ID: "task-1", TableName: "canonical_leads", RecordID: "cl-1", Attempts: 0}

		svc.applyResult(context.Background(), task, []float32{0.1, 0.2, 0.3})

		assert.Equal(t, []float32{0.1, 0.2, 0.3}, repo.written["cl-1"])
		assert.True(t, repo.completed["task-1"])
	})
}

func TestEmbeddingService_RevertOrFail(t *testing.T) {
	t.Run("reverts to pending when attempts remain below the max", func(t *testing.T) {
		repo := newMockEmbeddingTaskRepository(nil)
		svc := &EmbeddingService{repo: repo, maxAttempts: 3, log: embeddingTestLogger(t)}
		task := &model.EmbeddingTask{ID: "task-1", Attempts: 0}

		svc.revertOrFail(context.Background(), task, "provider timeout")

		assert.Equal(t, "provider timeout", repo.reverted["task-1"])
		assert.Empty(t, repo.failed)
	})

	t.Run("fails permanently once attempts reach the max", func(t *testing.T) {
		repo := newMockEmbeddingTaskRepository(nil)
		svc := &EmbeddingService{repo: repo, maxAttempts: 3, log: embeddingTestLogger(t)}
		task := &model.EmbeddingTask{ID: "task-1", Attempts: 2}

		svc.revertOrFail(context.Background(), task, "provider timeout")

		assert.Equal(t, "provider timeout", repo.failed["task-1"])
		assert.Empty(t, repo.reverted)
	})
}

func newEmbedProvider(t *testing.T, handler func(w http.ResponseWriter, texts []string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body.Input)
	}))
}

func TestEmbeddingService_Run(t *testing.T) {
	t.Run("writes back embeddings for every claimed task", func(t *testing.T) {
		server := newEmbedProvider(t, func(w http.ResponseWriter, texts []string) {
			data := make([]map[string]any, len(texts))
			for i := range texts {
				data[i] = map[string]any{"index": i, "embedding": []float32{float32(i), float32(i) + 0.5}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		})
		defer server.Close()

		tasks := []*model.EmbeddingTask{
			{ID: "task-1", TableName: "canonical_leads", RecordID: "cl-1", TextToEmbed: "Jane Doe"},
			{ID: "task-2", TableName: "crm_leads", RecordID: "crm-1", TextToEmbed: "Dana Whitfield"},
		}
		repo := newMockEmbeddingTaskRepository(tasks)
		client := embeddingclient.New(server.URL, "test-key", "test-model", 5*time.Second)
		svc := NewEmbeddingService(repo, client, nil, 10, 3, embeddingTestLogger(t))

		processed, err := svc.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, processed)
		assert.True(t, repo.completed["task-1"])
		assert.True(t, repo.completed["task-2"])
		assert.Equal(t, []float32{0, 0.5}, repo.written["cl-1"])
		assert.Equal(t, []float32{1, 1.5}, repo.written["crm-1"])
	})

	t.Run("reverts every claimed task when the provider call fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		tasks := []*model.EmbeddingTask{
			{ID: "task-1", TableName: "canonical_leads", RecordID: "cl-1", TextToEmbed: "Jane Doe", Attempts: 0},
		}
		repo := newMockEmbeddingTaskRepository(tasks)
		client := embeddingclient.New(server.URL, "test-key", "test-model", 5*time.Second)
		svc := NewEmbeddingService(repo, client, nil, 10, 3, embeddingTestLogger(t))

		processed, err := svc.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, processed)
		assert.Contains(t, repo.reverted, "task-1")
		assert.Empty(t, repo.written)
	})

	t.Run("returns immediately when there is nothing pending", func(t *testing.T) {
		repo := newMockEmbeddingTaskRepository(nil)
		svc := NewEmbeddingService(repo, nil, nil, 10, 3, embeddingTestLogger(t))

		processed, err := svc.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, processed)
	})
}
