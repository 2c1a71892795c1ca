package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haloestate/leadpipe/internal/platform/crmclient"
	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/notify"
	"github.com/haloestate/leadpipe/modules/crm/model"
	"github.com/haloestate/leadpipe/pkg/pipelineerr"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCrmLeadRepository implements ports.CrmLeadRepository
type mockCrmLeadRepository struct {
	GetSyncHashFunc func(ctx context.Context, crmConnectionID, externalID string) (string, bool, error)
	UpsertFunc      func(ctx context.Context, lead *model.CrmLead) (string, bool, error)
	GetByIDFunc     func(ctx context.Context, tenantID, id string) (*model.CrmLead, error)
}

func (m *mockCrmLeadRepository) GetSyncHash(ctx context.Context, crmConnectionID, externalID string) (string, bool, error) {
	if m.GetSyncHashFunc != nil {
		return m.GetSyncHashFunc(ctx, crmConnectionID, externalID)
	}
	return "", false, nil
}

func (m *mockCrmLeadRepository) Upsert(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, lead)
	}
	return "crm-lead-1", true, nil
}

func (m *mockCrmLeadRepository) GetByID(ctx context.Context, tenantID, id string) (*model.CrmLead, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	return nil, model.ErrCrmLeadNotFound
}

// mockEmbeddingEnqueuer implements leadsports.EmbeddingEnqueuer
type mockEmbeddingEnqueuer struct {
	enqueued []string
}

func (m *mockEmbeddingEnqueuer) EnqueueTx(ctx context.Context, tx pgx.Tx, tableName, recordID, textToEmbed string) error {
	return m.Enqueue(ctx, tableName, recordID, textToEmbed)
}

func (m *mockEmbeddingEnqueuer) Enqueue(ctx context.Context, tableName, recordID, textToEmbed string) error {
	m.enqueued = append(m.enqueued, recordID)
	return nil
}

func pullerTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

func newTestPullerService(t *testing.T, crmLeads *mockCrmLeadRepository, embeddings *mockEmbeddingEnqueuer) *PullerService {
	t.Helper()
	log := pullerTestLogger(t)
	return NewPullerService(nil, crmLeads, nil, embeddings, notify.New("", "", "", log), nil, log)
}

func assignedUserID(n int) *int { return &n }

func TestPullerService_UpsertPerson(t *testing.T) {
	t.Run("counts a first-seen external id as created and enqueues an embedding", func(t *testing.T) {
		var created *model.CrmLead
		embeddings := &mockEmbeddingEnqueuer{}
		crmLeads := &mockCrmLeadRepository{
			GetSyncHashFunc: func(ctx context.Context, crmConnectionID, externalID string) (string, bool, error) {
				return "", false, nil
			},
			UpsertFunc: func(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
				lead.ID = "crm-lead-1"
				created = lead
				return lead.ID, true, nil
			},
		}
		svc := newTestPullerService(t, crmLeads, embeddings)
		person := crmclient.Person{
			ID:        "ext-1",
			FirstName: "Jane",
			LastName:  "Doe",
			Emails:    []crmclient.ContactValue{{Value: "Jane@Example.com"}},
			Phones:    []crmclient.ContactValue{{Value: "(512) 555-0101"}},
			Stage:     "lead",
		}

		c, u, err := svc.upsertPerson(context.Background(), "tenant-1", "conn-1", person, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, c)
		assert.Equal(t, 0, u)
		assert.Equal(t, "jane@example.com", *created.EmailNormalized)
		assert.Equal(t, []string{"crm-lead-1"}, embeddings.enqueued)
	})

	t.Run("counts an existing record whose hash changed as updated", func(t *testing.T) {
		embeddings := &mockEmbeddingEnqueuer{}
		crmLeads := &mockCrmLeadRepository{
			GetSyncHashFunc: func(ctx context.Context, crmConnectionID, externalID string) (string, bool, error) {
				return "stale-hash", true, nil
			},
			UpsertFunc: func(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
				lead.ID = "crm-lead-1"
				return lead.ID, true, nil
			},
		}
		svc := newTestPullerService(t, crmLeads, embeddings)
		person := crmclient.Person{ID: "ext-1", FirstName: "Jane", Stage: "lead"}

		c, u, err := svc.upsertPerson(context.Background(), "tenant-1", "conn-1", person, nil)

		require.NoError(t, err)
		assert.Equal(t, 0, c)
		assert.Equal(t, 1, u)
		assert.Equal(t, []string{"crm-lead-1"}, embeddings.enqueued)
	})

	t.Run("leaves created and updated at zero, and skips the embedding, when nothing changed", func(t *testing.T) {
		embeddings := &mockEmbeddingEnqueuer{}
		var upsertedHash string
		crmLeads := &mockCrmLeadRepository{
			GetSyncHashFunc: func(ctx context.Context, crmConnectionID, externalID string) (string, bool, error) {
				upsertedHash = computeSyncHash("", "", "Jane", "", "lead", nil, "")
				return upsertedHash, true, nil
			},
			UpsertFunc: func(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
				return "crm-lead-1", false, nil
			},
		}
		svc := newTestPullerService(t, crmLeads, embeddings)
		person := crmclient.Person{ID: "ext-1", FirstName: "Jane", Stage: "lead"}

		c, u, err := svc.upsertPerson(context.Background(), "tenant-1", "conn-1", person, nil)

		require.NoError(t, err)
		assert.Equal(t, 0, c)
		assert.Equal(t, 0, u)
		assert.Empty(t, embeddings.enqueued)
	})

	t.Run("resolves an assigned user from the passed-in user map", func(t *testing.T) {
		var created *model.CrmLead
		crmLeads := &mockCrmLeadRepository{
			UpsertFunc: func(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
				created = lead
				return "crm-lead-1", true, nil
			},
		}
		svc := newTestPullerService(t, crmLeads, &mockEmbeddingEnqueuer{})
		person := crmclient.Person{ID: "ext-1", AssignedUserID: assignedUserID(7)}
		userByID := map[string]crmclient.User{"7": {ID: "7", Name: "Dana Whitfield", Email: "dana@example.com"}}

		_, _, err := svc.upsertPerson(context.Background(), "tenant-1", "conn-1", person, userByID)

		require.NoError(t, err)
		assert.Equal(t, "7", *created.AssignedUserID)
		assert.Equal(t, "Dana Whitfield", *created.AssignedUserName)
	})

	t.Run("swallows a permanent-infra upsert error instead of failing the run", func(t *testing.T) {
		crmLeads := &mockCrmLeadRepository{
			UpsertFunc: func(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
				return "", false, pipelineerr.PermanentInfra("malformed person", errors.New("bad payload"))
			},
		}
		svc := newTestPullerService(t, crmLeads, &mockEmbeddingEnqueuer{})
		person := crmclient.Person{ID: "ext-1"}

		c, u, err := svc.upsertPerson(context.Background(), "tenant-1", "conn-1", person, nil)

		require.NoError(t, err)
		assert.Equal(t, 0, c)
		assert.Equal(t, 0, u)
	})

	t.Run("propagates a non-infra upsert error", func(t *testing.T) {
		expected := errors.New("connection reset")
		crmLeads := &mockCrmLeadRepository{
			UpsertFunc: func(ctx context.Context, lead *model.CrmLead) (string, bool, error) {
				return "", false, expected
			},
		}
		svc := newTestPullerService(t, crmLeads, &mockEmbeddingEnqueuer{})
		person := crmclient.Person{ID: "ext-1"}

		_, _, err := svc.upsertPerson(context.Background(), "tenant-1", "conn-1", person, nil)

		assert.Equal(t, expected, err)
	})
}

func TestComputeSyncHash(t *testing.T) {
	t.Run("is stable for identical inputs", func(t *testing.T) {
		uid := "7"
		a := computeSyncHash("jane@example.com", "5125550101", "Jane", "Doe", "lead", &uid, "2026-01-01")
		b := computeSyncHash("jane@example.com", "5125550101", "Jane", "Doe", "lead", &uid, "2026-01-01")
		assert.Equal(t, a, b)
	})

	t.Run("changes when any field changes", func(t *testing.T) {
		a := computeSyncHash("jane@example.com", "5125550101", "Jane", "Doe", "lead", nil, "2026-01-01")
		b := computeSyncHash("jane@example.com", "5125550101", "Jane", "Doe", "contract", nil, "2026-01-01")
		assert.NotEqual(t, a, b)
	})
}

func TestEmbeddingTextFor(t *testing.T) {
	first, last, addr, stage := "Jane", "Doe", "412 Maple St", "lead"
	lead := &model.CrmLead{FirstName: &first, LastName: &last, Address: &addr, Stage: &stage}

	assert.Equal(t, "Jane Doe 412 Maple St lead", embeddingTextFor(lead))
	assert.Equal(t, "", embeddingTextFor(&model.CrmLead{}))
}

func TestFirstContactValue(t *testing.T) {
	assert.Equal(t, "a@example.com", firstContactValue([]crmclient.ContactValue{{Value: ""}, {Value: "a@example.com"}}))
	assert.Equal(t, "", firstContactValue(nil))
}

func TestFirstAddress(t *testing.T) {
	got := firstAddress([]crmclient.AddressValue{{}, {Street: "412 Maple St", City: "Austin", State: "TX", Zip: "78701"}})
	assert.Equal(t, "412 Maple St Austin TX 78701", got)
	assert.Equal(t, "", firstAddress(nil))
}

func TestNonEmptyPtr(t *testing.T) {
	assert.Nil(t, nonEmptyPtr(""))
	require.NotNil(t, nonEmptyPtr("x"))
	assert.Equal(t, "x", *nonEmptyPtr("x"))
}

func TestPullerService_SyncLockNoopsWithoutRedis(t *testing.T) {
	svc := newTestPullerService(t, &mockCrmLeadRepository{}, &mockEmbeddingEnqueuer{})

	acquired, err := svc.acquireSyncLock(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	svc.releaseSyncLock(context.Background(), "conn-1")

	users, ok := svc.cachedUsers(context.Background(), "conn-1")
	assert.False(t, ok)
	assert.Nil(t, users)
}
