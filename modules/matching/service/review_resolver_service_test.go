package service

import (
	"context"
	"errors"
	"testing"
	"time"

	agentsmodel "github.com/haloestate/leadpipe/modules/agents/model"
	crmmodel "github.com/haloestate/leadpipe/modules/crm/model"
	leadsmodel "github.com/haloestate/leadpipe/modules/leads/model"
	lineagemodel "github.com/haloestate/leadpipe/modules/lineage/model"
	lineageports "github.com/haloestate/leadpipe/modules/lineage/ports"
	lineageservice "github.com/haloestate/leadpipe/modules/lineage/service"
	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/haloestate/leadpipe/modules/matching/ports"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCandidateRepository implements ports.CandidateRepository
type mockCandidateRepository struct {
	GetByIDFunc                func(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error)
	SetApprovedFunc            func(ctx context.Context, candidateID, reviewer, matchID string) error
	SetRejectedFunc            func(ctx context.Context, candidateID, reviewer string) error
	RejectOtherPendingFunc     func(ctx context.Context, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error
	ListPendingByCanonicalFunc func(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error)
	SweepExpiredFunc           func(ctx context.Context) ([]*model.MatchCandidate, error)
}

func (m *mockCandidateRepository) UpsertTx(ctx context.Context, tx pgx.Tx, candidate *model.MatchCandidate) error {
	return nil
}
func (m *mockCandidateRepository) Upsert(ctx context.Context, candidate *model.MatchCandidate) error {
	return nil
}
func (m *mockCandidateRepository) ListPendingByCanonical(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error) {
	if m.ListPendingByCanonicalFunc != nil {
		return m.ListPendingByCanonicalFunc(ctx, tenantID, canonicalLeadID)
	}
	return nil, nil
}
func (m *mockCandidateRepository) ExpireStaleForCanonicalTx(ctx context.Context, tx pgx.Tx, tenantID, canonicalLeadID string, keepCrmLeadIDs []string) error {
	return nil
}
func (m *mockCandidateRepository) ExpireStaleForCanonical(ctx context.Context, tenantID, canonicalLeadID string, keepCrmLeadIDs []string, reason string) error {
	return nil
}
func (m *mockCandidateRepository) GetByID(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	return nil, model.ErrCandidateNotFound
}
func (m *mockCandidateRepository) RejectOtherPendingTx(ctx context.Context, tx pgx.Tx, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error {
	if m.RejectOtherPendingFunc != nil {
		return m.RejectOtherPendingFunc(ctx, tenantID, canonicalLeadID, exceptCandidateID, reviewer)
	}
	return nil
}
func (m *mockCandidateRepository) RejectOtherPending(ctx context.Context, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error {
	return m.RejectOtherPendingTx(ctx, nil, tenantID, canonicalLeadID, exceptCandidateID, reviewer)
}
func (m *mockCandidateRepository) SetApprovedTx(ctx context.Context, tx pgx.Tx, candidateID, reviewer, matchID string) error {
	if m.SetApprovedFunc != nil {
		return m.SetApprovedFunc(ctx, candidateID, reviewer, matchID)
	}
	return nil
}
func (m *mockCandidateRepository) SetApproved(ctx context.Context, candidateID, reviewer, matchID string) error {
	return m.SetApprovedTx(ctx, nil, candidateID, reviewer, matchID)
}
func (m *mockCandidateRepository) SetRejected(ctx context.Context, candidateID, reviewer string) error {
	if m.SetRejectedFunc != nil {
		return m.SetRejectedFunc(ctx, candidateID, reviewer)
	}
	return nil
}
func (m *mockCandidateRepository) SweepExpired(ctx context.Context) ([]*model.MatchCandidate, error) {
	if m.SweepExpiredFunc != nil {
		return m.SweepExpiredFunc(ctx)
	}
	return nil, nil
}

// mockMatchRepository implements ports.MatchRepository
type mockMatchRepository struct {
	CreateFunc func(ctx context.Context, match *model.Match) error
}

func (m *mockMatchRepository) CreateTx(ctx context.Context, tx pgx.Tx, match *model.Match) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, match)
	}
	return nil
}
func (m *mockMatchRepository) Create(ctx context.Context, match *model.Match) error {
	return m.CreateTx(ctx, nil, match)
}
func (m *mockMatchRepository) GetActiveByCanonical(ctx context.Context, tenantID, canonicalLeadID string) (*model.Match, error) {
	return nil, nil
}

// mockStatusWriter implements ports.CanonicalStatusWriter
type mockStatusWriter struct {
	UpdateMatchStatusFunc func(ctx context.Context, canonicalLeadID string, status string, confidence *float64) error
}

func (m *mockStatusWriter) UpdateMatchStatusTx(ctx context.Context, tx pgx.Tx, canonicalLeadID string, status string, confidence *float64) error {
	if m.UpdateMatchStatusFunc != nil {
		return m.UpdateMatchStatusFunc(ctx, canonicalLeadID, status, confidence)
	}
	return nil
}
func (m *mockStatusWriter) UpdateMatchStatus(ctx context.Context, canonicalLeadID string, status string, confidence *float64) error {
	return m.UpdateMatchStatusTx(ctx, nil, canonicalLeadID, status, confidence)
}

// mockAgentRepository implements agentsports.AgentRepository
type mockAgentRepository struct {
	agent *agentsmodel.Agent
	// gotCrmUserID records the last crm_user_id GetByCrmUserID was called
	// with, so tests can assert attribution is resolved off the CRM lead's
	// assigned_user_id rather than the match candidate's own id.
	gotCrmUserID string
}

func (m *mockAgentRepository) GetByCrmUserID(ctx context.Context, tenantID, crmUserID string) (*agentsmodel.Agent, error) {
	m.gotCrmUserID = crmUserID
	if m.agent == nil {
		return nil, agentsmodel.ErrAgentNotFound
	}
	return m.agent, nil
}
func (m *mockAgentRepository) Create(ctx context.Context, agent *agentsmodel.Agent) error { return nil }
func (m *mockAgentRepository) CreateTeam(ctx context.Context, team *agentsmodel.Team) error {
	return nil
}
func (m *mockAgentRepository) GetTeam(ctx context.Context, tenantID, teamID string) (*agentsmodel.Team, error) {
	return nil, agentsmodel.ErrTeamNotFound
}

// mockCrmLeadRepository implements crmports.CrmLeadRepository
type mockCrmLeadRepository struct {
	GetByIDFunc func(ctx context.Context, tenantID, id string) (*crmmodel.CrmLead, error)
}

func (m *mockCrmLeadRepository) GetSyncHash(ctx context.Context, crmConnectionID, externalID string) (string, bool, error) {
	return "", false, nil
}
func (m *mockCrmLeadRepository) Upsert(ctx context.Context, lead *crmmodel.CrmLead) (string, bool, error) {
	return "", false, nil
}
func (m *mockCrmLeadRepository) GetByID(ctx context.Context, tenantID, id string) (*crmmodel.CrmLead, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	return nil, crmmodel.ErrCrmLeadNotFound
}

// resolverLineageRepository implements lineageports.LineageRepository
type resolverLineageRepository struct {
	entries []*lineagemodel.LineageEntry
}

func (m *resolverLineageRepository) Create(ctx context.Context, entry *lineagemodel.LineageEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}
func (m *resolverLineageRepository) CreateTx(ctx context.Context, tx pgx.Tx, entry *lineagemodel.LineageEntry) error {
	return m.Create(ctx, entry)
}

var _ lineageports.LineageRepository = (*resolverLineageRepository)(nil)

// newTxPool returns a pgxmock pool primed to expect exactly one
// transaction, committed or rolled back as the caller directs, so Approve's
// Begin/Commit(or Rollback) calls have a real pgx.Tx to operate on.
func newTxPool(t *testing.T, commits bool) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.ExpectBegin()
	if commits {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
	return mock
}

func newReviewResolverService(
	candidates *mockCandidateRepository,
	matches *mockMatchRepository,
	status *mockStatusWriter,
	agents *mockAgentRepository,
	crmLeads *mockCrmLeadRepository,
	pool ports.Transactor,
) *ReviewResolverService {
	lineageSvc := lineageservice.NewLineageService(&resolverLineageRepository{})
	if agents == nil {
		agents = &mockAgentRepository{}
	}
	if crmLeads == nil {
		crmLeads = &mockCrmLeadRepository{}
	}
	return NewReviewResolverService(candidates, matches, status, agents, crmLeads, lineageSvc, pool)
}

func pendingCandidate() *model.MatchCandidate {
	return &model.MatchCandidate{
		ID:              "cand-1",
		TenantID:        "tenant-1",
		CanonicalLeadID: "cl-1",
		CrmLeadID:       "crm-1",
		MatchType:       model.MatchTypeAddressFuzzy,
		ConfidenceScore: 0.82,
		Status:          model.CandidateStatusPending,
		ExpiresAt:       time.Now().Add(48 * time.Hour),
	}
}

func TestReviewResolverService_Approve(t *testing.T) {
	t.Run("commits a match, rejects siblings, and marks the canonical matched", func(t *testing.T) {
		candidate := pendingCandidate()
		var created *model.Match
		var statusCalls []string
		candidates := &mockCandidateRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
				return candidate, nil
			},
		}
		matches := &mockMatchRepository{
			CreateFunc: func(ctx context.Context, match *model.Match) error {
				match.ID = "match-1"
				created = match
				return nil
			},
		}
		status := &mockStatusWriter{
			UpdateMatchStatusFunc: func(ctx context.Context, canonicalLeadID string, s string, confidence *float64) error {
				statusCalls = append(statusCalls, s)
				return nil
			},
		}
		teamID := "team-1"
		agents := &mockAgentRepository{agent: &agentsmodel.Agent{ID: "agent-1", TeamID: &teamID}}
		assignedUserID := "crm-user-42"
		crmLeads := &mockCrmLeadRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*crmmodel.CrmLead, error) {
				assert.Equal(t, "crm-1", id)
				return &crmmodel.CrmLead{ID: id, AssignedUserID: &assignedUserID}, nil
			},
		}
		pool := newTxPool(t, true)
		svc := newReviewResolverService(candidates, matches, status, agents, crmLeads, pool)

		match, err := svc.Approve(context.Background(), "tenant-1", "cand-1", "reviewer-1")

		require.NoError(t, err)
		assert.Same(t, created, match)
		assert.Equal(t, model.MatchedByManual, match.MatchedBy)
		// attribution must resolve off the CRM lead's assigned_user_id, not
		// the match candidate's own (CRM lead) primary key.
		assert.Equal(t, assignedUserID, agents.gotCrmUserID)
		assert.Equal(t, "agent-1", *match.AttributedAgentID)
		assert.Equal(t, "team-1", *match.AttributedTeamID)
		assert.Equal(t, []string{string(leadsmodel.MatchStatusMatched)}, statusCalls)
		require.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("rejects a candidate that is not pending", func(t *testing.T) {
		candidate := pendingCandidate()
		candidate.Status = model.CandidateStatusApproved
		candidates := &mockCandidateRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
				return candidate, nil
			},
		}
		svc := newReviewResolverService(candidates, &mockMatchRepository{}, &mockStatusWriter{}, nil, nil, nil)

		match, err := svc.Approve(context.Background(), "tenant-1", "cand-1", "reviewer-1")

		assert.Nil(t, match)
		assert.Equal(t, model.ErrCandidateNotPending, err)
	})

	t.Run("rolls back the whole transaction when a later step fails", func(t *testing.T) {
		candidate := pendingCandidate()
		candidates := &mockCandidateRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
				return candidate, nil
			},
			RejectOtherPendingFunc: func(ctx context.Context, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error {
				return errors.New("db gone")
			},
		}
		matches := &mockMatchRepository{
			CreateFunc: func(ctx context.Context, match *model.Match) error {
				match.ID = "match-1"
				return nil
			},
		}
		pool := newTxPool(t, false)
		svc := newReviewResolverService(candidates, matches, &mockStatusWriter{}, nil, nil, pool)

		match, err := svc.Approve(context.Background(), "tenant-1", "cand-1", "reviewer-1")

		assert.Nil(t, match)
		assert.Error(t, err)
		require.NoError(t, pool.ExpectationsWereMet())
	})
}

func TestReviewResolverService_Reject(t *testing.T) {
	t.Run("reverts the canonical to unmatched when no pending candidates remain", func(t *testing.T) {
		candidate := pendingCandidate()
		var statusCalls []string
		candidates := &mockCandidateRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
				return candidate, nil
			},
			ListPendingByCanonicalFunc: func(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error) {
				return nil, nil
			},
		}
		status := &mockStatusWriter{
			UpdateMatchStatusFunc: func(ctx context.Context, canonicalLeadID string, s string, confidence *float64) error {
				statusCalls = append(statusCalls, s)
				return nil
			},
		}
		svc := newReviewResolverService(candidates, &mockMatchRepository{}, status, nil, nil, nil)

		err := svc.Reject(context.Background(), "tenant-1", "cand-1", "reviewer-1")

		require.NoError(t, err)
		assert.Equal(t, []string{string(leadsmodel.MatchStatusUnmatched)}, statusCalls)
	})

	t.Run("leaves the canonical alone when sibling candidates remain pending", func(t *testing.T) {
		candidate := pendingCandidate()
		statusCalled := false
		candidates := &mockCandidateRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
				return candidate, nil
			},
			ListPendingByCanonicalFunc: func(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error) {
				return []*model.MatchCandidate{{ID: "cand-2"}}, nil
			},
		}
		status := &mockStatusWriter{
			UpdateMatchStatusFunc: func(ctx context.Context, canonicalLeadID string, s string, confidence *float64) error {
				statusCalled = true
				return nil
			},
		}
		svc := newReviewResolverService(candidates, &mockMatchRepository{}, status, nil, nil, nil)

		err := svc.Reject(context.Background(), "tenant-1", "cand-1", "reviewer-1")

		require.NoError(t, err)
		assert.False(t, statusCalled)
	})

	t.Run("rejects a candidate that is not pending", func(t *testing.T) {
		candidate := pendingCandidate()
		candidate.Status = model.CandidateStatusExpired
		candidates := &mockCandidateRepository{
			GetByIDFunc: func(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error) {
				return candidate, nil
			},
		}
		svc := newReviewResolverService(candidates, &mockMatchRepository{}, &mockStatusWriter{}, nil, nil, nil)

		err := svc.Reject(context.Background(), "tenant-1", "cand-1", "reviewer-1")

		assert.Equal(t, model.ErrCandidateNotPending, err)
	})
}

func TestReviewResolverService_SweepExpired(t *testing.T) {
	t.Run("reverts canonicals with no remaining pending candidates to unmatched", func(t *testing.T) {
		var statusCalls []string
		candidates := &mockCandidateRepository{
			SweepExpiredFunc: func(ctx context.Context) ([]*model.MatchCandidate, error) {
				return []*model.MatchCandidate{
					{CanonicalLeadID: "cl-1", TenantID: "tenant-1"},
				}, nil
			},
			ListPendingByCanonicalFunc: func(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error) {
				return nil, nil
			},
		}
		status := &mockStatusWriter{
			UpdateMatchStatusFunc: func(ctx context.Context, canonicalLeadID string, s string, confidence *float64) error {
				statusCalls = append(statusCalls, canonicalLeadID)
				return nil
			},
		}
		svc := newReviewResolverService(candidates, &mockMatchRepository{}, status, nil, nil, nil)

		n, err := svc.SweepExpired(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"cl-1"}, statusCalls)
	})

	t.Run("leaves canonicals with remaining pending candidates untouched", func(t *testing.T) {
		statusCalled := false
		candidates := &mockCandidateRepository{
			SweepExpiredFunc: func(ctx context.Context) ([]*model.MatchCandidate, error) {
				return []*model.MatchCandidate{
					{CanonicalLeadID: "cl-1", TenantID: "tenant-1"},
				}, nil
			},
			ListPendingByCanonicalFunc: func(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error) {
				return []*model.MatchCandidate{{ID: "cand-2"}}, nil
			},
		}
		status := &mockStatusWriter{
			UpdateMatchStatusFunc: func(ctx context.Context, canonicalLeadID string, s string, confidence *float64) error {
				statusCalled = true
				return nil
			},
		}
		svc := newReviewResolverService(candidates, &mockMatchRepository{}, status, nil, nil, nil)

		n, err := svc.SweepExpired(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.False(t, statusCalled)
	})

	t.Run("aggregates status update failures and still reports the expired count", func(t *testing.T) {
		failure := errors.New("update failed")
		candidates := &mockCandidateRepository{
			SweepExpiredFunc: func(ctx context.Context) ([]*model.MatchCandidate, error) {
				return []*model.MatchCandidate{
					{CanonicalLeadID: "cl-1", TenantID: "tenant-1"},
				}, nil
			},
			ListPendingByCanonicalFunc: func(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error) {
				return nil, nil
			},
		}
		status := &mockStatusWriter{
			UpdateMatchStatusFunc: func(ctx context.Context, canonicalLeadID string, s string, confidence *float64) error {
				return failure
			},
		}
		svc := newReviewResolverService(candidates, &mockMatchRepository{}, status, nil, nil, nil)

		n, err := svc.SweepExpired(context.Background())

		require.Error(t, err)
		assert.True(t, errors.Is(err, failure))
		assert.Equal(t, 1, n)
	})
}
