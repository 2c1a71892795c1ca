package service

import (
	"context"
	"errors"
	"fmt"

	agentsports "github.com/haloestate/leadpipe/modules/agents/ports"
	crmports "github.com/haloestate/leadpipe/modules/crm/ports"
	leadsmodel "github.com/haloestate/leadpipe/modules/leads/model"
	lineagemodel "github.com/haloestate/leadpipe/modules/lineage/model"
	lineageservice "github.com/haloestate/leadpipe/modules/lineage/service"
	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/haloestate/leadpipe/modules/matching/ports"
)

// ReviewResolverService turns a pending MatchCandidate into a human decision:
// approve (commit a Match, reject the rest) or reject (leave the candidate
// set for the next scoring pass). It also runs the TTL sweep that expires
// candidates nobody reviewed in time.
type ReviewResolverService struct {
	candidates ports.CandidateRepository
	matches    ports.MatchRepository
	status     ports.CanonicalStatusWriter
	agents     agentsports.AgentRepository
	crmLeads   crmports.CrmLeadRepository
	lineage    *lineageservice.LineageService
	pool       ports.Transactor
}

func NewReviewResolverService(
	candidates ports.CandidateRepository,
	matches ports.MatchRepository,
	status ports.CanonicalStatusWriter,
	agents agentsports.AgentRepository,
	crmLeads crmports.CrmLeadRepository,
	lineage *lineageservice.LineageService,
	pool ports.Transactor,
) *ReviewResolverService {
	return &ReviewResolverService{
		candidates: candidates, matches: matches, status: status, agents: agents,
		crmLeads: crmLeads, lineage: lineage, pool: pool,
	}
}

// Approve commits the candidate as a manual Match, rejects its sibling
// candidates for the same canonical lead, and marks the canonical matched,
// all within one transaction so a partial failure never leaves an active
// Match alongside still-pending siblings.
func (s *ReviewResolverService) Approve(ctx context.Context, tenantID, candidateID, reviewerUserID string) (*model.Match, error) {
	candidate, err := s.candidates.GetByID(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate.Status != model.CandidateStatusPending {
		return nil, model.ErrCandidateNotPending
	}

	match := &model.Match{
		TenantID:        tenantID,
		CanonicalLeadID: candidate.CanonicalLeadID,
		CrmLeadID:       candidate.CrmLeadID,
		MatchType:       candidate.MatchType,
		Confidence:      candidate.ConfidenceScore,
		MatchDetails:    map[string]any{"approved_from_candidate": candidate.ID},
		MatchedBy:       model.MatchedByManual,
		MatchedByUserID: &reviewerUserID,
		Status:          model.MatchRowStatusActive,
	}
	// Resolve attribution the same way the auto-match path does: via the CRM
	// lead's own assigned_user_id, not the candidate's (CRM lead) primary key.
	if crmLead, err := s.crmLeads.GetByID(ctx, tenantID, candidate.CrmLeadID); err == nil && crmLead.AssignedUserID != nil {
		if agent, err := s.agents.GetByCrmUserID(ctx, tenantID, *crmLead.AssignedUserID); err == nil && agent != nil {
			match.AttributedAgentID = &agent.ID
			match.AttributedTeamID = agent.TeamID
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback(ctx)
		}
	}()

	if err := s.matches.CreateTx(ctx, tx, match); err != nil {
		return nil, err
	}
	if err := s.candidates.SetApprovedTx(ctx, tx, candidate.ID, reviewerUserID, match.ID); err != nil {
		return nil, err
	}
	if err := s.candidates.RejectOtherPendingTx(ctx, tx, tenantID, candidate.CanonicalLeadID, candidate.ID, reviewerUserID); err != nil {
		return nil, err
	}
	confidence := candidate.ConfidenceScore
	if err := s.status.UpdateMatchStatusTx(ctx, tx, candidate.CanonicalLeadID, string(leadsmodel.MatchStatusMatched), &confidence); err != nil {
		return nil, err
	}
	if err := s.lineage.RecordTx(ctx, tx, &lineagemodel.LineageEntry{
		TenantID:           tenantID,
		SourceTable:        "match_candidates",
		SourceID:           candidate.ID,
		TargetTable:        "matches",
		TargetID:           match.ID,
		Operation:          lineagemodel.OperationCreate,
		TransformationType: "review_approve",
		PerformedBy:        reviewerUserID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true

	return match, nil
}

// Reject marks the candidate rejected. If it was the last pending candidate
// for its canonical lead, the canonical reverts to unmatched. The Matcher
// claims only pending, review and multiple leads, so an unmatched lead is not
// re-scored automatically.
func (s *ReviewResolverService) Reject(ctx context.Context, tenantID, candidateID, reviewerUserID string) error {
	candidate, err := s.candidates.GetByID(ctx, tenantID, candidateID)
	if err != nil {
		return err
	}
	if candidate.Status != model.CandidateStatusPending {
		return model.ErrCandidateNotPending
	}

	if err := s.candidates.SetRejected(ctx, candidate.ID, reviewerUserID); err != nil {
		return err
	}

	remaining, err := s.candidates.ListPendingByCanonical(ctx, tenantID, candidate.CanonicalLeadID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return s.status.UpdateMatchStatus(ctx, candidate.CanonicalLeadID, string(leadsmodel.MatchStatusUnmatched), nil)
	}
	return nil
}

// SweepExpired moves past-TTL pending candidates to expired and, for any
// canonical lead left with no pending candidates, reverts it to unmatched.
func (s *ReviewResolverService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.candidates.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}

	affected := map[string]string{}
	for _, c := range expired {
		affected[c.CanonicalLeadID] = c.TenantID
	}

	var errs []error
	for canonicalLeadID, tenantID := range affected {
		remaining, err := s.candidates.ListPendingByCanonical(ctx, tenantID, canonicalLeadID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(remaining) == 0 {
			if err := s.status.UpdateMatchStatus(ctx, canonicalLeadID, string(leadsmodel.MatchStatusUnmatched), nil); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return len(expired), fmt.Errorf("sweep: %d canonical status updates failed: %w", len(errs), errors.Join(errs...))
	}
	return len(expired), nil
}
