package service

import (
	"context"
	"errors"
	"time"

	"github.com/haloestate/leadpipe/internal/platform/logger"
	agentsports "github.com/haloestate/leadpipe/modules/agents/ports"
	leadsmodel "github.com/haloestate/leadpipe/modules/leads/model"
	leadsports "github.com/haloestate/leadpipe/modules/leads/ports"
	lineagemodel "github.com/haloestate/leadpipe/modules/lineage/model"
	lineageservice "github.com/haloestate/leadpipe/modules/lineage/service"
	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/haloestate/leadpipe/modules/matching/ports"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CandidateTTL is how long a review candidate lives before the sweep
// expires it, absent a reviewer decision.
const CandidateTTL = 7 * 24 * time.Hour

// defaultClaimBatch bounds how many canonical leads one Run call scores.
const defaultClaimBatch = 25

// MatcherService implements the Matcher: for each claimed canonical lead it
// scores against the tenant's CRM corpus, tiers the result, and either
// auto-attributes, opens review candidates, or marks the lead unmatched —
// all within the transaction that claimed the row.
type MatcherService struct {
	queue      ports.MatcherQueue
	scorer     *ScorerService
	canonical  leadsports.CanonicalLeadRepository
	matches    ports.MatchRepository
	candidates ports.CandidateRepository
	status     ports.CanonicalStatusWriter
	agents     agentsports.AgentRepository
	lineage    *lineageservice.LineageService
	log        *logger.Logger
}

func NewMatcherService(
	queue ports.MatcherQueue,
	scorer *ScorerService,
	canonical leadsports.CanonicalLeadRepository,
	matches ports.MatchRepository,
	candidates ports.CandidateRepository,
	status ports.CanonicalStatusWriter,
	agents agentsports.AgentRepository,
	lineage *lineageservice.LineageService,
	log *logger.Logger,
) *MatcherService {
	return &MatcherService{
		queue: queue, scorer: scorer, canonical: canonical, matches: matches,
		candidates: candidates, status: status, agents: agents, lineage: lineage, log: log,
	}
}

// RunResult tallies one claim batch's outcomes.
type RunResult struct {
	Claimed   int
	Auto      int
	Review    int
	Multiple  int
	Unmatched int
	Skipped   int
	Failed    int
}

// Run claims up to defaultClaimBatch pending-or-review canonical leads and
// resolves each one. A per-lead failure is logged and counted, not fatal to
// the batch: each lead runs inside its own savepoint, so a failed lead's
// writes are rolled back alone and it is picked up again on the next run.
func (s *MatcherService) Run(ctx context.Context) (RunResult, error) {
	tx, claimed, err := s.queue.ClaimForScoring(ctx, defaultClaimBatch)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{Claimed: len(claimed)}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback(ctx)
		}
	}()

	for _, claim := range claimed {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return result, err
		}
		outcome, err := s.resolveOne(ctx, sp, claim)
		if err != nil {
			sp.Rollback(ctx)
			s.log.Error("matcher: resolve canonical lead failed", zap.String("canonical_lead_id", claim.ID), zap.Error(err))
			result.Failed++
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return result, err
		}
		switch outcome {
		case outcomeAlreadyMatched:
			result.Skipped++
		case outcomeAuto:
			result.Auto++
		case outcomeReview:
			result.Review++
		case outcomeMultiple:
			result.Multiple++
		case outcomeUnmatched:
			result.Unmatched++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, err
	}
	committed = true
	return result, nil
}

// resolveOutcome classifies what resolveOne did to a claimed canonical lead,
// so Run can tally its batch summary.
type resolveOutcome int

const (
	outcomeAlreadyMatched resolveOutcome = iota
	outcomeAuto
	outcomeReview
	outcomeMultiple
	outcomeUnmatched
)

// resolveOne scores a single claimed canonical lead and writes its outcome
// through tx. It is idempotent: a lead that already has an active Match is
// left untouched.
func (s *MatcherService) resolveOne(ctx context.Context, tx pgx.Tx, claim ports.ClaimableCanonical) (resolveOutcome, error) {
	if existing, err := s.matches.GetActiveByCanonical(ctx, claim.TenantID, claim.ID); err == nil && existing != nil {
		return outcomeAlreadyMatched, nil
	} else if err != nil && !errors.Is(err, model.ErrMatchNotFound) {
		return 0, err
	}

	lead, err := s.canonical.GetByID(ctx, claim.TenantID, claim.ID)
	if err != nil {
		return 0, err
	}

	scored, err := s.scorer.Score(ctx, NormalizedLead{
		TenantID:          claim.TenantID,
		EmailNormalized:   derefStr(lead.EmailNormalized),
		PhoneNormalized:   derefStr(lead.PhoneNormalized),
		AddressNormalized: derefStr(lead.AddressNormalized),
	})
	if err != nil {
		return 0, err
	}

	switch {
	case len(scored) == 0:
		return outcomeUnmatched, s.markUnmatched(ctx, tx, claim)
	case model.TierOf(scored[0].Confidence) == model.TierAuto:
		return outcomeAuto, s.autoAttribute(ctx, tx, claim, lead, scored[0])
	case len(scored) > 1:
		return outcomeMultiple, s.openReview(ctx, tx, claim, scored)
	default:
		return outcomeReview, s.openReview(ctx, tx, claim, scored)
	}
}

func (s *MatcherService) markUnmatched(ctx context.Context, tx pgx.Tx, claim ports.ClaimableCanonical) error {
	return s.status.UpdateMatchStatusTx(ctx, tx, claim.ID, string(leadsmodel.MatchStatusUnmatched), nil)
}

func (s *MatcherService) autoAttribute(ctx context.Context, tx pgx.Tx, claim ports.ClaimableCanonical, lead *leadsmodel.CanonicalLead, best model.ScoredCandidate) error {
	match := &model.Match{
		TenantID:        claim.TenantID,
		CanonicalLeadID: claim.ID,
		CrmLeadID:       best.CrmLeadID,
		MatchType:       best.MatchType,
		Confidence:      best.Confidence,
		MatchDetails:    best.Details,
		MatchedBy:       model.MatchedBySystem,
		Status:          model.MatchRowStatusActive,
	}

	if best.AssignedUserID != nil {
		if agent, err := s.agents.GetByCrmUserID(ctx, claim.TenantID, *best.AssignedUserID); err == nil && agent != nil {
			match.AttributedAgentID = &agent.ID
			match.AttributedTeamID = agent.TeamID
		}
	}

	if err := s.matches.CreateTx(ctx, tx, match); err != nil {
		return err
	}

	confidence := best.Confidence
	if err := s.status.UpdateMatchStatusTx(ctx, tx, claim.ID, string(leadsmodel.MatchStatusMatched), &confidence); err != nil {
		return err
	}

	return s.lineage.RecordTx(ctx, tx, &lineagemodel.LineageEntry{
		TenantID:           claim.TenantID,
		SourceTable:        "canonical_leads",
		SourceID:           claim.ID,
		TargetTable:        "matches",
		TargetID:           match.ID,
		Operation:          lineagemodel.OperationCreate,
		TransformationType: "match",
		PerformedBy:        "matcher",
		Details: map[string]any{
			"match_type": best.MatchType,
			"confidence": best.Confidence,
		},
	})
}

func (s *MatcherService) openReview(ctx context.Context, tx pgx.Tx, claim ports.ClaimableCanonical, scored []model.ScoredCandidate) error {
	keepIDs := make([]string, 0, len(scored))
	maxConfidence := 0.0
	now := time.Now().UTC()

	for _, candidate := range scored {
		keepIDs = append(keepIDs, candidate.CrmLeadID)
		if candidate.Confidence > maxConfidence {
			maxConfidence = candidate.Confidence
		}
		if err := s.candidates.UpsertTx(ctx, tx, &model.MatchCandidate{
			TenantID:        claim.TenantID,
			CanonicalLeadID: claim.ID,
			CrmLeadID:       candidate.CrmLeadID,
			MatchType:       candidate.MatchType,
			ConfidenceScore: candidate.Confidence,
			MatchReasons:    reasonsFor(candidate),
			Status:          model.CandidateStatusPending,
			ExpiresAt:       now.Add(CandidateTTL),
		}); err != nil {
			return err
		}
	}

	if err := s.candidates.ExpireStaleForCanonicalTx(ctx, tx, claim.TenantID, claim.ID, keepIDs); err != nil {
		return err
	}

	status := leadsmodel.MatchStatusReview
	if len(scored) > 1 {
		status = leadsmodel.MatchStatusMultiple
	}
	return s.status.UpdateMatchStatusTx(ctx, tx, claim.ID, string(status), &maxConfidence)
}

func reasonsFor(candidate model.ScoredCandidate) []string {
	switch candidate.MatchType {
	case model.MatchTypeEmailExact:
		return []string{"email matched exactly"}
	case model.MatchTypePhoneExact:
		return []string{"phone matched exactly"}
	case model.MatchTypeAddressFuzzy:
		return []string{"address matched by fuzzy similarity"}
	default:
		return nil
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
