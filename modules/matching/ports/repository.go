package ports

import (
	"context"

	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/jackc/pgx/v5"
)

// ScorerCorpusReader gives the Scorer read access to a tenant's CRM lead
// corpus via the three signal lookups (exact email, exact phone, fuzzy
// address), each free to use whatever index fits.
type ScorerCorpusReader interface {
	FindByEmailNormalized(ctx context.Context, tenantID, emailNormalized string) ([]model.CrmLeadRef, error)
	FindByPhoneNormalized(ctx context.Context, tenantID, phoneNormalized string) ([]model.CrmLeadRef, error)
	FindByAddressTrigram(ctx context.Context, tenantID, addressNormalized string, limit int) ([]model.CrmLeadRef, error)
}

// MatchRepository persists committed attributions.
type MatchRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, match *model.Match) error
	Create(ctx context.Context, match *model.Match) error
	GetActiveByCanonical(ctx context.Context, tenantID, canonicalLeadID string) (*model.Match, error)
}

// CandidateRepository persists and claims pending review candidates.
type CandidateRepository interface {
	UpsertTx(ctx context.Context, tx pgx.Tx, candidate *model.MatchCandidate) error
	Upsert(ctx context.Context, candidate *model.MatchCandidate) error
	ListPendingByCanonical(ctx context.Context, tenantID, canonicalLeadID string) ([]*model.MatchCandidate, error)
	ExpireStaleForCanonicalTx(ctx context.Context, tx pgx.Tx, tenantID, canonicalLeadID string, keepCrmLeadIDs []string) error
	ExpireStaleForCanonical(ctx context.Context, tenantID, canonicalLeadID string, keepCrmLeadIDs []string, reason string) error
	GetByID(ctx context.Context, tenantID, id string) (*model.MatchCandidate, error)
	RejectOtherPendingTx(ctx context.Context, tx pgx.Tx, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error
	RejectOtherPending(ctx context.Context, tenantID, canonicalLeadID, exceptCandidateID, reviewer string) error
	SetApprovedTx(ctx context.Context, tx pgx.Tx, candidateID, reviewer, matchID string) error
	SetApproved(ctx context.Context, candidateID, reviewer, matchID string) error
	SetRejected(ctx context.Context, candidateID, reviewer string) error
	SweepExpired(ctx context.Context) ([]*model.MatchCandidate, error)
}

// ClaimableCanonical is the minimal shape the Matcher's claim query returns.
type ClaimableCanonical struct {
	ID           string
	TenantID     string
	LeadSourceID string
	MatchStatus  string
}

// CanonicalStatusWriter updates a canonical lead's match_status/confidence.
// The Matcher and Review Resolver write through this from within the same
// transaction as the Match/Candidate rows they create, so §3's invariants
// hold for any external reader.
type CanonicalStatusWriter interface {
	UpdateMatchStatusTx(ctx context.Context, tx pgx.Tx, canonicalLeadID string, status string, confidence *float64) error
	UpdateMatchStatus(ctx context.Context, canonicalLeadID string, status string, confidence *float64) error
}

// Transactor opens a transaction for callers, such as the Review Resolver's
// Approve, that must commit several repositories' writes atomically.
// *pgxpool.Pool satisfies this directly.
type Transactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MatcherQueue claims pending-or-review canonical leads for (re)scoring. It
// hands back an open transaction holding the SELECT ... FOR UPDATE SKIP
// LOCKED row locks: the caller scores and writes the match/candidates using
// that same transaction, then commits, so the row lock itself is the claim
// discipline — no separate "processing" status is needed on canonical_leads.
type MatcherQueue interface {
	ClaimForScoring(ctx context.Context, limit int) (pgx.Tx, []ClaimableCanonical, error)
}
