package model

import "time"

type CandidateStatus string

const (
	CandidateStatusPending  CandidateStatus = "pending"
	CandidateStatusApproved CandidateStatus = "approved"
	CandidateStatusRejected CandidateStatus = "rejected"
	CandidateStatusExpired  CandidateStatus = "expired"
)

// RejectionReasonSuperseded marks a candidate rejected because a re-scoring
// pass no longer produced it, not because a human rejected it.
const RejectionReasonSuperseded = "superseded"

// MatchCandidate is a pending review row: a scored pair awaiting an
// approve/reject decision, or expiry via TTL sweep.
type MatchCandidate struct {
	ID              string
	TenantID        string
	CanonicalLeadID string
	CrmLeadID       string
	MatchType       MatchType
	ConfidenceScore float64
	MatchReasons    []string
	Status          CandidateStatus
	ReviewedBy      *string
	ReviewedAt      *time.Time
	LeadMatchID     *string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
