package model

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusUnmatched MatchStatus = "unmatched"
	MatchStatusMultiple  MatchStatus = "multiple"
	MatchStatusReview    MatchStatus = "review"
)

// CanonicalLead is a normalized external lead. Created by the Transformer;
// match_status is subsequently owned by the Matcher and Review Resolver.
// Never deleted.
type CanonicalLead struct {
	ID               string
	TenantID         string
	LeadSourceID     string
	RawRowID         *string
	SourceRecordID   *string
	LeadType         *string
	FirstName        *string
	LastName         *string
	Email            *string
	EmailNormalized  *string
	Phone            *string
	PhoneNormalized  *string
	Address          *string
	AddressNormalized *string
	RawData          map[string]string
	SourceCreatedAt  *time.Time
	MatchStatus      MatchStatus
	MatchConfidence  *float64
	Embedding        []float32
	EmbeddingText    *string
	EmbeddedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
