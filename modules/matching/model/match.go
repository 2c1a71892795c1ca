package model

import "time"

type MatchType string

const (
	MatchTypeEmailExact   MatchType = "email_exact"
	MatchTypePhoneExact   MatchType = "phone_exact"
	MatchTypeAddressFuzzy MatchType = "address_fuzzy"
)

type MatchedBy string

const (
	MatchedBySystem MatchedBy = "system"
	MatchedByAI     MatchedBy = "ai"
	MatchedByManual MatchedBy = "manual"
)

type MatchRowStatus string

const (
	MatchRowStatusActive      MatchRowStatus = "active"
	MatchRowStatusDisputed    MatchRowStatus = "disputed"
	MatchRowStatusInvalidated MatchRowStatus = "invalidated"
)

// Match is a committed attribution between a canonical lead and a CRM lead.
// Unique on (canonical, crm); the database additionally enforces at most one
// active Match per canonical lead.
type Match struct {
	ID                string
	TenantID          string
	CanonicalLeadID   string
	CrmLeadID         string
	MatchType         MatchType
	Confidence        float64
	MatchDetails      map[string]any
	MatchedBy         MatchedBy
	MatchedByUserID   *string
	AttributedTeamID  *string
	AttributedAgentID *string
	Status            MatchRowStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
