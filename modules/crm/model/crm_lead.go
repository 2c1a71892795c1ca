package model

import "time"

// CrmLead is the mirrored CRM person, kept current by the CRM Puller.
// Unique on (crm_connection_id, external_id). The matching module reads it
// through matching/ports.ScorerCorpusReader; this module owns all writes.
type CrmLead struct {
	ID                string
	TenantID          string
	CrmConnectionID   string
	ExternalID        string
	FirstName         *string
	LastName          *string
	Email             *string
	EmailNormalized   *string
	Phone             *string
	PhoneNormalized   *string
	Address           *string
	AddressNormalized *string
	AssignedUserID    *string
	AssignedUserName  *string
	AssignedUserEmail *string
	Stage             *string
	Source            *string
	Tags              []string
	SyncHash          string
	Embedding         []float32
	EmbeddingText     *string
	EmbeddedAt        *time.Time
	LastSyncedAt      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
