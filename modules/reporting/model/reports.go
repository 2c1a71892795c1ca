package model

import "time"

// SourceSummary mirrors report_source_summary: per lead-source volume and
// match-status breakdown.
type SourceSummary struct {
	TenantID      string
	LeadSourceID  string
	Slug          string
	DisplayName   string
	TotalLeads    int64
	MatchedLeads  int64
	ReviewLeads   int64
	UnmatchedLeads int64
}

// TeamSummary mirrors report_team_summary: active matches attributed to a
// team and their average confidence.
type TeamSummary struct {
	TenantID      string
	TeamID        string
	TeamName      string
	MatchedCount  int64
	AvgConfidence *float64
}

// AgentSummary mirrors report_agent_summary: active matches attributed to
// an individual agent.
type AgentSummary struct {
	TenantID      string
	AgentID       string
	AgentName     string
	TeamID        *string
	MatchedCount  int64
	AvgConfidence *float64
}

// IngestionSummary mirrors report_ingestion_summary: one row per batch.
type IngestionSummary struct {
	TenantID      string
	BatchID       string
	LeadSourceID  string
	Status        string
	TotalRows     int
	ParsedRows    int
	ValidRows     int
	DuplicateRows int
	ErrorRows     int
	ReceivedAt    time.Time
}

// ReviewQueueEntry mirrors report_review_queue: one row per pending match
// candidate, side by side with the canonical and CRM records it compares.
type ReviewQueueEntry struct {
	TenantID         string
	CandidateID      string
	CanonicalLeadID  string
	CrmLeadID        string
	MatchType        string
	ConfidenceScore  float64
	ExpiresAt        time.Time
	CanonicalEmail   *string
	CanonicalAddress *string
	CrmEmail         *string
	CrmAddress       *string
}
