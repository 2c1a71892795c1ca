package model

import "time"

// Team is a CRM team that agents belong to.
type Team struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
}

// Agent mirrors a CRM-side user for attribution purposes: the Matcher
// resolves a Match's assigned agent and team by looking up
// (tenant_id, crm_user_id).
type Agent struct {
	ID        string
	TenantID  string
	TeamID    *string
	CrmUserID string
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
