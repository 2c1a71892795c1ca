package ports

import (
	"context"

	"github.com/haloestate/leadpipe/modules/agents/model"
)

// AgentRepository resolves CRM-assigned users to attribution records.
type AgentRepository interface {
	GetByCrmUserID(ctx context.Context, tenantID, crmUserID string) (*model.Agent, error)
	Create(ctx context.Context, agent *model.Agent) error
	CreateTeam(ctx context.Context, team *model.Team) error
	GetTeam(ctx context.Context, tenantID, teamID string) (*model.Team, error)
}
