package repository

import (
	"context"
	"errors"
	"time"

	"github.com/haloestate/leadpipe/modules/agents/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentRepository struct {
	pool *pgxpool.Pool
}

func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

func (r *AgentRepository) GetByCrmUserID(ctx context.Context, tenantID, crmUserID string) (*model.Agent, error) {
	query := `
		SELECT id, tenant_id, team_id, crm_user_id, name, email, created_at, updated_at
		FROM agents
		WHERE tenant_id = $1 AND crm_user_id = $2
	`
	var a model.Agent
	err := r.pool.QueryRow(ctx, query, tenantID, crmUserID).Scan(
		&a.ID, &a.TenantID, &a.TeamID, &a.CrmUserID, &a.Name, &a.Email, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAgentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) Create(ctx context.Context, agent *model.Agent) error {
	agent.ID = uuid.New().String()
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	query := `
		INSERT INTO agents (id, tenant_id, team_id, crm_user_id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query, agent.ID, agent.TenantID, agent.TeamID, agent.CrmUserID, agent.Name, agent.Email, agent.CreatedAt, agent.UpdatedAt)
	return err
}

func (r *AgentRepository) CreateTeam(ctx context.Context, team *model.Team) error {
	team.ID = uuid.New().String()
	team.CreatedAt = time.Now().UTC()

	query := `INSERT INTO teams (id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, team.ID, team.TenantID, team.Name, team.CreatedAt)
	return err
}

func (r *AgentRepository) GetTeam(ctx context.Context, tenantID, teamID string) (*model.Team, error) {
	query := `SELECT id, tenant_id, name, created_at FROM teams WHERE tenant_id = $1 AND id = $2`
	var t model.Team
	err := r.pool.QueryRow(ctx, query, tenantID, teamID).Scan(&t.ID, &t.TenantID, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTeamNotFound
		}
		return nil, err
	}
	return &t, nil
}
