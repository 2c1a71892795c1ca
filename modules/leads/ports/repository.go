package ports

import (
	"context"

	"github.com/haloestate/leadpipe/modules/leads/model"
	"github.com/jackc/pgx/v5"
)

// CanonicalLeadRepository persists normalized external leads.
type CanonicalLeadRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, lead *model.CanonicalLead) error
	Create(ctx context.Context, lead *model.CanonicalLead) error
	GetByTenantSourceEmail(ctx context.Context, tenantID, leadSourceID, emailNormalized string) (*model.CanonicalLead, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.CanonicalLead, error)
}
