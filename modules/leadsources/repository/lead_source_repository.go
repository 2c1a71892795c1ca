package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haloestate/leadpipe/modules/leadsources/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadSourceRepository implements ports.LeadSourceRepository.
type LeadSourceRepository struct {
	pool *pgxpool.Pool
}

func NewLeadSourceRepository(pool *pgxpool.Pool) *LeadSourceRepository {
	return &LeadSourceRepository{pool: pool}
}

func (r *LeadSourceRepository) Create(ctx context.Context, source *model.LeadSource) error {
	csvConfig, err := json.Marshal(source.CSVConfig)
	if err != nil {
		return fmt.Errorf("marshal csv_config: %w", err)
	}
	fieldMapping, err := json.Marshal(source.FieldMapping)
	if err != nil {
		return fmt.Errorf("marshal field_mapping: %w", err)
	}
	validationRules, err := json.Marshal(source.ValidationRules)
	if err != nil {
		return fmt.Errorf("marshal validation_rules: %w", err)
	}

	source.ID = uuid.New().String()
	now := time.Now().UTC()
	source.CreatedAt = now
	source.UpdatedAt = now

	query := `
		INSERT INTO lead_sources (id, tenant_id, slug, display_name, csv_config, field_mapping, validation_rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		source.ID, source.TenantID, source.Slug, source.DisplayName,
		csvConfig, fieldMapping, validationRules, source.CreatedAt, source.UpdatedAt,
	)
	return err
}

func (r *LeadSourceRepository) GetBySlug(ctx context.Context, tenantID, slug string) (*model.LeadSource, error) {
	query := `
		SELECT id, tenant_id, slug, display_name, csv_config, field_mapping, validation_rules, created_at, updated_at
		FROM lead_sources
		WHERE tenant_id = $1 AND slug = $2
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, tenantID, slug))
}

func (r *LeadSourceRepository) GetByID(ctx context.Context, tenantID, id string) (*model.LeadSource, error) {
	query := `
		SELECT id, tenant_id, slug, display_name, csv_config, field_mapping, validation_rules, created_at, updated_at
		FROM lead_sources
		WHERE tenant_id = $1 AND id = $2
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *LeadSourceRepository) List(ctx context.Context, tenantID string) ([]*model.LeadSource, error) {
	query := `
		SELECT id, tenant_id, slug, display_name, csv_config, field_mapping, validation_rules, created_at, updated_at
		FROM lead_sources
		WHERE tenant_id = $1
		ORDER BY display_name
	`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*model.LeadSource
	for rows.Next() {
		source, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *LeadSourceRepository) scanOne(row pgx.Row) (*model.LeadSource, error) {
	source, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrLeadSourceNotFound
		}
		return nil, err
	}
	return source, nil
}

func scanRow(row rowScanner) (*model.LeadSource, error) {
	var source model.LeadSource
	var csvConfig, fieldMapping, validationRules []byte

	err := row.Scan(
		&source.ID, &source.TenantID, &source.Slug, &source.DisplayName,
		&csvConfig, &fieldMapping, &validationRules,
		&source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(csvConfig, &source.CSVConfig); err != nil {
		return nil, fmt.Errorf("unmarshal csv_config: %w", err)
	}
	if err := json.Unmarshal(fieldMapping, &source.FieldMapping); err != nil {
		return nil, fmt.Errorf("unmarshal field_mapping: %w", err)
	}
	if err := json.Unmarshal(validationRules, &source.ValidationRules); err != nil {
		return nil, fmt.Errorf("unmarshal validation_rules: %w", err)
	}

	return &source, nil
}
