package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/haloestate/leadpipe/modules/ingestion/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BatchRepository struct {
	pool *pgxpool.Pool
}

func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

const batchColumns = `
	id, tenant_id, lead_source_id, file_ref, file_hash, received_at, status,
	total_rows, parsed_rows, valid_rows, duplicate_rows, error_rows,
	log, errors, created_at, updated_at
`

func scanBatch(row pgx.Row) (*model.Batch, error) {
	var b model.Batch
	var logJSON, errorsJSON []byte
	err := row.Scan(
		&b.ID, &b.TenantID, &b.LeadSourceID, &b.FileRef, &b.FileHash, &b.ReceivedAt, &b.Status,
		&b.Counters.Total, &b.Counters.Parsed, &b.Counters.Valid, &b.Counters.DuplicateRows, &b.Counters.ErrorRows,
		&logJSON, &errorsJSON, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrBatchNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(logJSON, &b.Log); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(errorsJSON, &b.Errors); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BatchRepository) GetByFileHash(ctx context.Context, tenantID, fileHash string) (*model.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE tenant_id = $1 AND file_hash = $2`
	return scanBatch(r.pool.QueryRow(ctx, query, tenantID, fileHash))
}

func (r *BatchRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE tenant_id = $1 AND id = $2`
	return scanBatch(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *BatchRepository) Create(ctx context.Context, batch *model.Batch) error {
	batch.ID = uuid.New().String()
	now := time.Now().UTC()
	batch.ReceivedAt = now
	batch.CreatedAt = now
	batch.UpdatedAt = now
	if batch.Log == nil {
		batch.Log = []string{}
	}
	if batch.Errors == nil {
		batch.Errors = []string{}
	}

	logJSON, err := json.Marshal(batch.Log)
	if err != nil {
		return err
	}
	errorsJSON, err := json.Marshal(batch.Errors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO batches (
			id, tenant_id, lead_source_id, file_ref, file_hash, received_at, status,
			total_rows, parsed_rows, valid_rows, duplicate_rows, error_rows,
			log, errors, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.pool.Exec(ctx, query,
		batch.ID, batch.TenantID, batch.LeadSourceID, batch.FileRef, batch.FileHash, batch.ReceivedAt, batch.Status,
		batch.Counters.Total, batch.Counters.Parsed, batch.Counters.Valid, batch.Counters.DuplicateRows, batch.Counters.ErrorRows,
		logJSON, errorsJSON, batch.CreatedAt, batch.UpdatedAt,
	)
	return err
}

func (r *BatchRepository) UpdateStatusAndCounters(ctx context.Context, batch *model.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	errorsJSON, err := json.Marshal(batch.Errors)
	if err != nil {
		return err
	}

	query := `
		UPDATE batches SET
			status = $1, total_rows = $2, parsed_rows = $3, valid_rows = $4,
			duplicate_rows = $5, error_rows = $6, errors = $7, updated_at = $8
		WHERE id = $9
	`
	_, err = r.pool.Exec(ctx, query,
		batch.Status, batch.Counters.Total, batch.Counters.Parsed, batch.Counters.Valid,
		batch.Counters.DuplicateRows, batch.Counters.ErrorRows, errorsJSON, batch.UpdatedAt, batch.ID,
	)
	return err
}

func (r *BatchRepository) AppendLog(ctx context.Context, batchID string, entry string) error {
	query := `UPDATE batches SET log = log || to_jsonb($1::text), updated_at = now() WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, entry, batchID)
	return err
}

func (r *BatchRepository) CreateRawRows(ctx context.Context, rows []*model.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		rawDataJSON, err := json.Marshal(row.RawData)
		if err != nil {
			return err
		}
		validationErrors := row.ValidationErrors
		if validationErrors == nil {
			validationErrors = []string{}
		}
		validationErrorsJSON, err := json.Marshal(validationErrors)
		if err != nil {
			return err
		}
		row.ID = uuid.New().String()
		batch.Queue(`
			INSERT INTO raw_rows (id, batch_id, row_number, raw_data, is_valid, validation_errors, is_duplicate)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, row.ID, row.BatchID, row.RowNumber, rawDataJSON, row.IsValid, validationErrorsJSON, row.IsDuplicate)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *BatchRepository) ListValidUnmatchedRows(ctx context.Context, batchID string) ([]*model.RawRow, error) {
	query := `
		SELECT id, batch_id, row_number, raw_data, is_valid, validation_errors, is_duplicate, duplicate_of, canonical_lead_id
		FROM raw_rows
		WHERE batch_id = $1 AND is_valid = true AND canonical_lead_id IS NULL AND is_duplicate = false
		ORDER BY row_number ASC
	`
	rows, err := r.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RawRow
	for rows.Next() {
		var rr model.RawRow
		var rawDataJSON, validationErrorsJSON []byte
		if err := rows.Scan(
			&rr.ID, &rr.BatchID, &rr.RowNumber, &rawDataJSON, &rr.IsValid, &validationErrorsJSON,
			&rr.IsDuplicate, &rr.DuplicateOf, &rr.CanonicalLeadID,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawDataJSON, &rr.RawData); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(validationErrorsJSON, &rr.ValidationErrors); err != nil {
			return nil, err
		}
		out = append(out, &rr)
	}
	return out, rows.Err()
}

func (r *BatchRepository) MarkDuplicateTx(ctx context.Context, tx pgx.Tx, rowID string, duplicateOf string) error {
	query := `UPDATE raw_rows SET is_duplicate = true, duplicate_of = $1 WHERE id = $2`
	_, err := tx.Exec(ctx, query, duplicateOf, rowID)
	return err
}

func (r *BatchRepository) MarkDuplicate(ctx context.Context, rowID string, duplicateOf string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.MarkDuplicateTx(ctx, tx, rowID, duplicateOf); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *BatchRepository) LinkCanonicalTx(ctx context.Context, tx pgx.Tx, rowID string, canonicalLeadID string) error {
	query := `UPDATE raw_rows SET canonical_lead_id = $1 WHERE id = $2`
	_, err := tx.Exec(ctx, query, canonicalLeadID, rowID)
	return err
}

func (r *BatchRepository) LinkCanonical(ctx context.Context, rowID string, canonicalLeadID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := r.LinkCanonicalTx(ctx, tx, rowID, canonicalLeadID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
