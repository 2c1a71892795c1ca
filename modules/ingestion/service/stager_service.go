package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/storage"
	"github.com/haloestate/leadpipe/internal/platform/workerqueue"
	"github.com/haloestate/leadpipe/modules/ingestion/model"
	"github.com/haloestate/leadpipe/modules/ingestion/ports"
	leadsourcesports "github.com/haloestate/leadpipe/modules/leadsources/ports"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// StagerService implements the Ingestion Stager: it accepts raw CSV bytes,
// deduplicates by content hash, writes the blob, and inserts a pending Batch.
type StagerService struct {
	batches     ports.BatchRepository
	leadSources leadsourcesports.LeadSourceRepository
	s3Client    *storage.S3Client
	log         *logger.Logger
}

func NewStagerService(batches ports.BatchRepository, leadSources leadsourcesports.LeadSourceRepository, s3Client *storage.S3Client, log *logger.Logger) *StagerService {
	return &StagerService{batches: batches, leadSources: leadSources, s3Client: s3Client, log: log}
}

// OriginMetadata carries where the upload came from, for the batch log entry.
type OriginMetadata struct {
	Channel string // e.g. "email_received", "api_upload"
	Detail  string
}

// StageResult reports whether staging created new work or found the file
// already staged.
type StageResult struct {
	Batch        *model.Batch
	Deduplicated bool
}

// Stage computes the file hash, short-circuits on a previously staged batch
// with the same (tenant, hash), and otherwise writes the blob and a pending
// Batch row.
func (s *StagerService) Stage(ctx context.Context, tenantID, sourceSlug, filename string, fileBytes []byte, origin OriginMetadata) (*StageResult, error) {
	source, err := s.leadSources.GetBySlug(ctx, tenantID, sourceSlug)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(fileBytes)
	fileHash := hex.EncodeToString(hash[:])

	existing, err := s.batches.GetByFileHash(ctx, tenantID, fileHash)
	if err == nil {
		return &StageResult{Batch: existing, Deduplicated: true}, nil
	}
	if !errors.Is(err, model.ErrBatchNotFound) {
		return nil, err
	}

	key := fmt.Sprintf("ingestions/%d_%s", time.Now().UTC().UnixMilli(), filename)
	if s.s3Client != nil {
		if err := s.s3Client.PutObject(ctx, key, fileBytes, "text/csv"); err != nil {
			return nil, err
		}
	}

	batch := &model.Batch{
		TenantID:     tenantID,
		LeadSourceID: source.ID,
		FileRef:      key,
		FileHash:     fileHash,
		Status:       model.BatchStatusPending,
		Log:          []string{model.LogEntry(fmt.Sprintf("staged via %s: %s", origin.Channel, origin.Detail))},
		Errors:       []string{},
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	s.log.Info("batch staged", zap.String("batch_id", batch.ID), zap.String("tenant_id", tenantID), zap.String("source", sourceSlug), zap.String("file_hash", fileHash))
	return &StageResult{Batch: batch, Deduplicated: false}, nil
}

const claimPendingBatchesQuery = `
	WITH claimed AS (
		UPDATE batches SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM batches WHERE status = 'pending'
			ORDER BY received_at ASC
			FOR UPDATE SKIP LOCKED LIMIT $1
		)
		RETURNING id, tenant_id, lead_source_id, file_ref, file_hash, received_at, status,
			total_rows, parsed_rows, valid_rows, duplicate_rows, error_rows, log, errors, created_at, updated_at
	)
	SELECT * FROM claimed
`

// ClaimPendingBatches hands pending batches to a worker loop via the shared
// claim-via-row-update discipline, reusing the same table-as-queue pattern
// as the other pipeline stages.
func ClaimPendingBatches(ctx context.Context, querier workerqueue.Querier, limit int) ([]*model.Batch, error) {
	return workerqueue.ClaimRows(ctx, querier, claimPendingBatchesQuery, scanClaimedBatch, limit)
}

func scanClaimedBatch(rows pgx.Rows) (*model.Batch, error) {
	var b model.Batch
	var logJSON, errorsJSON []byte
	if err := rows.Scan(
		&b.ID, &b.TenantID, &b.LeadSourceID, &b.FileRef, &b.FileHash, &b.ReceivedAt, &b.Status,
		&b.Counters.Total, &b.Counters.Parsed, &b.Counters.Valid, &b.Counters.DuplicateRows, &b.Counters.ErrorRows,
		&logJSON, &errorsJSON, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
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

const claimParsedBatchesQuery = `
	WITH claimed AS (
		UPDATE batches SET status = 'transforming', updated_at = now()
		WHERE id IN (
			SELECT id FROM batches WHERE status = 'parsed'
			ORDER BY received_at ASC
			FOR UPDATE SKIP LOCKED LIMIT $1
		)
		RETURNING id, tenant_id, lead_source_id, file_ref, file_hash, received_at, status,
			total_rows, parsed_rows, valid_rows, duplicate_rows, error_rows, log, errors, created_at, updated_at
	)
	SELECT * FROM claimed
`

// ClaimParsedBatches hands parsed batches to the Transformer's poll loop,
// mirroring ClaimPendingBatches' claim-via-row-update discipline.
func ClaimParsedBatches(ctx context.Context, querier workerqueue.Querier, limit int) ([]*model.Batch, error) {
	return workerqueue.ClaimRows(ctx, querier, claimParsedBatchesQuery, scanClaimedBatch, limit)
}
