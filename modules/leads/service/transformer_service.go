package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/workerqueue"
	ingestionmodel "github.com/haloestate/leadpipe/modules/ingestion/model"
	ingestionports "github.com/haloestate/leadpipe/modules/ingestion/ports"
	ingestionservice "github.com/haloestate/leadpipe/modules/ingestion/service"
	leadsourcesmodel "github.com/haloestate/leadpipe/modules/leadsources/model"
	leadsourcesports "github.com/haloestate/leadpipe/modules/leadsources/ports"
	"github.com/haloestate/leadpipe/modules/leads/model"
	"github.com/haloestate/leadpipe/modules/leads/ports"
	lineagemodel "github.com/haloestate/leadpipe/modules/lineage/model"
	"github.com/haloestate/leadpipe/modules/lineage/service"
	"github.com/haloestate/leadpipe/pkg/normalize"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// transactionalQuerier is what the Transformer needs of the pool: claiming
// parsed batches via workerqueue.Querier's raw Query, and opening a
// transaction per row so a row's canonical insert, back-link, lineage
// entry, and embedding enqueue commit or fail together.
type transactionalQuerier interface {
	workerqueue.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// canonicalFields is the fixed attribute order used both for field mapping
// and for composing the embedding text, so embeddings are deterministic.
var canonicalFields = []string{
	"first_name", "last_name", "email", "phone", "address", "lead_type", "source_record_id", "source_created_at",
}

// TransformerService consumes parsed batches, deduplicates within
// (tenant, source, email), and inserts canonical leads.
type TransformerService struct {
	batches     ingestionports.BatchRepository
	leadSources leadsourcesports.LeadSourceRepository
	canonical   ports.CanonicalLeadRepository
	lineage     *service.LineageService
	embeddings  ports.EmbeddingEnqueuer
	pool        transactionalQuerier
	log         *logger.Logger
}

func NewTransformerService(
	batches ingestionports.BatchRepository,
	leadSources leadsourcesports.LeadSourceRepository,
	canonical ports.CanonicalLeadRepository,
	lineage *service.LineageService,
	embeddings ports.EmbeddingEnqueuer,
	pool transactionalQuerier,
	log *logger.Logger,
) *TransformerService {
	return &TransformerService{
		batches:     batches,
		leadSources: leadSources,
		canonical:   canonical,
		lineage:     lineage,
		embeddings:  embeddings,
		pool:        pool,
		log:         log,
	}
}

// TransformResult reports the canonical ids produced, handed off to the
// Matcher by the caller.
type TransformResult struct {
	NewCanonicalIDs []string
	Failed          int
}

// RunPending claims up to limit parsed batches and transforms each in turn,
// for the Transformer's poll loop. Returns the total row count processed
// across all claimed batches.
func (s *TransformerService) RunPending(ctx context.Context, limit int) (int, error) {
	batches, err := ingestionservice.ClaimParsedBatches(ctx, s.pool, limit)
	if err != nil {
		return 0, fmt.Errorf("claim parsed batches: %w", err)
	}

	processed := 0
	for _, batch := range batches {
		result, err := s.Transform(ctx, batch)
		if err != nil {
			s.log.Error("transform batch failed", zap.String("batch_id", batch.ID), zap.Error(err))
			continue
		}
		processed += len(result.NewCanonicalIDs) + result.Failed
	}
	return processed, nil
}

// Transform processes every still-unmatched valid raw row of a parsed
// batch, in row_number order, and advances the batch to completed or
// partial.
func (s *TransformerService) Transform(ctx context.Context, batch *ingestionmodel.Batch) (*TransformResult, error) {
	source, err := s.leadSources.GetByID(ctx, batch.TenantID, batch.LeadSourceID)
	if err != nil {
		return nil, fmt.Errorf("resolve lead source: %w", err)
	}

	rows, err := s.batches.ListValidUnmatchedRows(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("list unmatched rows: %w", err)
	}

	result := &TransformResult{}
	for _, row := range rows {
		canonicalID, duplicateOf, err := s.transformRow(ctx, batch, source, row)
		if err != nil {
			result.Failed++
			s.log.Error("transform row failed", zap.String("batch_id", batch.ID), zap.Int("row_number", row.RowNumber), zap.Error(err))
			continue
		}
		if duplicateOf != "" {
			batch.Counters.DuplicateRows++
			continue
		}
		result.NewCanonicalIDs = append(result.NewCanonicalIDs, canonicalID)
	}

	if result.Failed > 0 {
		batch.Status = ingestionmodel.BatchStatusPartial
		batch.Errors = append(batch.Errors, fmt.Sprintf("%d row(s) failed transformation", result.Failed))
	} else {
		batch.Status = ingestionmodel.BatchStatusCompleted
	}
	if err := s.batches.UpdateStatusAndCounters(ctx, batch); err != nil {
		return nil, fmt.Errorf("update batch status: %w", err)
	}

	return result, nil
}

func (s *TransformerService) transformRow(ctx context.Context, batch *ingestionmodel.Batch, source *leadsourcesmodel.LeadSource, row *ingestionmodel.RawRow) (string, string, error) {
	fields := map[string]string{}
	for _, field := range canonicalFields {
		if v, ok := source.FirstNonEmpty(row.RawData, field); ok {
			fields[field] = v
		}
	}

	emailNormalized := normalize.Email(fields["email"])
	if emailNormalized != "" {
		existing, err := s.canonical.GetByTenantSourceEmail(ctx, batch.TenantID, batch.LeadSourceID, emailNormalized)
		if err == nil {
			if err := s.batches.MarkDuplicate(ctx, row.ID, existing.ID); err != nil {
				return "", "", fmt.Errorf("mark duplicate: %w", err)
			}
			return "", existing.ID, nil
		}
		if !errors.Is(err, model.ErrCanonicalLeadNotFound) {
			return "", "", fmt.Errorf("dedup lookup: %w", err)
		}
	}

	leadID, err := s.createCanonicalRow(ctx, batch, source, row, fields, emailNormalized)
	if err != nil {
		return "", "", err
	}
	return leadID, "", nil
}

// createCanonicalRow inserts the canonical lead and its back-link, lineage
// entry, and embedding task in a single transaction, so a failure partway
// through never leaves a canonical lead with no back-linked raw row (which
// would otherwise be re-transformed forever on retry).
func (s *TransformerService) createCanonicalRow(ctx context.Context, batch *ingestionmodel.Batch, source *leadsourcesmodel.LeadSource, row *ingestionmodel.RawRow, fields map[string]string, emailNormalized string) (string, error) {
	phoneNormalized := normalize.Phone(fields["phone"])
	addressNormalized := normalize.Address(fields["address"])
	sourceCreatedAt := parseSourceDate(fields["source_created_at"], source.CSVConfig.DateFormat)

	lead := &model.CanonicalLead{
		TenantID:     batch.TenantID,
		LeadSourceID: batch.LeadSourceID,
		RawRowID:     &row.ID,
		RawData:      row.RawData,
		MatchStatus:  model.MatchStatusPending,
	}
	assignIfNonEmpty(&lead.FirstName, fields["first_name"])
	assignIfNonEmpty(&lead.LastName, fields["last_name"])
	assignIfNonEmpty(&lead.Email, fields["email"])
	assignIfNonEmpty(&lead.EmailNormalized, emailNormalized)
	assignIfNonEmpty(&lead.Phone, fields["phone"])
	assignIfNonEmpty(&lead.PhoneNormalized, phoneNormalized)
	assignIfNonEmpty(&lead.Address, fields["address"])
	assignIfNonEmpty(&lead.AddressNormalized, addressNormalized)
	assignIfNonEmpty(&lead.LeadType, fields["lead_type"])
	assignIfNonEmpty(&lead.SourceRecordID, fields["source_record_id"])
	lead.SourceCreatedAt = sourceCreatedAt

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transform tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback(ctx)
		}
	}()

	if err := s.canonical.CreateTx(ctx, tx, lead); err != nil {
		return "", fmt.Errorf("insert canonical lead: %w", err)
	}

	if err := s.batches.LinkCanonicalTx(ctx, tx, row.ID, lead.ID); err != nil {
		return "", fmt.Errorf("back-link raw row: %w", err)
	}

	if err := s.lineage.RecordTx(ctx, tx, &lineagemodel.LineageEntry{
		TenantID:           batch.TenantID,
		SourceTable:        "raw_rows",
		SourceID:           row.ID,
		TargetTable:        "canonical_leads",
		TargetID:           lead.ID,
		Operation:          lineagemodel.OperationCreate,
		TransformationType: "normalize",
		PerformedBy:        "transformer",
	}); err != nil {
		return "", fmt.Errorf("record lineage: %w", err)
	}

	if err := s.embeddings.EnqueueTx(ctx, tx, "canonical_leads", lead.ID, composeEmbeddingText(fields)); err != nil {
		return "", fmt.Errorf("enqueue embedding: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transform tx: %w", err)
	}
	committed = true
	return lead.ID, nil
}

func assignIfNonEmpty(dst **string, value string) {
	if value == "" {
		return
	}
	v := value
	*dst = &v
}

// composeEmbeddingText joins non-empty attributes in the fixed canonical
// field order, so the same lead always produces the same embedding input.
func composeEmbeddingText(fields map[string]string) string {
	parts := make([]string, 0, len(canonicalFields))
	for _, field := range canonicalFields {
		if v := fields[field]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}
