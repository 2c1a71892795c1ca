package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/haloestate/leadpipe/internal/platform/logger"
	"github.com/haloestate/leadpipe/internal/platform/notify"
	"github.com/haloestate/leadpipe/modules/ingestion/model"
	"github.com/haloestate/leadpipe/modules/ingestion/ports"
	leadsourcesmodel "github.com/haloestate/leadpipe/modules/leadsources/model"
	leadsourcesports "github.com/haloestate/leadpipe/modules/leadsources/ports"
	"go.uber.org/zap"
)

// ParserService implements the parse step: it splits a staged batch's raw
// bytes into RawRow records per the owning LeadSource's csv_config, and
// validates each row against its validation_rules.
type ParserService struct {
	batches     ports.BatchRepository
	leadSources leadsourcesports.LeadSourceRepository
	notifier    *notify.Notifier
	log         *logger.Logger
}

func NewParserService(batches ports.BatchRepository, leadSources leadsourcesports.LeadSourceRepository, notifier *notify.Notifier, log *logger.Logger) *ParserService {
	return &ParserService{batches: batches, leadSources: leadSources, notifier: notifier, log: log}
}

// Parse reads fileBytes per the batch's lead source configuration, inserts
// one RawRow per data row, and advances the batch to parsed (or failed on an
// unexpected error).
func (s *ParserService) Parse(ctx context.Context, batch *model.Batch, fileBytes []byte) error {
	source, err := s.leadSources.GetByID(ctx, batch.TenantID, batch.LeadSourceID)
	if err != nil {
		return s.fail(ctx, batch, fmt.Errorf("resolve lead source: %w", err))
	}

	rows, rowOffset, err := splitCSV(fileBytes, source.CSVConfig)
	if err != nil {
		return s.fail(ctx, batch, fmt.Errorf("split csv: %w", err))
	}

	emailPattern, err := compileEmailRegex(source.ValidationRules.EmailRegex)
	if err != nil {
		return s.fail(ctx, batch, fmt.Errorf("compile email_regex: %w", err))
	}

	rawRows := make([]*model.RawRow, 0, len(rows))
	for i, row := range rows {
		isValid, validationErrors := validateRow(source, row, emailPattern)
		rawRows = append(rawRows, &model.RawRow{
			BatchID: batch.ID,
			// row_number is 1-based in the original file, so it counts the
			// skipped and header lines that never became a RawRow.
			RowNumber:        rowOffset + i + 1,
			RawData:          row,
			IsValid:          isValid,
			ValidationErrors: validationErrors,
		})
	}

	if err := s.batches.CreateRawRows(ctx, rawRows); err != nil {
		return s.fail(ctx, batch, fmt.Errorf("insert raw rows: %w", err))
	}

	batch.Counters.Total = len(rawRows)
	batch.Counters.Parsed = len(rawRows)
	for _, rr := range rawRows {
		if rr.IsValid {
			batch.Counters.Valid++
		} else {
			batch.Counters.ErrorRows++
		}
	}
	batch.Status = model.BatchStatusParsed

	if err := s.batches.UpdateStatusAndCounters(ctx, batch); err != nil {
		return err
	}
	s.log.Info("batch parsed", zap.String("batch_id", batch.ID), zap.Int("total", batch.Counters.Total), zap.Int("valid", batch.Counters.Valid), zap.Int("error_rows", batch.Counters.ErrorRows))
	return nil
}

func (s *ParserService) fail(ctx context.Context, batch *model.Batch, cause error) error {
	batch.Status = model.BatchStatusFailed
	batch.Errors = append(batch.Errors, cause.Error())
	if updErr := s.batches.UpdateStatusAndCounters(ctx, batch); updErr != nil {
		s.log.Error("failed to record batch failure", zap.String("batch_id", batch.ID), zap.NamedError("cause", cause), zap.Error(updErr))
	}
	s.notifier.OpsAlert(ctx, "batch parse failed", fmt.Sprintf("batch %s (tenant %s): %v", batch.ID, batch.TenantID, cause))
	return cause
}

// splitCSV applies skip_rows, the configured delimiter, and header handling
// to produce one map[column]value per data row, in file order. The returned
// offset is the count of physical lines (skipped rows plus the header) that
// precede the first data row, so callers can number rows 1-based against
// the original file rather than against this function's own output.
func splitCSV(fileBytes []byte, cfg leadsourcesmodel.CSVConfig) ([]map[string]string, int, error) {
	reader := csv.NewReader(strings.NewReader(string(fileBytes)))
	reader.FieldsPerRecord = -1
	delimiter := cfg.Delimiter
	if delimiter == "" {
		delimiter = ","
	}
	reader.Comma = rune(delimiter[0])

	records, err := reader.ReadAll()
	if err != nil {
		return nil, 0, err
	}
	offset := 0
	if cfg.SkipRows > 0 && cfg.SkipRows <= len(records) {
		records = records[cfg.SkipRows:]
		offset = cfg.SkipRows
	}
	if len(records) == 0 {
		return nil, offset, nil
	}

	var headers []string
	dataRecords := records
	if cfg.HasHeader {
		headers = records[0]
		dataRecords = records[1:]
		offset++
	} else {
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	rows := make([]map[string]string, 0, len(dataRecords))
	for _, record := range dataRecords {
		row := make(map[string]string, len(headers))
		for i, value := range record {
			if i >= len(headers) {
				break
			}
			row[headers[i]] = value
		}
		rows = append(rows, row)
	}
	return rows, offset, nil
}

func compileEmailRegex(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// validateRow applies required_fields (at least one mapped column non-empty)
// and email_regex to one row.
func validateRow(source *leadsourcesmodel.LeadSource, row map[string]string, emailPattern *regexp.Regexp) (bool, []string) {
	var validationErrors []string

	for _, field := range source.ValidationRules.RequiredFields {
		if _, ok := source.FirstNonEmpty(row, field); !ok {
			validationErrors = append(validationErrors, fmt.Sprintf("missing required field: %s", field))
		}
	}

	if emailPattern != nil {
		if email, ok := source.FirstNonEmpty(row, "email"); ok {
			if !emailPattern.MatchString(email) {
				validationErrors = append(validationErrors, "email does not match required pattern")
			}
		}
	}

	return len(validationErrors) == 0, validationErrors
}
