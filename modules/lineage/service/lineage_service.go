package service

import (
	"context"

	"github.com/haloestate/leadpipe/modules/lineage/model"
	"github.com/haloestate/leadpipe/modules/lineage/ports"
	"github.com/jackc/pgx/v5"
)

// LineageService records the provenance trail consumed by the Transformer,
// Matcher, and Review Resolver. It never mutates or deletes an entry once
// written.
type LineageService struct {
	repo ports.LineageRepository
}

func NewLineageService(repo ports.LineageRepository) *LineageService {
	return &LineageService{repo: repo}
}

func (s *LineageService) Record(ctx context.Context, entry *model.LineageEntry) error {
	return s.repo.Create(ctx, entry)
}

// RecordTx writes through the caller's open transaction, for callers that
// must commit the lineage row atomically with other state changes.
func (s *LineageService) RecordTx(ctx context.Context, tx pgx.Tx, entry *model.LineageEntry) error {
	return s.repo.CreateTx(ctx, tx, entry)
}
