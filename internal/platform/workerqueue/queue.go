// Package workerqueue provides the claim-via-row-update discipline shared
// by every polling worker in the pipeline (transformer, matcher, embedder,
// CRM puller): there is no in-process queue, the queue is the database.
// Work is claimed with an atomic
//
//	UPDATE ... SET status = 'processing' WHERE id IN (
//	    SELECT ... FOR UPDATE SKIP LOCKED LIMIT N
//	) RETURNING ...
//
// so that no two workers anywhere ever process the same row.
package workerqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ClaimRows runs a claim query that must already contain the
// UPDATE ... RETURNING shape described above, and scans each returned row
// with scan. It is generic over the claimed row type so the transformer,
// matcher, embedder, and CRM puller can each describe their own row shape
// while sharing one code path for the SKIP LOCKED discipline itself.
func ClaimRows[T any](ctx context.Context, querier Querier, query string, scan func(pgx.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claim query: %w", err)
	}
	defer rows.Close()

	var claimed []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}
		claimed = append(claimed, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed rows: %w", err)
	}
	return claimed, nil
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx alike, so a claim can run
// either standalone or as part of a larger transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
