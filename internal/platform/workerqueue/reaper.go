package workerqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReapSpec describes one table's stuck-claim recovery: rows sitting in
// processingStatus older than stuckAfter are returned to pendingStatus and
// their attempts column (if any) incremented, so a crashed worker never
// strands work forever.
type ReapSpec struct {
	Table             string
	ProcessingStatus  string
	PendingStatus     string
	StuckAfterSeconds int
	// AttemptsColumn is incremented on reap when non-empty. Leave empty for
	// tables (like batches) that track retries differently.
	AttemptsColumn string
}

// Reap returns stuck rows in spec.Table to spec.PendingStatus and reports
// how many rows were recovered.
func Reap(ctx context.Context, pool *pgxpool.Pool, spec ReapSpec) (int64, error) {
	attemptsClause := ""
	if spec.AttemptsColumn != "" {
		attemptsClause = fmt.Sprintf(", %s = %s + 1", spec.AttemptsColumn, spec.AttemptsColumn)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, updated_at = now() %s
		WHERE status = $2 AND updated_at < now() - ($3 || ' seconds')::interval
	`, spec.Table, attemptsClause)

	tag, err := pool.Exec(ctx, query, spec.PendingStatus, spec.ProcessingStatus, spec.StuckAfterSeconds)
	if err != nil {
		return 0, fmt.Errorf("reap %s: %w", spec.Table, err)
	}
	return tag.RowsAffected(), nil
}
