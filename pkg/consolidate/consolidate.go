// Package consolidate implements the maintenance job that heals drift in the
// annotation store: orphaned triples, duplicate guideline records and
// redundant facts. Every pass is idempotent and works row by row, so a
// crashed or partially failed run can simply be rerun.
package consolidate

import (
	"context"
	"fmt"

	"github.com/ethicase/backend/pkg/dedupe"
	"github.com/ethicase/backend/pkg/logger"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Job runs the consolidation passes.
type Job struct {
	conn   pgxIConn
	dedupe *dedupe.Service
}

func NewJob(conn pgxIConn, dedupe *dedupe.Service) *Job {
	return &Job{conn: conn, dedupe: dedupe}
}

// Run executes all passes in order and returns a summary. When some rows
// could not be processed the returned error is a *PartialFailureError and
// the summary still reflects the completed work. Any other error means a
// pass could not run at all.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	passes := []struct {
		name string
		run  func(ctx context.Context) (PassResult, error)
	}{
		{"orphaned_triples", j.removeOrphanedTriples},
		{"duplicate_guidelines", j.mergeDuplicateGuidelines},
		{"duplicate_facts", j.removeDuplicateFacts},
	}

	var summary Summary
	for _, pass := range passes {
		logger.Info("[Consolidate] Running pass", "pass", pass.name)
		result, err := pass.run(ctx)
		if err != nil {
			return summary, fmt.Errorf("pass %s failed: %w", pass.name, err)
		}
		logger.Info("[Consolidate] Pass finished",
			"pass", result.Name, "examined", result.Examined,
			"removed", result.Removed, "failed", len(result.Failures))
		summary.Passes = append(summary.Passes, result)
	}

	if summary.TotalFailed() > 0 {
		return summary, &PartialFailureError{Summary: summary}
	}
	return summary, nil
}

// deleteRows deletes each candidate row in its own transaction using
// recheckSQL, which must re-verify the removal condition so rows healed
// between scan and delete are left alone. Failures are recorded, not fatal.
func (j *Job) deleteRows(ctx context.Context, result *PassResult, ids []int64, recheckSQL string) {
	for _, id := range ids {
		removed, err := j.deleteRow(ctx, id, recheckSQL)
		if err != nil {
			result.Failures = append(result.Failures, RowFailure{RowID: id, Err: err.Error()})
			logger.Warn("[Consolidate] Row failed", "pass", result.Name, "row", id, "err", err)
			continue
		}
		// A zero count means the row healed between scan and delete; it is
		// examined but not removed.
		result.Removed += int(removed)
	}
}

func (j *Job) deleteRow(ctx context.Context, id int64, recheckSQL string) (int64, error) {
	tx, err := j.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, recheckSQL, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete row: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (j *Job) scanIDs(ctx context.Context, sql string, args ...any) ([]int64, error) {
	rows, err := j.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
