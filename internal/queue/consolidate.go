package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethicase/backend/pkg/consolidate"
	"github.com/ethicase/backend/pkg/dedupe"
	"github.com/ethicase/backend/pkg/leaselock"
	"github.com/ethicase/backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessConsolidateMessage runs the consolidation job under a lease so only
// one runner works at a time. A message naming a document only heals that
// document's duplicate guidelines; an empty message runs the full job.
// Partial failures are returned so the message is retried and the remaining
// rows get another chance.
func ProcessConsolidateMessage(
	ctx context.Context,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(ConsolidateMessage)
	if err := decodeMessage(msg, data); err != nil {
		return err
	}

	dedupeService := dedupe.New(conn)
	lockClient := leaselock.New(conn)

	return lockClient.WithLease(ctx, "consolidate", leaselock.Options{
		TTL:         10 * time.Minute,
		RenewEvery:  4 * time.Minute,
		Wait:        true,
		TokenPrefix: "consolidate/",
	}, func(ctx context.Context) error {
		if data.DocumentID > 0 {
			canonical, err := dedupeService.ResolveGuideline(ctx, data.DocumentID)
			if err != nil {
				return fmt.Errorf("failed to consolidate document %d: %w", data.DocumentID, err)
			}
			logger.Info("[Queue] Consolidate completed", "document_id", data.DocumentID, "canonical", canonical)
			return nil
		}

		start := time.Now()
		summary, err := consolidate.NewJob(conn, dedupeService).Run(ctx)
		logger.Info("[Queue] Consolidate completed",
			"removed", summary.TotalRemoved(), "failed", summary.TotalFailed(),
			"duration_sec", time.Since(start).Seconds())

		var partial *consolidate.PartialFailureError
		if errors.As(err, &partial) {
			logger.Warn("[Queue] Consolidation left rows unprocessed", "failed", partial.Summary.TotalFailed())
		}
		return err
	})
}
