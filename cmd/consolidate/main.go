package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethicase/backend/internal/util"
	"github.com/ethicase/backend/pkg/consolidate"
	"github.com/ethicase/backend/pkg/db"
	"github.com/ethicase/backend/pkg/dedupe"
	"github.com/ethicase/backend/pkg/leaselock"
	"github.com/ethicase/backend/pkg/logger"
	"github.com/ethicase/backend/pkg/logger/console"
)

// One-shot consolidation run, meant for cron jobs and manual operation.
// Exits non-zero when any row could not be processed so schedulers can alert.
func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "consolidate",
	})
	logger.Init(consoleLogger)

	migrationsDir := util.GetEnvString("MIGRATIONS_DIR", "db/migrations")
	if err := db.Migrate(migrationsDir, util.GetEnv("DATABASE_URL")); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	pgConn, err := db.NewPool(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	var summary consolidate.Summary

	locks := leaselock.New(pgConn)
	err = locks.WithLease(ctx, "consolidate", leaselock.Options{
		TTL:         10 * time.Minute,
		RenewEvery:  4 * time.Minute,
		Wait:        true,
		TokenPrefix: "consolidate-cli/",
	}, func(ctx context.Context) error {
		job := consolidate.NewJob(pgConn, dedupe.New(pgConn))
		var runErr error
		summary, runErr = job.Run(ctx)
		return runErr
	})

	var partial *consolidate.PartialFailureError
	switch {
	case err == nil:
		// all passes clean
	case errors.As(err, &partial):
		summary = partial.Summary
	default:
		logger.Fatal("Consolidation failed", "err", err)
	}

	for _, pass := range summary.Passes {
		logger.Info(
			"[Consolidate] Pass finished",
			"pass", pass.Name,
			"examined", pass.Examined,
			"removed", pass.Removed,
			"failed", len(pass.Failures),
		)
		for _, failure := range pass.Failures {
			logger.Warn("[Consolidate] Row skipped", "pass", pass.Name, "row", failure.RowID, "err", failure.Err)
		}
	}

	if util.GetEnvBool("CONSOLIDATE_JSON", false) {
		out, marshalErr := json.Marshal(summary)
		if marshalErr != nil {
			logger.Fatal("Failed to encode summary", "err", marshalErr)
		}
		fmt.Println(string(out))
	}

	if partial != nil {
		logger.Error(
			"Consolidation left rows unprocessed",
			"removed", summary.TotalRemoved(),
			"failed", summary.TotalFailed(),
		)
		os.Exit(1)
	}

	logger.Info("Consolidation complete", "removed", summary.TotalRemoved())
}
