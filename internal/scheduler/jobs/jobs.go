// Package jobs provides the handlers wired into the scheduler
// timetable.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/internal/execution"
	"github.com/quantfell/rotator/internal/scheduler"
	"github.com/quantfell/rotator/internal/store"
	"github.com/quantfell/rotator/pkg/logger"
)

// Snapshot pulls a fresh portfolio snapshot from the broker and
// persists it to the snapshot directory.
func Snapshot(broker contracts.Broker, dir string, log *logger.Logger) scheduler.Handler {
	return func(ctx context.Context) error {
		if err := broker.Connect(ctx); err != nil {
			return fmt.Errorf("broker connect: %w", err)
		}
		defer broker.Disconnect()

		snap, err := broker.GetPortfolio(ctx)
		if err != nil {
			return fmt.Errorf("portfolio snapshot: %w", err)
		}
		path, err := store.SaveSnapshot(dir, snap)
		if err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{
			"equity":    snap.TotalEquity,
			"positions": len(snap.Positions),
			"file":      path,
		}).Info("portfolio snapshot saved")
		return nil
	}
}

// Executions pulls the day's fills from the broker and persists them.
func Executions(broker contracts.Broker, dir string, log *logger.Logger) scheduler.Handler {
	return func(ctx context.Context) error {
		if err := broker.Connect(ctx); err != nil {
			return fmt.Errorf("broker connect: %w", err)
		}
		defer broker.Disconnect()

		day := time.Now().UTC()
		execs, err := broker.GetExecutions(ctx, day)
		if err != nil {
			return fmt.Errorf("pull executions: %w", err)
		}
		path, err := store.SaveExecutions(dir, day, execs)
		if err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{
			"executions": len(execs),
			"file":       path,
		}).Info("executions saved")
		return nil
	}
}

// Rebalance runs the execution pipeline in the configured mode. A run
// the pipeline itself declines (kill switch, mode degradation) is a
// recorded outcome, not a job failure; only operational errors trigger
// the scheduler's retry path.
func Rebalance(engine *execution.Engine, mode contracts.ExecutionMode, confirm string, log *logger.Logger) scheduler.Handler {
	return func(ctx context.Context) error {
		entry, err := engine.Run(ctx, mode, confirm)
		if err != nil {
			return fmt.Errorf("rebalance run: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"run_id":  entry.RunID,
			"outcome": entry.Outcome,
			"trades":  len(entry.Trades),
			"orders":  len(entry.Orders),
		}).Info("rebalance finished")
		return nil
	}
}
