// Package orchestrator drives one batch invocation of spec.md §4.12:
// stale-task recovery, a bounded drain of pending tasks, and a
// per-task lock/process/release loop that distinguishes a processing
// failure (continue the batch) from a system failure (abort it).
// Grounded on the teacher's internal/services/marketdata/
// ohlcv_orchestrator.go UpdateAllOHLCV/runTimeframe split: a top-level
// loop over units of work, each wrapped in its own setup/cleanup, with
// the outcome counts logged and also returned from Run as Counts.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"transformat/internal/lock"
	"transformat/internal/metrics"
	"transformat/internal/processor"
	"transformat/internal/repo"
	"transformat/internal/xerrors"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// taskProcessor is the single-task pipeline the orchestrator drives.
// *processor.Processor satisfies it; tests substitute a fake to exercise
// the lock/skip/abort loop without a real transfer/parse/write pipeline.
type taskProcessor interface {
	Run(ctx context.Context, taskID string) error
}

// Orchestrator runs one drain-the-queue pass.
type Orchestrator struct {
	tasks      *repo.TaskRepo
	fileRecs   *repo.FileRecordRepo
	locks      *lock.Manager
	proc       taskProcessor
	batchSize  int
	staleAfter time.Duration
	log        *zap.Logger
	pool       *pgxpool.Pool
}

func New(tasks *repo.TaskRepo, fileRecs *repo.FileRecordRepo, locks *lock.Manager, proc *processor.Processor, batchSize int, staleAfter time.Duration, log *zap.Logger, pool *pgxpool.Pool) *Orchestrator {
	return newWithProcessor(tasks, fileRecs, locks, proc, batchSize, staleAfter, log, pool)
}

func newWithProcessor(tasks *repo.TaskRepo, fileRecs *repo.FileRecordRepo, locks *lock.Manager, proc taskProcessor, batchSize int, staleAfter time.Duration, log *zap.Logger, pool *pgxpool.Pool) *Orchestrator {
	return &Orchestrator{
		tasks: tasks, fileRecs: fileRecs, locks: locks, proc: proc,
		batchSize: batchSize, staleAfter: staleAfter, log: log, pool: pool,
	}
}

// Counts summarizes one Run's outcome.
type Counts struct {
	Completed int
	Failed    int
	Skipped   int
	Recovered int
	Aborted   bool
}

// Run executes recovery, then drains up to batchSize pending tasks.
func (o *Orchestrator) Run(ctx context.Context) Counts {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	if o.pool != nil {
		stat := o.pool.Stat()
		metrics.RecordPoolStat(stat.AcquiredConns(), stat.IdleConns(), stat.TotalConns())
	}

	var counts Counts
	counts.Recovered = o.recoverStale(ctx)

	tasks, err := o.tasks.QueryPending(ctx, o.batchSize)
	if err != nil {
		o.log.Error("failed to query pending tasks", zap.Error(err))
		return counts
	}

	for _, t := range tasks {
		heldLock, acquired, err := o.locks.Acquire(ctx, t.FileRecordID, 0)
		if err != nil {
			o.log.Error("lock acquisition error", zap.String("task_id", t.TaskID), zap.Error(err))
			metrics.RecordLockAttempt("error")
			counts.Failed++
			counts.Aborted = true
			break
		}
		if !acquired {
			metrics.RecordLockAttempt("contended")
			counts.Skipped++
			continue
		}
		metrics.RecordLockAttempt("acquired")

		taskStart := time.Now()
		procErr := o.proc.Run(ctx, t.TaskID)
		heldLock.Release(ctx)

		if procErr == nil {
			counts.Completed++
			metrics.RecordTaskOutcome("completed", time.Since(taskStart).Seconds())
			continue
		}

		counts.Failed++
		metrics.RecordTaskOutcome("failed", time.Since(taskStart).Seconds())

		if xerrors.IsSystem(procErr) {
			o.log.Error("system error, aborting batch", zap.String("task_id", t.TaskID), zap.Error(procErr))
			counts.Aborted = true
			break
		}
		o.log.Warn("task failed, continuing batch", zap.String("task_id", t.TaskID), zap.Error(procErr))
	}

	o.log.Info("batch complete",
		zap.Int("completed", counts.Completed),
		zap.Int("failed", counts.Failed),
		zap.Int("skipped", counts.Skipped),
		zap.Int("recovered", counts.Recovered),
		zap.Bool("aborted", counts.Aborted))
	return counts
}

// recoverStale resets processing tasks that have been stuck past the
// stale threshold back to pending. Each reset is independent of the
// others, so they fan out through a bounded errgroup rather than one at
// a time. Failures here are logged and never stop the run (spec.md
// §4.12 step 1).
func (o *Orchestrator) recoverStale(ctx context.Context) int {
	stale, err := o.tasks.QueryStaleProcessing(ctx, o.staleAfter)
	if err != nil {
		o.log.Error("failed to query stale tasks", zap.Error(err))
		return 0
	}

	var mu sync.Mutex
	recovered := 0
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(recoveryFanout)
	for _, t := range stale {
		t := t
		g.Go(func() error {
			if err := o.tasks.ResetToPending(gCtx, t.TaskID); err != nil {
				o.log.Error("failed to recover stale task", zap.String("task_id", t.TaskID), zap.Error(err))
				return nil
			}
			mu.Lock()
			recovered++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return recovered
}

// recoveryFanout bounds how many stale-task resets run concurrently.
const recoveryFanout = 8
