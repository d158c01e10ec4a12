package repo

import (
	"context"
	"time"

	"transformat/internal/data"
	"transformat/internal/model"
	"transformat/internal/xerrors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// TaskRepo persists FileTask rows per spec.md §4.9.
type TaskRepo struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewTaskRepo(pool *pgxpool.Pool, log *zap.Logger) *TaskRepo {
	return &TaskRepo{pool: pool, log: log}
}

// Create inserts a new task in pending status.
func (r *TaskRepo) Create(ctx context.Context, t model.FileTask) error {
	_, err := data.ExecWithRetry(ctx, r.log, r.pool, `
		INSERT INTO file_tasks (task_id, file_record_id, file_name, status, previous_failed_task_id)
		VALUES ($1, $2, $3, $4, $5)`,
		t.TaskID, t.FileRecordID, t.FileName, model.StatusPending, t.PreviousFailedTaskID,
	)
	if err != nil {
		return classifyQueryErr(err)
	}
	return nil
}

// FetchByID returns the task row for taskID, or FILE_NOT_FOUND if no
// such row exists (spec.md §4.13 step 1).
func (r *TaskRepo) FetchByID(ctx context.Context, taskID string) (model.FileTask, error) {
	var out model.FileTask
	err := data.QueryRowWithRetry(ctx, r.log, r.pool, func(row pgx.Row) error {
		t, err := scanTask(row)
		if err != nil {
			return err
		}
		out = t
		return nil
	}, `
		SELECT task_id, file_record_id, file_name, status, started_at, completed_at,
		       error_message, previous_failed_task_id
		FROM file_tasks WHERE task_id = $1`, taskID)

	if err == pgx.ErrNoRows {
		return model.FileTask{}, xerrors.New(xerrors.CodeFileNotFound, map[string]any{"path": taskID})
	}
	if err != nil {
		return model.FileTask{}, classifyQueryErr(err)
	}
	return out, nil
}

// MarkProcessing transitions pending -> processing, setting started_at.
func (r *TaskRepo) MarkProcessing(ctx context.Context, taskID string) error {
	_, err := data.ExecWithRetry(ctx, r.log, r.pool, `
		UPDATE file_tasks SET status = $1, started_at = now() WHERE task_id = $2`,
		model.StatusProcessing, taskID,
	)
	if err != nil {
		return classifyQueryErr(err)
	}
	return nil
}

// MarkCompleted transitions processing -> completed, setting completed_at.
func (r *TaskRepo) MarkCompleted(ctx context.Context, taskID string) error {
	_, err := data.ExecWithRetry(ctx, r.log, r.pool, `
		UPDATE file_tasks SET status = $1, completed_at = now(), error_message = ''
		WHERE task_id = $2`,
		model.StatusCompleted, taskID,
	)
	if err != nil {
		return classifyQueryErr(err)
	}
	return nil
}

// MarkFailed transitions processing -> failed, recording the rendered
// error message and setting completed_at.
func (r *TaskRepo) MarkFailed(ctx context.Context, taskID, errorMessage string) error {
	_, err := data.ExecWithRetry(ctx, r.log, r.pool, `
		UPDATE file_tasks SET status = $1, completed_at = now(), error_message = $2
		WHERE task_id = $3`,
		model.StatusFailed, errorMessage, taskID,
	)
	if err != nil {
		return classifyQueryErr(err)
	}
	return nil
}

// QueryPending returns up to limit pending tasks, ordered by task_id ascending.
func (r *TaskRepo) QueryPending(ctx context.Context, limit int) ([]model.FileTask, error) {
	var out []model.FileTask
	err := data.QueryWithRetry(ctx, r.log, r.pool, func(rows pgx.Rows) error {
		scanned, err := scanTasks(rows)
		out = scanned
		return err
	}, `
		SELECT task_id, file_record_id, file_name, status, started_at, completed_at,
		       error_message, previous_failed_task_id
		FROM file_tasks WHERE status = $1 ORDER BY task_id ASC LIMIT $2`,
		model.StatusPending, limit,
	)
	if err != nil {
		return nil, classifyQueryErr(err)
	}
	return out, nil
}

// QueryStaleProcessing returns processing tasks started more than
// staleThreshold ago.
func (r *TaskRepo) QueryStaleProcessing(ctx context.Context, staleThreshold time.Duration) ([]model.FileTask, error) {
	cutoff := time.Now().Add(-staleThreshold)
	var out []model.FileTask
	err := data.QueryWithRetry(ctx, r.log, r.pool, func(rows pgx.Rows) error {
		scanned, err := scanTasks(rows)
		out = scanned
		return err
	}, `
		SELECT task_id, file_record_id, file_name, status, started_at, completed_at,
		       error_message, previous_failed_task_id
		FROM file_tasks WHERE status = $1 AND started_at < $2`,
		model.StatusProcessing, cutoff,
	)
	if err != nil {
		return nil, classifyQueryErr(err)
	}
	return out, nil
}

// classifyQueryErr wraps err as DB_CONNECTION_FAILED unless it is
// already a catalogued *xerrors.Error (QueryWithRetry/QueryRowWithRetry
// wrap connection-exhaustion themselves; this only covers the plain
// scan/driver errors that pass through unwrapped).
func classifyQueryErr(err error) error {
	if _, ok := xerrors.CodeOf(err); ok {
		return err
	}
	return xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
}

// ResetToPending clears started_at/completed_at/error_message and sets
// status back to pending — the stale-task recovery transition of
// spec.md §3.
func (r *TaskRepo) ResetToPending(ctx context.Context, taskID string) error {
	_, err := data.ExecWithRetry(ctx, r.log, r.pool, `
		UPDATE file_tasks
		SET status = $1, started_at = NULL, completed_at = NULL, error_message = ''
		WHERE task_id = $2`,
		model.StatusPending, taskID,
	)
	if err != nil {
		return classifyQueryErr(err)
	}
	return nil
}

// Retry creates a new pending task for the same file record, linking it
// to the prior failed attempt via previous_failed_task_id. This is the
// retry-linkage supplement (not in the original reduced queue model):
// a failed task is never mutated again, a fresh one picks up the chain.
func (r *TaskRepo) Retry(ctx context.Context, failed model.FileTask, newTaskID string) error {
	return r.Create(ctx, model.FileTask{
		TaskID:               newTaskID,
		FileRecordID:         failed.FileRecordID,
		FileName:             failed.FileName,
		PreviousFailedTaskID: failed.TaskID,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.FileTask, error) {
	var t model.FileTask
	var status string
	err := row.Scan(&t.TaskID, &t.FileRecordID, &t.FileName, &status,
		&t.StartedAt, &t.CompletedAt, &t.ErrorMessage, &t.PreviousFailedTaskID)
	if err != nil {
		return model.FileTask{}, err
	}
	t.Status = model.TaskStatus(status)
	return t, nil
}

func scanTasks(rows pgx.Rows) ([]model.FileTask, error) {
	var out []model.FileTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
