// Package repo implements the task-queue persistence of spec.md §4.8-
// §4.10: atomic per-day task-id allocation, the file-task lifecycle, and
// file-record/field-definition lookups. Grounded on the teacher's
// internal/services/marketdata query style (explicit SQL, pgx row
// scanning, no ORM) adapted to this worker's pgx/v4 pool.
package repo

import (
	"context"
	"fmt"
	"time"

	"transformat/internal/xerrors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SequenceRepo allocates daily task-id serials.
type SequenceRepo struct {
	pool *pgxpool.Pool
}

func NewSequenceRepo(pool *pgxpool.Pool) *SequenceRepo {
	return &SequenceRepo{pool: pool}
}

// NextTaskID atomically allocates and formats the next task_id for the
// given date: transformat_YYYYMMDD followed by a zero-padded 4-digit
// serial (no wraparound guard — values may exceed 9999; padding is
// cosmetic only). Its statements run inside this method's own
// transaction rather than through data.ExecWithRetry: retrying one
// statement of an open FOR UPDATE transaction without restarting the
// transaction would re-run only part of it.
func (r *SequenceRepo) NextTaskID(ctx context.Context, date time.Time) (string, error) {
	day := date.UTC().Truncate(24 * time.Hour)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT current_value FROM task_sequences WHERE sequence_date = $1 FOR UPDATE`,
		day,
	).Scan(&current)

	switch {
	case err == pgx.ErrNoRows:
		current = 1
		if _, err := tx.Exec(ctx,
			`INSERT INTO task_sequences (sequence_date, current_value) VALUES ($1, $2)`,
			day, current,
		); err != nil {
			return "", xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
		}
	case err != nil:
		return "", xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
	default:
		current++
		if _, err := tx.Exec(ctx,
			`UPDATE task_sequences SET current_value = $1 WHERE sequence_date = $2`,
			current, day,
		); err != nil {
			return "", xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
	}

	return fmt.Sprintf("transformat_%s%04d", day.Format("20060102"), current), nil
}
