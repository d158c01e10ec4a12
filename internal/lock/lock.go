// Package lock implements the distributed per-file advisory lock of
// spec.md §4.11: a session-scoped pg_advisory_lock pinned to one
// dedicated pool connection, so the lock dies with its connection.
// Grounded on the teacher's bulkLoadPool pattern in
// internal/services/marketdata/ohlcv_pipeline.go (pinning a connection
// out of the shared pgxpool.Pool for a session-scoped operation).
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transformat/internal/xerrors"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// Lock holds the dedicated connection an advisory lock is bound to.
// Releasing it returns the connection to the pool.
type Lock struct {
	conn      *pgxpool.Conn
	fileRecID int64
	log       *zap.Logger
}

// Manager acquires and releases per-file advisory locks against pool.
type Manager struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewManager(pool *pgxpool.Pool, log *zap.Logger) *Manager {
	return &Manager{pool: pool, log: log}
}

// Acquire pins a connection and requests a session-scoped advisory lock
// keyed by fileRecordID. timeout == 0 is non-blocking: a contended lock
// returns (nil, false, nil) — contention is a skip signal, not an error.
// timeout > 0 blocks up to that duration by setting the session's
// lock_timeout before calling the blocking pg_advisory_lock variant.
func (m *Manager) Acquire(ctx context.Context, fileRecordID int64, timeout time.Duration) (*Lock, bool, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, false, xerrors.Wrap(xerrors.CodeAdvisoryLockFailed, err, map[string]any{
			"file_record_id": fileRecordID,
		})
	}

	if timeout <= 0 {
		var acquired bool
		err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, fileRecordID).Scan(&acquired)
		if err != nil {
			conn.Release()
			return nil, false, xerrors.Wrap(xerrors.CodeAdvisoryLockFailed, err, map[string]any{
				"file_record_id": fileRecordID,
			})
		}
		if !acquired {
			conn.Release()
			return nil, false, nil
		}
		return &Lock{conn: conn, fileRecID: fileRecordID, log: m.log}, true, nil
	}

	lockTimeoutMS := int(timeout / time.Millisecond)
	if _, err := conn.Exec(ctx, fmt.Sprintf(`SET lock_timeout = '%dms'`, lockTimeoutMS)); err != nil {
		conn.Release()
		return nil, false, xerrors.Wrap(xerrors.CodeAdvisoryLockFailed, err, map[string]any{
			"file_record_id": fileRecordID,
		})
	}
	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, fileRecordID)
	if err != nil {
		conn.Release()
		if isLockTimeout(err) {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap(xerrors.CodeAdvisoryLockFailed, err, map[string]any{
			"file_record_id": fileRecordID,
		})
	}
	return &Lock{conn: conn, fileRecID: fileRecordID, log: m.log}, true, nil
}

// Release unlocks and returns the connection to the pool. Calling
// Release on a nil Lock is a no-op; calling it again after the lock was
// released is a no-op logged as a warning — idempotent per spec.md §4.11.
func (l *Lock) Release(ctx context.Context) {
	if l == nil {
		return
	}
	if l.conn == nil {
		l.log.Warn("advisory lock release called with no lock held", zap.Int64("file_record_id", l.fileRecID))
		return
	}
	if _, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.fileRecID); err != nil {
		l.log.Warn("advisory unlock failed", zap.Int64("file_record_id", l.fileRecID), zap.Error(err))
	}
	l.conn.Release()
	l.conn = nil
}

func isLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "lock timeout") || strings.Contains(s, "57014")
}
