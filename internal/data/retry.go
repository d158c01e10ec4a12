package data

import (
	"context"
	"strings"
	"time"

	"transformat/internal/xerrors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// isConnectionError reports whether err looks like a transient Postgres
// connectivity failure (connection-exception SQLSTATE classes, or a
// handful of common network error strings), as opposed to a permanent
// data/schema error that retrying cannot fix.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if pgErr, ok := err.(*pgconn.PgError); ok {
		sqlState := pgErr.Code
		return strings.HasPrefix(sqlState, "08") ||
			sqlState == "57P01" ||
			sqlState == "57P02" ||
			sqlState == "57P03"
	}

	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{
		"connection refused", "connection reset", "connection closed",
		"unexpected eof", "broken pipe", "no such host",
		"network is unreachable", "timeout", "connection lost",
		"server closed the connection",
	} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// ExecWithRetry executes a SQL statement with exponential-backoff retry.
// Errors that isConnectionError classifies as transient get up to 10
// attempts, all other errors up to 5; an undefined-column error
// (SQLSTATE 42703) is returned immediately and unwrapped. Once retries
// are exhausted the last error is wrapped as DB_CONNECTION_FAILED.
func ExecWithRetry(ctx context.Context, log *zap.Logger, db *pgxpool.Pool, query string, args ...interface{}) (pgconn.CommandTag, error) {
	const maxAttempts = 5
	const maxConnectionAttempts = 10
	backoffDelay := 500 * time.Millisecond

	var tag pgconn.CommandTag
	var err error

	for attempt := 1; attempt <= maxConnectionAttempts; attempt++ {
		tag, err = db.Exec(ctx, query, args...)
		if err == nil {
			return tag, nil
		}

		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "42703" {
			return tag, err
		}

		if ctx.Err() != nil {
			return tag, xerrors.Wrap(xerrors.CodeDBConnectionFailed, ctx.Err(), nil)
		}

		isConnErr := isConnectionError(err)
		limit := maxAttempts
		if isConnErr {
			limit = maxConnectionAttempts
		}
		if attempt >= limit {
			break
		}

		log.Warn("db exec failed, retrying", zap.Int("attempt", attempt), zap.Int("limit", limit), zap.Error(err))

		currentBackoff := backoffDelay
		if isConnErr && attempt > maxAttempts {
			currentBackoff = backoffDelay * 3
		}
		time.Sleep(currentBackoff)
		backoffDelay *= 2
		if backoffDelay > 30*time.Second {
			backoffDelay = 30 * time.Second
		}
	}
	return tag, xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
}

// QueryRowWithRetry runs a single-row query-and-scan with the same
// connection-error classification as ExecWithRetry, but only retries
// when isConnectionError holds — a logic/not-found error (e.g.
// pgx.ErrNoRows) is never transient, so it returns on the first
// attempt rather than wasting several backoff cycles on a row that
// will never appear. scan receives the query's Row and does its own
// field scanning (and may legitimately return pgx.ErrNoRows).
func QueryRowWithRetry(ctx context.Context, log *zap.Logger, db *pgxpool.Pool, scan func(pgx.Row) error, query string, args ...interface{}) error {
	const maxConnectionAttempts = 10
	backoffDelay := 500 * time.Millisecond

	var err error
	for attempt := 1; attempt <= maxConnectionAttempts; attempt++ {
		err = scan(db.QueryRow(ctx, query, args...))
		if err == nil || !isConnectionError(err) {
			return err
		}
		if ctx.Err() != nil {
			return xerrors.Wrap(xerrors.CodeDBConnectionFailed, ctx.Err(), nil)
		}
		if attempt >= maxConnectionAttempts {
			break
		}
		log.Warn("db query failed, retrying", zap.Int("attempt", attempt), zap.Int("limit", maxConnectionAttempts), zap.Error(err))
		time.Sleep(backoffDelay)
		backoffDelay *= 2
		if backoffDelay > 30*time.Second {
			backoffDelay = 30 * time.Second
		}
	}
	return xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
}

// QueryWithRetry runs a multi-row query with the same connection-error
// classification as QueryRowWithRetry. scan receives the query's Rows
// and only iterates them; QueryWithRetry closes the Rows itself once
// scan returns, so callers pass a closure that reads every row before
// returning.
func QueryWithRetry(ctx context.Context, log *zap.Logger, db *pgxpool.Pool, scan func(pgx.Rows) error, query string, args ...interface{}) error {
	const maxConnectionAttempts = 10
	backoffDelay := 500 * time.Millisecond

	var err error
	for attempt := 1; attempt <= maxConnectionAttempts; attempt++ {
		var rows pgx.Rows
		rows, err = db.Query(ctx, query, args...)
		if err == nil {
			err = scan(rows)
			rows.Close()
		}
		if err == nil || !isConnectionError(err) {
			return err
		}
		if ctx.Err() != nil {
			return xerrors.Wrap(xerrors.CodeDBConnectionFailed, ctx.Err(), nil)
		}
		if attempt >= maxConnectionAttempts {
			break
		}
		log.Warn("db query failed, retrying", zap.Int("attempt", attempt), zap.Int("limit", maxConnectionAttempts), zap.Error(err))
		time.Sleep(backoffDelay)
		backoffDelay *= 2
		if backoffDelay > 30*time.Second {
			backoffDelay = 30 * time.Second
		}
	}
	return xerrors.Wrap(xerrors.CodeDBConnectionFailed, err, nil)
}
