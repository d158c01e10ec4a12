// Package data owns the worker's Postgres connection pool. Adapted from
// the teacher's internal/data/conn.go: same pgxpool sizing/timeout
// approach, trimmed to Postgres only (no Redis/Polygon/Gemini/OpenAI —
// this worker has no such collaborators).
package data

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"transformat/internal/config"

	"github.com/jackc/pgx/v4/pgxpool"
)

// dbConnResult carries a connection-pool attempt's outcome across the
// goroutine boundary, matching the teacher's channel-based connect race.
type dbConnResult struct {
	pool *pgxpool.Pool
	err  error
}

// Connect builds a pgxpool.Pool sized per cfg, retrying for up to
// connectTimeout before giving up.
func Connect(ctx context.Context, cfg config.Config, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	encodedPassword := url.QueryEscape(cfg.DBPassword)
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		cfg.DBUser, encodedPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	result := make(chan dbConnResult, 1)
	go func() {
		defer close(result)
		var lastErr error
		for {
			select {
			case <-connectCtx.Done():
				result <- dbConnResult{pool: nil, err: lastErr}
				return
			default:
				poolConfig, parseErr := pgxpool.ParseConfig(dbURL)
				if parseErr != nil {
					lastErr = parseErr
					time.Sleep(time.Second)
					continue
				}
				poolConfig.MinConns = int32(cfg.DBPoolMin)
				poolConfig.MaxConns = int32(cfg.DBPoolMax)
				poolConfig.MaxConnLifetime = 60 * time.Minute
				poolConfig.MaxConnIdleTime = 5 * time.Minute
				poolConfig.HealthCheckPeriod = 30 * time.Second
				poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

				pool, err := pgxpool.ConnectConfig(connectCtx, poolConfig)
				if err != nil {
					lastErr = err
					time.Sleep(time.Second)
					continue
				}
				result <- dbConnResult{pool: pool, err: nil}
				return
			}
		}
	}()

	res := <-result
	if res.err != nil {
		return nil, fmt.Errorf("connect to database at %s:%s: %w", cfg.DBHost, cfg.DBPort, res.err)
	}
	if res.pool == nil {
		return nil, fmt.Errorf("connect to database at %s:%s: pool is nil", cfg.DBHost, cfg.DBPort)
	}
	return res.pool, nil
}
