package data

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schemaDDL creates the tables the worker depends on, so package tests
// don't need an external migration runner.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS file_records (
	id SERIAL PRIMARY KEY,
	file_name TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	encoding TEXT NOT NULL,
	format_type TEXT NOT NULL,
	delimiter TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_definitions (
	id SERIAL PRIMARY KEY,
	file_name TEXT NOT NULL,
	sequence INT NOT NULL,
	field_name TEXT NOT NULL,
	field_type TEXT NOT NULL,
	start_position INT NOT NULL DEFAULT 0,
	field_length INT NOT NULL DEFAULT 0,
	transform_type TEXT NOT NULL DEFAULT 'plain'
);

CREATE TABLE IF NOT EXISTS task_sequences (
	sequence_date DATE PRIMARY KEY,
	current_value BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS file_tasks (
	task_id TEXT PRIMARY KEY,
	file_record_id INT NOT NULL REFERENCES file_records(id),
	file_name TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT '',
	previous_failed_task_id TEXT NOT NULL DEFAULT ''
);
`

// InitTestPool starts a disposable Postgres container via testcontainers,
// applies schemaDDL, and returns a connected pool plus a teardown func.
// Adapted from the teacher's InitTestConn/initDevCopyDatabase: same
// "hand the test a ready pool and a cleanup closure" shape, but backed by
// an ephemeral container instead of a shared dev database + template
// copy, so tests never depend on a long-lived dev Postgres instance.
func InitTestPool(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("transformat_test"),
		tcpostgres.WithUsername("transformat"),
		tcpostgres.WithPassword("transformat"),
		tcpostgres.BasicWaitStrategies(),
		tcpostgres.WithWaitStrategyAndDeadline(60*time.Second, wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("resolve container connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("parse test pool config: %v", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("connect to test container: %v", err)
	}

	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		t.Fatalf("apply test schema: %v", err)
	}

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	}
	return pool, cleanup
}
