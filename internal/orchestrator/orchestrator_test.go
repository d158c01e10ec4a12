package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"transformat/internal/data"
	"transformat/internal/lock"
	"transformat/internal/model"
	"transformat/internal/repo"
	"transformat/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	mu       sync.Mutex
	byTaskID map[string]error
	calls    []string
}

func (f *fakeProcessor) Run(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, taskID)
	return f.byTaskID[taskID]
}

func seedPendingTask(t *testing.T, fileRecs *repo.FileRecordRepo, tasks *repo.TaskRepo, fileName, taskID string) model.FileTask {
	t.Helper()
	rec, err := fileRecs.Upsert(context.Background(), model.FileRecord{
		FileName: fileName, Encoding: model.EncodingUTF8,
		FormatType: model.FormatDelimited, Delimiter: "|",
	})
	require.NoError(t, err)
	task := model.FileTask{TaskID: taskID, FileRecordID: rec.ID, FileName: fileName}
	require.NoError(t, tasks.Create(context.Background(), task))
	return task
}

func TestRunCompletesAllPendingTasks(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	fileRecs := repo.NewFileRecordRepo(pool, zap.NewNop())
	tasks := repo.NewTaskRepo(pool, zap.NewNop())
	locks := lock.NewManager(pool, zap.NewNop())

	seedPendingTask(t, fileRecs, tasks, "a.txt", "transformat_202512060001")
	seedPendingTask(t, fileRecs, tasks, "b.txt", "transformat_202512060002")

	proc := &fakeProcessor{byTaskID: map[string]error{}}
	orch := newWithProcessor(tasks, fileRecs, locks, proc, 10, time.Hour, zap.NewNop(), pool)

	counts := orch.Run(context.Background())
	assert.Equal(t, 2, counts.Completed)
	assert.Equal(t, 0, counts.Failed)
	assert.Equal(t, 0, counts.Skipped)
	assert.False(t, counts.Aborted)
}

func TestRunSkipsContendedLockWithoutFailing(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	fileRecs := repo.NewFileRecordRepo(pool, zap.NewNop())
	tasks := repo.NewTaskRepo(pool, zap.NewNop())
	locks := lock.NewManager(pool, zap.NewNop())

	task := seedPendingTask(t, fileRecs, tasks, "contended.txt", "transformat_202512060010")

	// Hold the lock from outside the orchestrator's own acquisition.
	held, ok, err := locks.Acquire(context.Background(), task.FileRecordID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Release(context.Background())

	proc := &fakeProcessor{byTaskID: map[string]error{}}
	orch := newWithProcessor(tasks, fileRecs, locks, proc, 10, time.Hour, zap.NewNop(), pool)

	counts := orch.Run(context.Background())
	assert.Equal(t, 0, counts.Completed)
	assert.Equal(t, 1, counts.Skipped)
	assert.Empty(t, proc.calls)
}

func TestRunContinuesBatchOnProcessingError(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	fileRecs := repo.NewFileRecordRepo(pool, zap.NewNop())
	tasks := repo.NewTaskRepo(pool, zap.NewNop())
	locks := lock.NewManager(pool, zap.NewNop())

	failing := seedPendingTask(t, fileRecs, tasks, "bad.txt", "transformat_202512060020")
	ok2 := seedPendingTask(t, fileRecs, tasks, "good.txt", "transformat_202512060021")

	proc := &fakeProcessor{byTaskID: map[string]error{
		failing.TaskID: xerrors.New(xerrors.CodeParseDelimiterFailed, map[string]any{"line": 3}),
	}}
	orch := newWithProcessor(tasks, fileRecs, locks, proc, 10, time.Hour, zap.NewNop(), pool)

	counts := orch.Run(context.Background())
	assert.Equal(t, 1, counts.Completed)
	assert.Equal(t, 1, counts.Failed)
	assert.False(t, counts.Aborted)
	assert.ElementsMatch(t, []string{failing.TaskID, ok2.TaskID}, proc.calls)
}

func TestRunAbortsBatchOnSystemError(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	fileRecs := repo.NewFileRecordRepo(pool, zap.NewNop())
	tasks := repo.NewTaskRepo(pool, zap.NewNop())
	locks := lock.NewManager(pool, zap.NewNop())

	first := seedPendingTask(t, fileRecs, tasks, "first.txt", "transformat_202512060030")
	seedPendingTask(t, fileRecs, tasks, "second.txt", "transformat_202512060031")

	proc := &fakeProcessor{byTaskID: map[string]error{
		first.TaskID: xerrors.New(xerrors.CodeDBConnectionFailed, nil),
	}}
	orch := newWithProcessor(tasks, fileRecs, locks, proc, 10, time.Hour, zap.NewNop(), pool)

	counts := orch.Run(context.Background())
	assert.True(t, counts.Aborted)
	assert.Equal(t, 1, counts.Failed)
	assert.Equal(t, 0, counts.Completed)
	// The batch stopped after the first (system-error) task; the second never ran.
	assert.Equal(t, []string{first.TaskID}, proc.calls)
}

func TestRunRecoversStaleTasksBeforeDraining(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	fileRecs := repo.NewFileRecordRepo(pool, zap.NewNop())
	tasks := repo.NewTaskRepo(pool, zap.NewNop())
	locks := lock.NewManager(pool, zap.NewNop())

	task := seedPendingTask(t, fileRecs, tasks, "stale.txt", "transformat_202512060040")
	require.NoError(t, tasks.MarkProcessing(context.Background(), task.TaskID))
	_, err := pool.Exec(context.Background(),
		`UPDATE file_tasks SET started_at = now() - interval '3 hours' WHERE task_id = $1`, task.TaskID)
	require.NoError(t, err)

	proc := &fakeProcessor{byTaskID: map[string]error{}}
	orch := newWithProcessor(tasks, fileRecs, locks, proc, 10, time.Hour, zap.NewNop(), pool)

	counts := orch.Run(context.Background())
	assert.Equal(t, 1, counts.Recovered)
	assert.Equal(t, 1, counts.Completed)
}
