package repo

import (
	"context"
	"time"

	"transformat/internal/model"
)

// Ingest composes SequenceRepo, FileRecordRepo and TaskRepo to onboard
// one file for processing: upsert its FileRecord, allocate the next
// task_id for today, and create the pending FileTask. This is the
// create-task path the original Python entry point calls out to
// separately (task_sequence_repo.generate_task_id followed by
// file_task_repo.create_task) before the batch loop ever sees the row.
type Ingest struct {
	seq      *SequenceRepo
	fileRecs *FileRecordRepo
	tasks    *TaskRepo
}

func NewIngest(seq *SequenceRepo, fileRecs *FileRecordRepo, tasks *TaskRepo) *Ingest {
	return &Ingest{seq: seq, fileRecs: fileRecs, tasks: tasks}
}

// Enqueue upserts rec and creates a fresh pending task for it.
func (ig *Ingest) Enqueue(ctx context.Context, rec model.FileRecord) (model.FileTask, error) {
	stored, err := ig.fileRecs.Upsert(ctx, rec)
	if err != nil {
		return model.FileTask{}, err
	}

	taskID, err := ig.seq.NextTaskID(ctx, time.Now())
	if err != nil {
		return model.FileTask{}, err
	}

	task := model.FileTask{
		TaskID:       taskID,
		FileRecordID: stored.ID,
		FileName:     stored.FileName,
		Status:       model.StatusPending,
	}
	if err := ig.tasks.Create(ctx, task); err != nil {
		return model.FileTask{}, err
	}
	return task, nil
}

// Requeue creates a fresh pending task for failed's file record, linking
// it to failed via previous_failed_task_id — the retry-linkage
// supplement named in SPEC_FULL.md §12.
func (ig *Ingest) Requeue(ctx context.Context, failed model.FileTask) (model.FileTask, error) {
	taskID, err := ig.seq.NextTaskID(ctx, time.Now())
	if err != nil {
		return model.FileTask{}, err
	}
	if err := ig.tasks.Retry(ctx, failed, taskID); err != nil {
		return model.FileTask{}, err
	}
	return model.FileTask{
		TaskID:               taskID,
		FileRecordID:         failed.FileRecordID,
		FileName:             failed.FileName,
		Status:               model.StatusPending,
		PreviousFailedTaskID: failed.TaskID,
	}, nil
}
