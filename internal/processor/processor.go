// Package processor implements the single-task file transformation
// pipeline of spec.md §4.13: fetch, claim, transfer, decode, parse,
// write columnar output, submit a best-effort masking request, and
// mark the terminal status. Grounded on the teacher's
// internal/services/marketdata/ohlcv_pipeline.go per-item pipeline
// shape (fetch -> transform -> write -> cleanup, single function per
// stage, errors bubbling unwrapped to the caller).
package processor

import (
	"context"
	"path/filepath"
	"strings"

	"transformat/internal/columnar"
	"transformat/internal/config"
	"transformat/internal/downstream"
	"transformat/internal/encoding"
	"transformat/internal/metrics"
	"transformat/internal/model"
	"transformat/internal/parser"
	"transformat/internal/repo"
	"transformat/internal/transfer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// remoteFetcher retrieves one task's source file. The production
// implementation opens a session-scoped SFTP connection per spec.md
// §4.6; tests substitute a fake so the rest of the pipeline (decode,
// parse, write, mark terminal status) can run without a live SFTP
// server.
type remoteFetcher interface {
	Fetch(ctx context.Context, fileName string) ([]byte, error)
}

type sftpFetcher struct {
	cfg config.Config
	log *zap.Logger
}

func (f sftpFetcher) Fetch(ctx context.Context, fileName string) ([]byte, error) {
	session, err := transfer.Open(ctx, transfer.Config{
		Host:     f.cfg.SFTPHost,
		Port:     f.cfg.SFTPPort,
		User:     f.cfg.SFTPUser,
		Password: f.cfg.SFTPPassword,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()
	f.log.Debug("sftp session opened", zap.String("sftp_session_id", session.ID), zap.String("file_name", fileName))

	remotePath := filepath.Join(f.cfg.InputDir, fileName)
	return session.ReadFile(remotePath)
}

// Processor runs one task's pipeline end to end.
type Processor struct {
	cfg        config.Config
	tasks      *repo.TaskRepo
	fileRecs   *repo.FileRecordRepo
	downstream *downstream.Client
	fetcher    remoteFetcher
	log        *zap.Logger
}

func New(cfg config.Config, tasks *repo.TaskRepo, fileRecs *repo.FileRecordRepo, ds *downstream.Client, log *zap.Logger) *Processor {
	return &Processor{cfg: cfg, tasks: tasks, fileRecs: fileRecs, downstream: ds, fetcher: sftpFetcher{cfg: cfg, log: log}, log: log}
}

// Run executes the pipeline of spec.md §4.13 for taskID. On any raised
// error it marks the task failed with the rendered message before
// returning the error to the caller (the orchestrator decides whether
// the error's category aborts the batch).
func (p *Processor) Run(ctx context.Context, taskID string) (err error) {
	log := p.log.With(zap.String("task_id", taskID), zap.String("run_id", uuid.NewString()))

	task, err := p.tasks.FetchByID(ctx, taskID)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if markErr := p.tasks.MarkFailed(ctx, taskID, err.Error()); markErr != nil {
				log.Error("failed to record task failure", zap.Error(markErr))
			}
		}
	}()

	if err = p.tasks.MarkProcessing(ctx, taskID); err != nil {
		return err
	}

	rec, fetchErr := p.fileRecs.FetchByName(ctx, task.FileName)
	if fetchErr != nil {
		err = fetchErr
		return err
	}
	if vErr := rec.Validate(); vErr != nil {
		err = vErr
		return err
	}

	raw, transferErr := p.fetcher.Fetch(ctx, task.FileName)
	if transferErr != nil {
		err = transferErr
		return err
	}

	content, decodeErr := p.decode(raw, rec, taskID)
	if decodeErr != nil {
		err = decodeErr
		return err
	}

	defs, defsErr := p.fileRecs.FieldDefinitions(ctx, task.FileName)
	if defsErr != nil {
		err = defsErr
		return err
	}

	strategy, stratErr := parser.StrategyFor(rec, defs)
	if stratErr != nil {
		err = stratErr
		return err
	}
	stream := parser.NewStream(content, strategy)

	outPath := filepath.Join(p.cfg.OutputDir, baseName(task.FileName)+".parquet")
	var rows int64
	if !p.cfg.DryRun {
		writer := columnar.New(outPath, defs, p.cfg.StreamBatchSize)
		rows, err = writer.WriteAll(stream)
		if err != nil {
			return err
		}
	} else {
		log.Info("dry run: columnar write and masking submission skipped", zap.String("output_path", outPath))
	}
	metrics.RecordRecordsWritten(task.FileName, rows)

	p.submitMasking(ctx, taskID, task.FileName, outPath, defs, log)

	if err = p.tasks.MarkCompleted(ctx, taskID); err != nil {
		return err
	}
	return nil
}

// decode detects the buffer's actual encoding and warns (does not fail)
// if it differs from the file record's declared encoding, then decodes
// using the declared encoding per spec.md §4.13 step 4.
func (p *Processor) decode(raw []byte, rec model.FileRecord, taskID string) (string, error) {
	detected, err := encoding.Detect(raw, taskID)
	if err != nil {
		return "", err
	}
	if detected != rec.Encoding {
		p.log.Warn("detected encoding differs from declared encoding",
			zap.String("task_id", taskID),
			zap.String("declared", string(rec.Encoding)),
			zap.String("detected", string(detected)))
	}
	if err := encoding.Verify(raw, rec.Encoding, taskID); err != nil {
		return "", err
	}
	return encoding.Decode(raw, rec.Encoding)
}

// submitMasking is best-effort: failures are logged, never surfaced as
// a task failure (spec.md §4.13 step 7).
func (p *Processor) submitMasking(ctx context.Context, taskID, fileName, outPath string, defs []model.FieldDefinition, log *zap.Logger) {
	if p.downstream == nil || p.cfg.DryRun {
		return
	}

	fields := make([]downstream.FieldConfig, 0, len(defs))
	for _, d := range defs {
		fields = append(fields, downstream.FieldConfig{FieldName: d.FieldName, TransformType: d.TransformType})
	}

	maskedPath := filepath.Join(p.cfg.MaskedDir, baseName(fileName)+"_masked.parquet")
	req := downstream.SubmitRequest{
		TaskID:         taskID,
		InputFilePath:  outPath,
		OutputFilePath: maskedPath,
		FieldConfigs:   fields,
	}

	if err := p.downstream.Submit(ctx, req); err != nil {
		metrics.RecordDownstreamSubmission("error")
		log.Warn("downstream masking submission failed", zap.Error(err))
		return
	}
	metrics.RecordDownstreamSubmission("ok")
}

func baseName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
