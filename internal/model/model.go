// Package model defines the persisted shapes the transformat core
// operates on: file descriptors, field schemas, the daily task sequence
// counter, and the task rows that track one transform attempt each.
package model

import (
	"time"

	"transformat/internal/xerrors"
)

// Encoding is the declared character encoding of a FileRecord's bytes.
type Encoding string

const (
	EncodingUTF8 Encoding = "utf-8"
	EncodingBig5 Encoding = "big5"
)

// FormatType selects which parser strategy a FileRecord uses.
type FormatType string

const (
	FormatDelimited   FormatType = "delimited"
	FormatFixedLength FormatType = "fixed_length"
)

// FieldType is the typed scalar a FieldDefinition converts its column to.
type FieldType string

const (
	FieldString    FieldType = "string"
	FieldInt       FieldType = "int"
	FieldDouble    FieldType = "double"
	FieldTimestamp FieldType = "timestamp"
)

// TransformType names the downstream masking intent for a field; it is
// carried as schema metadata only, never applied by this system.
type TransformType string

const (
	TransformPlain   TransformType = "plain"
	TransformMask    TransformType = "mask"
	TransformEncrypt TransformType = "encrypt"
)

// TaskStatus is one of the four states in the FileTask lifecycle.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// FileRecord is the immutable descriptor of a known input file, keyed by
// its unique file_name. Never updated by the core once inserted.
type FileRecord struct {
	ID         int64
	FileName   string
	Source     string
	Encoding   Encoding
	FormatType FormatType
	Delimiter  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate enforces the FileRecord invariant: delimited format requires
// a non-empty delimiter, and encoding/format must be from the closed sets.
func (r FileRecord) Validate() error {
	switch r.Encoding {
	case EncodingUTF8, EncodingBig5:
	default:
		return xerrors.New(xerrors.CodeFieldDefinitionInvalid, map[string]any{
			"file_name": r.FileName,
			"cause":     "unsupported encoding " + string(r.Encoding),
		})
	}
	switch r.FormatType {
	case FormatDelimited:
		if r.Delimiter == "" {
			return xerrors.New(xerrors.CodeFieldDefinitionInvalid, map[string]any{
				"file_name": r.FileName,
				"cause":     "delimited format requires a non-empty delimiter",
			})
		}
	case FormatFixedLength:
	default:
		return xerrors.New(xerrors.CodeFieldDefinitionInvalid, map[string]any{
			"file_name": r.FileName,
			"cause":     "unsupported format_type " + string(r.FormatType),
		})
	}
	return nil
}

// FieldDefinition is one field's schema within a FileRecord, ordered by
// Sequence (1-based, dense, unique per file).
type FieldDefinition struct {
	ID             int64
	FileName       string
	Sequence       int
	FieldName      string
	FieldType      FieldType
	StartPosition  int
	FieldLength    int
	TransformType  TransformType
}

// TaskSequence is the per-calendar-date monotonically increasing counter
// backing task id allocation.
type TaskSequence struct {
	SequenceDate time.Time
	CurrentValue int64
}

// FileTask is one execution attempt of transforming a FileRecord.
type FileTask struct {
	TaskID               string
	FileRecordID         int64
	FileName             string
	Status               TaskStatus
	StartedAt            *time.Time
	CompletedAt          *time.Time
	ErrorMessage         string
	PreviousFailedTaskID string
}
