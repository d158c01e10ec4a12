// Package xerrors implements the closed error catalogue described in
// spec.md §4.1 / §7: every failure the core raises names a Code from a
// fixed enumeration, tagged with a Category (system vs. processing) and
// a retryable flag. Error values carry their substitution parameters
// structurally (Params) so logs and tests can inspect them independently
// of the rendered message — see SPEC_FULL.md's DESIGN NOTES on
// structured error values replacing dynamic string formatting.
package xerrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Category distinguishes infrastructure faults (System) from per-file
// data defects (Processing). The orchestrator uses this to decide
// whether a failure aborts the whole batch or just the offending task.
type Category string

const (
	System     Category = "system"
	Processing Category = "processing"
)

// Code is a stable identifier for one entry in the catalogue. Names
// become string labels in logs and tests.
type Code string

const (
	// System errors — abort the current batch.
	CodeSFTPAuthFailed           Code = "SFTP_AUTH_FAILED"
	CodeSFTPNetworkError         Code = "SFTP_NETWORK_ERROR"
	CodeDBConnectionFailed       Code = "DB_CONNECTION_FAILED"
	CodeDBPoolExhausted          Code = "DB_POOL_EXHAUSTED"
	CodeAdvisoryLockFailed       Code = "ADVISORY_LOCK_FAILED"
	CodeDownstreamConnectionFail Code = "DOWNSTREAM_CONNECTION_FAILED"

	// Processing errors — fail only the offending task.
	CodeFileNotFound            Code = "FILE_NOT_FOUND"
	CodeFileReadFailed          Code = "FILE_READ_FAILED"
	CodeEncodingDetectionFailed Code = "ENCODING_DETECTION_FAILED"
	CodeEncodingMixed           Code = "ENCODING_MIXED"
	CodeParseFixedLengthFailed  Code = "PARSE_FIXED_LENGTH_FAILED"
	CodeParseDelimiterFailed    Code = "PARSE_DELIMITER_FAILED"
	CodeParquetWriteFailed      Code = "PARQUET_WRITE_FAILED"
	CodeDiskSpaceInsufficient   Code = "PARQUET_DISK_SPACE_INSUFFICIENT"
	CodeDownstreamAPIError      Code = "DOWNSTREAM_API_ERROR"
	CodeTaskStateInconsistent   Code = "TASK_STATE_INCONSISTENT"
	CodeFieldDefinitionInvalid  Code = "FIELD_DEFINITION_INVALID"
)

// entry is the catalogue row for one Code: its category, retryability,
// and a message template using {name} placeholders filled from Params.
type entry struct {
	category   Category
	retryable  bool
	template   string
}

var catalogue = map[Code]entry{
	CodeSFTPAuthFailed:           {System, true, "sftp authentication failed for {host}: {cause}"},
	CodeSFTPNetworkError:         {System, true, "sftp network error connecting to {host}: {cause}"},
	CodeDBConnectionFailed:       {System, true, "database connection failed: {cause}"},
	CodeDBPoolExhausted:         {System, true, "database connection pool exhausted: {cause}"},
	CodeAdvisoryLockFailed:       {System, true, "advisory lock acquisition failed for file_record_id={file_record_id}: {cause}"},
	CodeDownstreamConnectionFail: {System, true, "downstream connection failed after {attempts} attempts: {cause}"},

	CodeFileNotFound:            {Processing, false, "file not found: {path}"},
	CodeFileReadFailed:          {Processing, true, "failed to read file {path}: {cause}"},
	CodeEncodingDetectionFailed: {Processing, false, "could not detect encoding for task {task_id}: tried {candidates}"},
	CodeEncodingMixed:           {Processing, false, "file does not decode cleanly as declared encoding {encoding} for task {task_id}"},
	CodeParseFixedLengthFailed:  {Processing, false, "fixed-width parse failed at line {line}: {cause}"},
	CodeParseDelimiterFailed:    {Processing, false, "delimiter parse failed at line {line}: expected {expected} fields, got {actual}"},
	CodeParquetWriteFailed:      {Processing, true, "columnar write failed: {cause}"},
	CodeDiskSpaceInsufficient:   {Processing, false, "insufficient disk space writing {path}"},
	CodeDownstreamAPIError:      {Processing, false, "downstream API returned {status}: {body}"},
	CodeTaskStateInconsistent:   {Processing, false, "task {task_id} in unexpected state {status}"},
	CodeFieldDefinitionInvalid:  {Processing, false, "field definitions for {file_name} are invalid: {cause}"},
}

// Error is a structured, catalogue-backed failure. Params holds the
// named substitution values both for rendering and for structured
// logging (as zap.Any/zap fields at the call site).
type Error struct {
	Code   Code
	Params map[string]any
	Cause  error
}

// New builds an Error for code with the given parameters. Params may be
// nil. If a "cause" key is not supplied but Cause is wrapped separately,
// call Wrap instead.
func New(code Code, params map[string]any) *Error {
	return &Error{Code: code, Params: params}
}

// Wrap builds an Error for code, recording cause both as the Go error
// chain (via Unwrap) and as the "cause" substitution parameter.
func Wrap(code Code, cause error, params map[string]any) *Error {
	if params == nil {
		params = map[string]any{}
	}
	if cause != nil {
		params["cause"] = cause.Error()
	}
	return &Error{Code: code, Params: params, Cause: cause}
}

func (e *Error) Error() string {
	ent, ok := catalogue[e.Code]
	if !ok {
		return string(e.Code)
	}
	return render(ent.template, e.Params)
}

func (e *Error) Unwrap() error { return e.Cause }

// Category returns the error's category, or "" if the code is unknown.
func (e *Error) Category() Category {
	return catalogue[e.Code].category
}

// Retryable reports whether the catalogue marks this code retryable.
func (e *Error) Retryable() bool {
	return catalogue[e.Code].retryable
}

// IsSystem reports whether err is (or wraps) an *Error in the System category.
func IsSystem(err error) bool {
	var xe *Error
	return errors.As(err, &xe) && xe.Category() == System
}

// IsProcessing reports whether err is (or wraps) an *Error in the Processing category.
func IsProcessing(err error) bool {
	var xe *Error
	return errors.As(err, &xe) && xe.Category() == Processing
}

// CodeOf extracts the Code from err, if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Code, true
	}
	return "", false
}

func render(template string, params map[string]any) string {
	if len(params) == 0 {
		return template
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := template
	for _, k := range keys {
		placeholder := "{" + k + "}"
		out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%v", params[k]))
	}
	return out
}
