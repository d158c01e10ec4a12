// Package parser implements the two parsing strategies of spec.md §4.4
// (fixed-width, display-column aware, and delimited) behind a single
// lazy, pull-style record stream: Stream consumes one line, emits one
// record, and discards the line — it never materialises the full input
// in memory, matching SPEC_FULL.md's "lazy record iterators become
// bounded producer/consumer queues... or a simple pull-style iterator
// trait" design note.
package parser

import (
	"bufio"
	"strings"

	"transformat/internal/model"
	"transformat/internal/xerrors"
)

// Strategy parses one non-blank line into a Record.
type Strategy interface {
	Parse(line string, lineNum int) (Record, error)
}

// FixedWidthStrategy parses lines per a file's fixed-width field layout.
type FixedWidthStrategy struct {
	Defs []model.FieldDefinition
}

func (s FixedWidthStrategy) Parse(line string, lineNum int) (Record, error) {
	return ParseFixedWidth(line, s.Defs, lineNum)
}

// DelimitedStrategy parses lines split on an exact delimiter string.
type DelimitedStrategy struct {
	Defs      []model.FieldDefinition
	Delimiter string
}

func (s DelimitedStrategy) Parse(line string, lineNum int) (Record, error) {
	return ParseDelimited(line, s.Delimiter, s.Defs, lineNum)
}

// StrategyFor builds the Strategy named by rec.FormatType.
func StrategyFor(rec model.FileRecord, defs []model.FieldDefinition) (Strategy, error) {
	switch rec.FormatType {
	case model.FormatFixedLength:
		return FixedWidthStrategy{Defs: defs}, nil
	case model.FormatDelimited:
		return DelimitedStrategy{Defs: defs, Delimiter: rec.Delimiter}, nil
	default:
		return nil, xerrors.New(xerrors.CodeFieldDefinitionInvalid, map[string]any{
			"file_name": rec.FileName,
			"cause":     "unknown format_type " + string(rec.FormatType),
		})
	}
}

// Stream is a finite, non-restartable pull iterator over decoded file
// content. Blank (whitespace-only) lines are skipped silently.
type Stream struct {
	scanner  *bufio.Scanner
	strategy Strategy
	lineNum  int
}

// NewStream splits content on line breaks and parses each non-blank
// line with strategy as the caller pulls records via Next.
func NewStream(content string, strategy Strategy) *Stream {
	scanner := bufio.NewScanner(strings.NewReader(content))
	// Bank flat-file lines can exceed bufio's 64KiB default token size
	// for wide fixed-width records; give the scanner headroom.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 8*1024*1024)
	return &Stream{scanner: scanner, strategy: strategy}
}

// Next returns the next parsed record. ok is false once the stream is
// exhausted; err is non-nil if the current line failed to parse, in
// which case the stream should not be pulled further.
func (s *Stream) Next() (rec Record, ok bool, err error) {
	for s.scanner.Scan() {
		s.lineNum++
		line := s.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err = s.strategy.Parse(line, s.lineNum)
		if err != nil {
			return Record{}, false, err
		}
		return rec, true, nil
	}
	return Record{}, false, s.scanner.Err()
}
