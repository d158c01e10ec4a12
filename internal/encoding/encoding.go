// Package encoding implements the trial-decode encoding detector of
// spec.md §4.2: try a fixed list of candidate codecs against a byte
// buffer and return the first that decodes it cleanly. There is no
// statistical heuristic — detection is purely "does this codec accept
// every byte".
//
// The catalogue only ever tries utf-8 and big5. spec.md's source also
// listed gbk as a detection candidate, but FileRecord.Validate only
// ever accepts utf-8/big5 (spec.md §3) — a detector outcome the
// persistence layer can never accept is dead code, so gbk is dropped
// here rather than carried as an unreachable branch (see DESIGN.md,
// Open-question decisions).
package encoding

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"transformat/internal/model"
	"transformat/internal/xerrors"

	"golang.org/x/text/encoding/traditionalchinese"
)

// candidate pairs a model.Encoding label with the x/text codec used to
// validate and decode it.
type candidate struct {
	name  model.Encoding
	codec decoder
}

type decoder interface {
	Bytes(b []byte) ([]byte, error)
}

var candidates = []candidate{
	{model.EncodingUTF8, utf8Decoder{}},
	{model.EncodingBig5, strictDecoder{traditionalchinese.Big5.NewDecoder()}},
}

var errInvalidBytes = errors.New("input is not valid in this encoding")

// utf8Decoder accepts only well-formed UTF-8, so invalid byte sequences
// are rejected rather than replaced.
type utf8Decoder struct{}

func (utf8Decoder) Bytes(b []byte) ([]byte, error) {
	if !utf8.Valid(b) {
		return nil, errInvalidBytes
	}
	return b, nil
}

// strictDecoder rejects input that the wrapped x/text decoder decodes
// with U+FFFD replacement characters (x/text replaces invalid or
// unmapped sequences instead of returning an error).
type strictDecoder struct{ dec decoder }

func (s strictDecoder) Bytes(b []byte) ([]byte, error) {
	out, err := s.dec.Bytes(b)
	if err != nil {
		return nil, err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return nil, errInvalidBytes
	}
	return out, nil
}

// Detect tries candidates in order utf-8 -> big5 and returns the first
// that decodes buf without error. taskID is carried only for the error
// message / structured log fields.
func Detect(buf []byte, taskID string) (model.Encoding, error) {
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, err := c.codec.Bytes(buf); err == nil {
			return c.name, nil
		}
		tried = append(tried, string(c.name))
	}
	return "", xerrors.New(xerrors.CodeEncodingDetectionFailed, map[string]any{
		"task_id":    taskID,
		"candidates": tried,
	})
}

// Verify fails with ENCODING_MIXED if buf cannot be decoded cleanly by
// the expected encoding. It is the second half of step 4 of the file
// processor (spec.md §4.13): detect first (informational), then verify
// against the file record's declared encoding before decoding for real.
func Verify(buf []byte, expected model.Encoding, taskID string) error {
	for _, c := range candidates {
		if c.name != expected {
			continue
		}
		if _, err := c.codec.Bytes(buf); err != nil {
			return xerrors.New(xerrors.CodeEncodingMixed, map[string]any{
				"encoding": string(expected),
				"task_id":  taskID,
			})
		}
		return nil
	}
	return xerrors.New(xerrors.CodeEncodingMixed, map[string]any{
		"encoding": string(expected),
		"task_id":  taskID,
	})
}

// Decode converts buf from enc to a UTF-8 Go string using the same
// codec table as Detect/Verify.
func Decode(buf []byte, enc model.Encoding) (string, error) {
	for _, c := range candidates {
		if c.name != enc {
			continue
		}
		out, err := c.codec.Bytes(buf)
		if err != nil {
			return "", xerrors.New(xerrors.CodeEncodingMixed, map[string]any{
				"encoding": string(enc),
			})
		}
		return string(out), nil
	}
	return "", xerrors.New(xerrors.CodeEncodingMixed, map[string]any{
		"encoding": string(enc),
	})
}
