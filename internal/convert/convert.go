// Package convert implements the scalar type converter of spec.md §4.3:
// parse a trimmed text token into one of {string, int, double,
// timestamp}. Empty/whitespace-only tokens become a sentinel null for
// every type.
package convert

import (
	"strconv"
	"strings"
	"time"

	"transformat/internal/model"
	"transformat/internal/xerrors"

	"github.com/shopspring/decimal"
)

// timestampLayouts are tried in order; the first that parses wins.
// double carries a shopspring/decimal.Decimal to preserve exact bank
// currency arithmetic across the text -> columnar boundary, matching
// SPEC_FULL.md's DOMAIN STACK note on §4.3.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
	"20060102150405",
}

// Value is a converted scalar. Null is true for blank tokens, matching
// spec.md's "empty or whitespace-only tokens become a sentinel null".
type Value struct {
	Type      model.FieldType
	Null      bool
	String    string
	Int       int64
	Double    decimal.Decimal
	Timestamp time.Time
}

// Convert parses token (already trimmed of its fixed-width/delimited
// extraction padding) into the given field type. line and field are
// carried only to pin conversion failures to a location in the error.
func Convert(token string, fieldType model.FieldType, line int, field string) (Value, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Value{Type: fieldType, Null: true}, nil
	}

	switch fieldType {
	case model.FieldString:
		return Value{Type: fieldType, String: trimmed}, nil

	case model.FieldInt:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return Value{}, conversionError(line, field, trimmed, "int", err)
		}
		return Value{Type: fieldType, Int: n}, nil

	case model.FieldDouble:
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return Value{}, conversionError(line, field, trimmed, "double", err)
		}
		return Value{Type: fieldType, Double: d}, nil

	case model.FieldTimestamp:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return Value{Type: fieldType, Timestamp: ts}, nil
			}
		}
		return Value{}, conversionError(line, field, trimmed, "timestamp", nil)

	default:
		return Value{Type: model.FieldString, String: trimmed}, nil
	}
}

func conversionError(line int, field, token, want string, cause error) error {
	params := map[string]any{
		"line":  line,
		"field": field,
		"token": token,
		"want":  want,
	}
	if cause != nil {
		return xerrors.Wrap(xerrors.CodeParseFixedLengthFailed, cause, params)
	}
	return xerrors.New(xerrors.CodeParseFixedLengthFailed, params)
}
