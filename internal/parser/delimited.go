package parser

import (
	"strings"

	"transformat/internal/convert"
	"transformat/internal/model"
	"transformat/internal/xerrors"
)

// ParseDelimited splits line on the exact delimiter string (no escaping,
// no quoting) and converts each token per the field definitions, in
// order. The number of tokens must equal len(defs); a mismatch yields
// PARSE_DELIMITER_FAILED tagged with lineNum (spec.md §4.4).
func ParseDelimited(line, delimiter string, defs []model.FieldDefinition, lineNum int) (Record, error) {
	tokens := strings.Split(line, delimiter)
	if len(tokens) != len(defs) {
		return Record{}, xerrors.New(xerrors.CodeParseDelimiterFailed, map[string]any{
			"line":     lineNum,
			"expected": len(defs),
			"actual":   len(tokens),
		})
	}

	rec := Record{Fields: make([]Field, 0, len(defs))}
	for i, def := range defs {
		token := strings.TrimSpace(tokens[i])
		value, err := convert.Convert(token, def.FieldType, lineNum, def.FieldName)
		if err != nil {
			return Record{}, err
		}
		rec.Fields = append(rec.Fields, Field{Name: def.FieldName, Value: value})
	}
	return rec, nil
}
