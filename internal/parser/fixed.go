package parser

import (
	"transformat/internal/convert"
	"transformat/internal/model"
	"transformat/internal/xerrors"
)

// ParseFixedWidth extracts one record from line using display-column
// positions (spec.md §4.4): widths are measured in display columns, not
// bytes or code points, so East-Asian wide glyphs consume two columns.
// Extraction walks the line rune-by-rune, accumulating width per field;
// a field captures runes while doing so keeps its accumulated width
// within FieldLength, and any unused width budget at a field's end is
// simply skipped rather than donated to the next field or splitting a
// rune.
func ParseFixedWidth(line string, defs []model.FieldDefinition, lineNum int) (Record, error) {
	runes := []rune(line)
	idx := 0
	rec := Record{Fields: make([]Field, 0, len(defs))}

	for _, def := range defs {
		remaining := runeSliceWidth(runes[idx:])
		if remaining < def.FieldLength {
			return Record{}, xerrors.New(xerrors.CodeParseFixedLengthFailed, map[string]any{
				"line":  lineNum,
				"field": def.FieldName,
				"cause": "remaining line content shorter than required display span",
			})
		}

		var captured []rune
		w := 0
		for idx < len(runes) {
			rw := displayWidth(runes[idx])
			if w+rw > def.FieldLength {
				break
			}
			captured = append(captured, runes[idx])
			w += rw
			idx++
		}

		token := string(captured)
		value, err := convert.Convert(token, def.FieldType, lineNum, def.FieldName)
		if err != nil {
			return Record{}, err
		}
		rec.Fields = append(rec.Fields, Field{Name: def.FieldName, Value: value})
	}

	return rec, nil
}

func runeSliceWidth(runes []rune) int {
	total := 0
	for _, r := range runes {
		total += displayWidth(r)
	}
	return total
}
