package parser

import (
	"testing"

	"transformat/internal/model"
	"transformat/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defs(widths ...int) []model.FieldDefinition {
	out := make([]model.FieldDefinition, len(widths))
	pos := 0
	for i, w := range widths {
		out[i] = model.FieldDefinition{
			Sequence:      i + 1,
			FieldName:     "f" + string(rune('a'+i)),
			FieldType:     model.FieldString,
			StartPosition: pos,
			FieldLength:   w,
		}
		pos += w
	}
	return out
}

func TestParseFixedWidthASCII(t *testing.T) {
	rec, err := ParseFixedWidth("abcdefg", defs(3, 4), 1)
	require.NoError(t, err)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, "abc", rec.Fields[0].Value.String)
	assert.Equal(t, "defg", rec.Fields[1].Value.String)
}

func TestParseFixedWidthDisplayWidthAware(t *testing.T) {
	// "abc中文ef" with widths {3, 4, 2}: 中/文 are East-Asian wide (2
	// columns each), so the middle field captures exactly those two
	// runes and the trailing "ef" is plain ASCII.
	rec, err := ParseFixedWidth("abc中文ef", defs(3, 4, 2), 1)
	require.NoError(t, err)
	require.Len(t, rec.Fields, 3)
	assert.Equal(t, "abc", rec.Fields[0].Value.String)
	assert.Equal(t, "中文", rec.Fields[1].Value.String)
	assert.Equal(t, "ef", rec.Fields[2].Value.String)
}

func TestParseFixedWidthTooShortErrors(t *testing.T) {
	_, err := ParseFixedWidth("ab", defs(3, 4), 5)
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeParseFixedLengthFailed, code)
}
