package parser

import (
	"testing"

	"transformat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSkipsBlankLinesAndCountsRows(t *testing.T) {
	content := "a||1||2025-12-06\n\nb||2||2025-12-07\n   \n"
	strategy := DelimitedStrategy{Defs: delimDefs(), Delimiter: "||"}
	stream := NewStream(content, strategy)

	var rows []Record
	for {
		rec, ok, err := stream.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		rows = append(rows, rec)
	}

	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Fields[0].Value.String)
	assert.Equal(t, "b", rows[1].Fields[0].Value.String)
}

func TestStrategyForSelectsByFormatType(t *testing.T) {
	fixedStrategy, err := StrategyFor(model.FileRecord{FormatType: model.FormatFixedLength}, nil)
	require.NoError(t, err)
	_, ok := fixedStrategy.(FixedWidthStrategy)
	assert.True(t, ok)

	delimStrategy, err := StrategyFor(model.FileRecord{FormatType: model.FormatDelimited, Delimiter: "|"}, nil)
	require.NoError(t, err)
	_, ok = delimStrategy.(DelimitedStrategy)
	assert.True(t, ok)

	_, err = StrategyFor(model.FileRecord{FormatType: "unknown"}, nil)
	assert.Error(t, err)
}

func TestStreamStopsOnParseError(t *testing.T) {
	content := "a||1"
	strategy := DelimitedStrategy{Defs: delimDefs(), Delimiter: "||"}
	stream := NewStream(content, strategy)

	_, ok, err := stream.Next()
	assert.False(t, ok)
	assert.Error(t, err)
}
