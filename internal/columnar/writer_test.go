package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"transformat/internal/model"
	"transformat/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefs() []model.FieldDefinition {
	return []model.FieldDefinition{
		{Sequence: 1, FieldName: "name", FieldType: model.FieldString},
		{Sequence: 2, FieldName: "amount", FieldType: model.FieldInt},
	}
}

func TestWriteAllWritesAllRowsAndOpensLazily(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.parquet")

	content := "a|1\nb|2\n"
	strategy := parser.DelimitedStrategy{Defs: testDefs(), Delimiter: "|"}
	stream := parser.NewStream(content, strategy)

	w := New(path, testDefs(), 1)
	rows, err := w.WriteAll(stream)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteAllZeroRecordsNeverOpensFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.parquet")

	stream := parser.NewStream("", parser.DelimitedStrategy{Defs: testDefs(), Delimiter: "|"})

	w := New(path, testDefs(), 30000)
	rows, err := w.WriteAll(stream)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteAllFlushesTrailingPartialBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.parquet")

	content := "a|1\nb|2\n"
	stream := parser.NewStream(content, parser.DelimitedStrategy{Defs: testDefs(), Delimiter: "|"})

	w := New(path, testDefs(), 30000) // batch size larger than input -> only the trailing flush runs
	rows, err := w.WriteAll(stream)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
