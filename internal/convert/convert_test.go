package convert

import (
	"testing"
	"time"

	"transformat/internal/model"
	"transformat/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertString(t *testing.T) {
	v, err := Convert("  hello  ", model.FieldString, 1, "name")
	require.NoError(t, err)
	assert.False(t, v.Null)
	assert.Equal(t, "hello", v.String)
}

func TestConvertBlankTokenIsNull(t *testing.T) {
	for _, ft := range []model.FieldType{model.FieldString, model.FieldInt, model.FieldDouble, model.FieldTimestamp} {
		v, err := Convert("   ", ft, 1, "field")
		require.NoError(t, err)
		assert.True(t, v.Null, "field type %s should be null for blank token", ft)
	}
}

func TestConvertInt(t *testing.T) {
	v, err := Convert("00042", model.FieldInt, 1, "amount")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)
}

func TestConvertIntInvalid(t *testing.T) {
	_, err := Convert("12a3", model.FieldInt, 7, "amount")
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeParseFixedLengthFailed, code)
}

func TestConvertDoublePreservesExactDecimal(t *testing.T) {
	v, err := Convert("1234.50", model.FieldDouble, 1, "balance")
	require.NoError(t, err)
	assert.Equal(t, "1234.5", v.Double.String())
}

func TestConvertTimestampTriesAllLayouts(t *testing.T) {
	cases := map[string]string{
		"2024-01-02 15:04:05": "2024-01-02 15:04:05",
		"2024-01-02":          "2024-01-02",
		"20240102":            "20240102",
		"20240102150405":      "20240102150405",
	}
	for token, layout := range cases {
		v, err := Convert(token, model.FieldTimestamp, 1, "ts")
		require.NoError(t, err, token)
		assert.False(t, v.Timestamp.Equal(time.Time{}), layout)
	}
}

func TestConvertTimestampInvalid(t *testing.T) {
	_, err := Convert("not-a-date", model.FieldTimestamp, 3, "ts")
	require.Error(t, err)
}
