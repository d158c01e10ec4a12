package transfer

import (
	"context"
	"testing"
	"time"

	"transformat/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNetworkFailureMapsToSFTPNetworkError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Open(ctx, Config{
		Host:     "127.0.0.1",
		Port:     "1", // nothing listens on port 1
		User:     "u",
		Password: "p",
		Timeout:  time.Second,
	})
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeSFTPNetworkError, code)
}
