package lock

import (
	"context"
	"testing"
	"time"

	"transformat/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcquireNonBlockingSkipsOnContention(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	mgr := NewManager(pool, zap.NewNop())
	const fileRecID = int64(777)

	first, ok, err := mgr.Acquire(context.Background(), fileRecID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	defer first.Release(context.Background())

	second, ok, err := mgr.Acquire(context.Background(), fileRecID, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, second)
}

func TestReleaseAllowsReacquisition(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	mgr := NewManager(pool, zap.NewNop())
	const fileRecID = int64(888)

	first, ok, err := mgr.Acquire(context.Background(), fileRecID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	first.Release(context.Background())

	second, ok, err := mgr.Acquire(context.Background(), fileRecID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	second.Release(context.Background())
}

func TestReleaseIsIdempotent(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	mgr := NewManager(pool, zap.NewNop())
	l, ok, err := mgr.Acquire(context.Background(), 999, 0)
	require.NoError(t, err)
	require.True(t, ok)

	l.Release(context.Background())
	assert.NotPanics(t, func() { l.Release(context.Background()) })
}

func TestAcquireBlockingWithTimeoutReturnsSkipOnContention(t *testing.T) {
	pool, cleanup := data.InitTestPool(t)
	defer cleanup()

	mgr := NewManager(pool, zap.NewNop())
	const fileRecID = int64(1010)

	holder, ok, err := mgr.Acquire(context.Background(), fileRecID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Release(context.Background())

	start := time.Now()
	second, ok, err := mgr.Acquire(context.Background(), fileRecID, 200*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, second)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
}
