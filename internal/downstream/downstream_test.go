package downstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"transformat/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitSucceedsOnFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.Submit(context.Background(), SubmitRequest{TaskID: "t1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSubmitRetriesThenFailsAsConnectionError(t *testing.T) {
	// An address nothing listens on forces every attempt to fail with a
	// transport error, exercising the retry path all the way to exhaustion.
	c := New("http://127.0.0.1:1", 100*time.Millisecond)
	err := c.Submit(context.Background(), SubmitRequest{TaskID: "t1"})
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeDownstreamConnectionFail, code)
}

func TestSubmitRetries5xxThenFailsAsConnectionError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.Submit(context.Background(), SubmitRequest{TaskID: "t1"})
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeDownstreamConnectionFail, code)
	// Every attempt is a 500, so all three attempts are spent.
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSubmitNonRetryableAPIError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.Submit(context.Background(), SubmitRequest{TaskID: "t1"})
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeDownstreamAPIError, code)
	// A processing-category response is permanent — no retries.
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestStatusReturnsFileNotFoundOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Status(context.Background(), "t1")
	require.Error(t, err)
	code, ok := xerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeFileNotFound, code)
}
