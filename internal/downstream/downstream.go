// Package downstream implements the masking service client of
// spec.md §4.7: submit a masking job and query its status, retrying
// transient failures with bounded exponential backoff.
package downstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"transformat/internal/model"
	"transformat/internal/xerrors"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const (
	maxAttempts  = 3
	minBackoff   = 2 * time.Second
	maxBackoff   = 10 * time.Second
	backoffMult  = 1.0
)

// FieldConfig names one field's downstream masking intent.
type FieldConfig struct {
	FieldName     string              `json:"field_name"`
	TransformType model.TransformType `json:"transform_type"`
}

// SubmitRequest is the JSON body posted to /mask/process.
type SubmitRequest struct {
	TaskID         string        `json:"task_id"`
	InputFilePath  string        `json:"input_file_path"`
	OutputFilePath string        `json:"output_file_path"`
	FieldConfigs   []FieldConfig `json:"field_configs"`
}

// Client is a session-less HTTP client scoped to one downstream base URL.
type Client struct {
	http *resty.Client
}

// New builds a Client. timeout is the per-attempt request timeout —
// spec.md §9 treats DOWNSTREAM_API_TIMEOUT configuration as
// authoritative; 30s is the fallback when the caller passes <= 0.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
	}
}

// Submit posts a masking job. It retries up to three attempts with
// exponential backoff between 2s and 10s (multiplier 1). A transport
// failure or a 5xx response is treated as transient and retried; once
// retries are exhausted the result is DOWNSTREAM_CONNECTION_FAILED
// (system, retryable). A 4xx response is a client-side processing
// error and is never retried: it yields DOWNSTREAM_API_ERROR
// (processing) on the first attempt.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = minBackoff
	policy.MaxInterval = maxBackoff
	policy.Multiplier = backoffMult
	policy.MaxElapsedTime = 0
	bo := backoff.WithMaxRetries(policy, maxAttempts-1)

	var lastErr error
	var permanentErr error
	attempts := 0

	operation := func() error {
		attempts++
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			Post("/mask/process")
		if err != nil {
			lastErr = err
			return err
		}
		if resp.IsSuccess() {
			return nil
		}
		apiErr := xerrors.New(xerrors.CodeDownstreamAPIError, map[string]any{
			"status": resp.StatusCode(),
			"body":   truncate(resp.String(), 500),
		})
		if resp.StatusCode() < 500 {
			// 4xx is a client-side processing error: don't retry.
			permanentErr = apiErr
			return backoff.Permanent(apiErr)
		}
		// 5xx is treated like a transport error: retry.
		lastErr = apiErr
		return apiErr
	}

	if err := backoff.Retry(operation, bo); err != nil {
		if permanentErr != nil {
			return permanentErr
		}
		return xerrors.Wrap(xerrors.CodeDownstreamConnectionFail, lastErr, map[string]any{
			"attempts": attempts,
		})
	}
	return nil
}

// StatusResponse is the decoded body of GET /mask/status/{task_id}.
type StatusResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Status queries a submitted job's status. A 404 maps to FILE_NOT_FOUND.
func (c *Client) Status(ctx context.Context, taskID string) (StatusResponse, error) {
	var out StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/mask/status/%s", taskID))
	if err != nil {
		return StatusResponse{}, xerrors.Wrap(xerrors.CodeDownstreamConnectionFail, err, map[string]any{"attempts": 1})
	}
	if resp.StatusCode() == http.StatusNotFound {
		return StatusResponse{}, xerrors.New(xerrors.CodeFileNotFound, map[string]any{"task_id": taskID})
	}
	if !resp.IsSuccess() {
		return StatusResponse{}, xerrors.New(xerrors.CodeDownstreamAPIError, map[string]any{
			"status": resp.StatusCode(),
			"body":   truncate(resp.String(), 500),
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
