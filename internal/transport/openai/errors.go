package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// classifyError wraps a client error as a domain.UpstreamError.
// 429, 5xx, timeouts and connection failures are retryable; other API errors are terminal.
// Caller cancellation passes through unwrapped.
func classifyError(service, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return statusError(service, op, reqErr.HTTPStatusCode, fmt.Errorf("api error %d: %s", reqErr.HTTPStatusCode, detail))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(service, op, apiErr.HTTPStatusCode, fmt.Errorf("api error %d: %s", apiErr.HTTPStatusCode, apiErr.Message))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewRetryableError(service, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewRetryableError(service, op, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.NewRetryableError(service, op, err)
	}

	return domain.NewUpstreamError(service, op, err)
}

func statusError(service, op string, status int, err error) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return domain.NewRetryableError(service, op, err)
	}
	return domain.NewUpstreamError(service, op, err)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
