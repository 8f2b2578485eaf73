package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPChecker probes an HTTP endpoint with GET.
//
// A transport error or 4xx is unhealthy, a 5xx is degraded (the service is
// reachable but failing), anything else is healthy.
type HTTPChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPChecker creates a checker for url. A nil client uses
// http.DefaultClient.
func NewHTTPChecker(name, url string, client *http.Client) *HTTPChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChecker{name: name, url: url, client: client}
}

// Name returns the name of this checker.
func (h *HTTPChecker) Name() string {
	return h.name
}

// Check performs the request.
func (h *HTTPChecker) Check(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return Unhealthy("bad request", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Unhealthy("unreachable", err).WithDetails(map[string]any{"url": h.url})
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	details := map[string]any{"url": h.url, "status_code": resp.StatusCode}
	switch {
	case resp.StatusCode >= 500:
		return Degraded(fmt.Sprintf("server error: %s", resp.Status)).WithDetails(details)
	case resp.StatusCode >= 400:
		return Unhealthy(fmt.Sprintf("request rejected: %s", resp.Status), ErrCheckFailed).WithDetails(details)
	default:
		return Healthy("reachable").WithDetails(details)
	}
}
