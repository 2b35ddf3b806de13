package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 512
)

// Request headers set on every relay delivery.
const (
	HeaderName       = "X-Workflow-Name"
	HeaderVersion    = "X-Workflow-Version"
	HeaderDigest     = "X-Workflow-Digest"
	HeaderSubmission = "X-Submission-Id"
)

// HTTPRelay POSTs documents as application/octet-stream to a relay endpoint
// that forwards them to the message queue.
type HTTPRelay struct {
	URL      string
	Client   *http.Client  // http.DefaultClient when nil
	Timeout  time.Duration // per attempt; 30s when zero
	Attempts int           // 1 when zero
	Backoff  Backoff       // DefaultBackoff when zero
}

func (r *HTTPRelay) Deliver(ctx context.Context, sub Submission, payload []byte) error {
	if r.URL == "" {
		return fmt.Errorf("relay url must not be empty")
	}
	attempts := r.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return WithRetry(ctx, attempts, r.Backoff, func(attempt int) error {
		slog.Debug("delivering document", "url", r.URL, "name", sub.Name, "version", sub.Version, "attempt", attempt)
		err := r.post(ctx, sub, payload)
		if err != nil && Retryable(err) {
			slog.Warn("delivery attempt failed", "attempt", attempt, "err", err)
		}
		return err
	})
}

func (r *HTTPRelay) post(ctx context.Context, sub Submission, payload []byte) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(HeaderName, sub.Name)
	req.Header.Set(HeaderVersion, sub.Version)
	req.Header.Set(HeaderDigest, sub.Digest)
	req.Header.Set(HeaderSubmission, sub.ID.String())

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &DeliveryError{Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &DeliveryError{Code: resp.StatusCode, Message: "read response body", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &DeliveryError{Code: resp.StatusCode, Message: msg}
	}
	return nil
}
