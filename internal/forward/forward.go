// Package forward mirrors verified webhook payloads to a downstream URL.
package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/memohai/nextplot/internal/prune"
	"github.com/memohai/nextplot/internal/signature"
)

const defaultTimeout = 10 * time.Second

// Forwarder POSTs the raw body with the incoming signature header.
type Forwarder struct {
	client *resty.Client
	url    string
	logger *slog.Logger
}

// New returns a forwarder for url.
func New(log *slog.Logger, url string, timeout time.Duration) (*Forwarder, error) {
	if log == nil {
		log = slog.Default()
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("forward url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Forwarder{
		client: resty.New().SetTimeout(timeout),
		url:    url,
		logger: log.With(slog.String("service", "forward")),
	}, nil
}

// Forward sends body downstream. Non-2xx responses are errors.
func (f *Forwarder) Forward(ctx context.Context, body []byte, sig string) error {
	req := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if sig != "" {
		req.SetHeader(signature.Header, sig)
	}
	resp, err := req.Post(f.url)
	if err != nil {
		return fmt.Errorf("forward payload: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("forward payload: status %d: %s", resp.StatusCode(), prune.Body(resp.String()))
	}
	f.logger.Debug("payload forwarded", slog.Int("status", resp.StatusCode()), slog.Int("bytes", len(body)))
	return nil
}
