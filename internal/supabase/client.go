// Package supabase builds the HTTP client shared by the PostgREST record sink
// and the Storage object store.
package supabase

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/memohai/nextplot/internal/prune"
)

// Options configures a Supabase HTTP client.
type Options struct {
	URL string
	// PublishableKey is sent as the apikey header.
	PublishableKey string
	// SecretKey is sent as the bearer token.
	SecretKey string
	Timeout   time.Duration
}

// NewClient returns a resty client rooted at the project URL with the
// Supabase auth headers set on every request.
func NewClient(opts Options) *resty.Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(opts.URL), "/")).
		SetHeader("apikey", opts.PublishableKey).
		SetAuthToken(opts.SecretKey)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return client
}

// StatusError reports a non-2xx response from a Supabase endpoint.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("supabase %s failed: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("supabase %s failed: status %d: %s", e.Op, e.Status, e.Body)
}

// CheckResponse converts an unsuccessful response into a *StatusError. The
// body is shortened to keep gateway error pages out of logs.
func CheckResponse(op string, resp *resty.Response) error {
	if resp == nil || !resp.IsError() {
		return nil
	}
	return &StatusError{Op: op, Status: resp.StatusCode(), Body: prune.Body(resp.String())}
}
