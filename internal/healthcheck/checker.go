// Package healthcheck evaluates readiness of the relay's dependencies.
package healthcheck

import (
	"context"
	"log/slog"
	"time"
)

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusError indicates check failed.
	StatusError = "error"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 3 * time.Second

// CheckResult is one item of a readiness report.
type CheckResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Checker evaluates one or more runtime checks.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}

// Pinger is implemented by record sinks that can test their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a Pinger as a single check.
type PingChecker struct {
	id      string
	pinger  Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewPingChecker creates a checker named id. A non-positive timeout uses
// DefaultTimeout.
func NewPingChecker(log *slog.Logger, id string, pinger Pinger, timeout time.Duration) *PingChecker {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PingChecker{
		id:      id,
		pinger:  pinger,
		timeout: timeout,
		logger:  log.With(slog.String("checker", id)),
	}
}

func (c *PingChecker) ListChecks(ctx context.Context) []CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.pinger.Ping(ctx)
	res := CheckResult{
		ID:      c.id,
		Status:  StatusOK,
		Latency: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		c.logger.Warn("health check failed", slog.Any("error", err))
		res.Status = StatusError
		res.Detail = err.Error()
	}
	return []CheckResult{res}
}

// Run evaluates all checkers and reports whether every result is ok.
func Run(ctx context.Context, checkers []Checker) ([]CheckResult, bool) {
	results := make([]CheckResult, 0, len(checkers))
	healthy := true
	for _, c := range checkers {
		if c == nil {
			continue
		}
		for _, item := range c.ListChecks(ctx) {
			if item.Status != StatusOK {
				healthy = false
			}
			results = append(results, item)
		}
	}
	return results, healthy
}
