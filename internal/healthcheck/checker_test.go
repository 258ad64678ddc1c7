package healthcheck

import (
	"context"
	"errors"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheckerOK(t *testing.T) {
	t.Parallel()

	c := NewPingChecker(nil, "records", pingFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected ping context to carry a deadline")
		}
		return nil
	}), 0)

	items := c.ListChecks(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].ID != "records" || items[0].Status != StatusOK {
		t.Fatalf("unexpected result: %+v", items[0])
	}
	if items[0].Detail != "" {
		t.Fatalf("unexpected detail: %q", items[0].Detail)
	}
}

func TestRunAggregates(t *testing.T) {
	t.Parallel()

	ok := NewPingChecker(nil, "a", pingFunc(func(context.Context) error { return nil }), 0)
	bad := NewPingChecker(nil, "b", pingFunc(func(context.Context) error { return errors.New("connection refused") }), 0)

	items, healthy := Run(context.Background(), []Checker{ok, nil, bad})
	if healthy {
		t.Fatal("expected unhealthy report")
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Status != StatusError || items[1].Detail != "connection refused" {
		t.Fatalf("unexpected failing item: %+v", items[1])
	}

	if _, healthy := Run(context.Background(), nil); !healthy {
		t.Fatal("expected empty report to be healthy")
	}
}
