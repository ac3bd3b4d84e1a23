package middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chhz0/tasklist/storage"
)

type slowMedium struct {
	storage.Medium
	delay time.Duration
}

func (s slowMedium) Get(ctx context.Context, key string) ([]byte, storage.Revision, error) {
	select {
	case <-time.After(s.delay):
		return s.Medium.Get(ctx, key)
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next storage.Medium) storage.Medium {
			return medium{
				get: func(ctx context.Context, key string) ([]byte, storage.Revision, error) {
					order = append(order, name)
					return next.Get(ctx, key)
				},
				put:   next.Put,
				close: next.Close,
			}
		}
	}

	m := Chain(mark("outer"), mark("inner"))(storage.NewMemoryStorage())
	m.Get(context.Background(), "k")

	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v, want outer,inner", order)
	}
}

func TestTimeout(t *testing.T) {
	m := Timeout(10 * time.Millisecond)(slowMedium{Medium: storage.NewMemoryStorage(), delay: time.Second})
	_, _, err := m.Get(context.Background(), "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	stats := &Stats{}
	m := Metrics(stats)(storage.NewMemoryStorage())

	m.Get(ctx, "k")
	m.Put(ctx, "k", []byte("a"), 0)
	m.Put(ctx, "k", []byte("b"), 0)

	snap := stats.Snapshot()
	if snap.Gets != 1 || snap.Puts != 2 {
		t.Errorf("snapshot counts = %+v", snap)
	}
	if snap.Conflicts != 1 {
		t.Errorf("conflicts = %d, want 1", snap.Conflicts)
	}
	if snap.Errors != 0 {
		t.Errorf("errors = %d, want 0", snap.Errors)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	m := Logger(logger)(storage.NewMemoryStorage())

	ctx := context.Background()
	m.Put(ctx, "todos", []byte("[]"), 0)
	m.Put(ctx, "todos", []byte("[]"), 0)

	out := buf.String()
	if !strings.Contains(out, "medium put") {
		t.Errorf("expected put log, got %q", out)
	}
	if !strings.Contains(out, "medium put conflict") {
		t.Errorf("expected conflict log, got %q", out)
	}
}
