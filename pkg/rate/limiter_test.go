package rate

import (
	"context"
	"testing"
	"time"
)

func TestLimiterServesInitialBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLimiter(ctx, 10, 3)
	for i := 0; i < 3; i++ {
		if _, ok := l.Take(ctx); !ok {
			t.Fatalf("initial token %d not served", i+1)
		}
	}
}

func TestLimiterRefills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLimiter(ctx, 100, 1)
	if _, ok := l.Take(ctx); !ok {
		t.Fatal("initial token not served")
	}
	// The provider allocates 100 tokens per second, one must arrive shortly.
	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	if _, ok := l.Take(waitCtx); !ok {
		t.Fatal("refilled token not served within a second")
	}
}

func TestLimiterTakeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLimiter(ctx, 1, 0)
	doneCtx, doneCancel := context.WithCancel(ctx)
	doneCancel()
	if _, ok := l.Take(doneCtx); ok {
		t.Fatal("Take must fail on a cancelled context")
	}
}
