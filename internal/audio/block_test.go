package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBlockQueueCycle(t *testing.T) {
	q := NewBlockQueue(2, 2)
	if q.ChannelCount() != 2 {
		t.Fatalf("ChannelCount() = %d, want 2", q.ChannelCount())
	}

	a, ok := q.TryAcquire()
	if !ok {
		t.Fatal("TryAcquire() failed on a fresh queue")
	}
	if len(a.Data) != 2 || len(a.Data[0]) != BlockSize {
		t.Fatalf("block shape = %d x %d", len(a.Data), len(a.Data[0]))
	}
	a.Frames = 3
	q.Submit(a)

	b, ok := q.TryAcquire()
	if !ok {
		t.Fatal("second TryAcquire() failed")
	}
	if _, ok := q.TryAcquire(); ok {
		t.Fatal("TryAcquire() succeeded on an empty pool")
	}
	if q.Overruns() != 1 {
		t.Errorf("Overruns() = %d, want 1", q.Overruns())
	}
	q.Submit(b)
	if q.Submitted() != 2 {
		t.Errorf("Submitted() = %d, want 2", q.Submitted())
	}

	got := <-q.Filled()
	if got != a {
		t.Fatal("Filled() did not return blocks in submit order")
	}
	if ch := got.Channels(nil); len(ch) != 2 || len(ch[1]) != 3 {
		t.Errorf("Channels() trimmed to %d x %d, want 2 x 3", len(ch), len(ch[1]))
	}
	q.Release(got)

	again, ok := q.TryAcquire()
	if !ok || again.Frames != 0 {
		t.Errorf("reacquired block: ok=%v frames=%d", ok, again.Frames)
	}
}

func TestBlockQueueAcquireCancel(t *testing.T) {
	q := NewBlockQueue(1, 2)
	q.TryAcquire()
	q.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want deadline exceeded", err)
	}
}
