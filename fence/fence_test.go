package fence

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// timeline is a test Primitive whose retired counter is advanced by hand.
type timeline struct {
	mu        sync.Mutex
	cond      *sync.Cond
	retired   uint64
	waits     int
	destroyed bool
}

func newTimeline() *timeline {
	tl := &timeline{}
	tl.cond = sync.NewCond(&tl.mu)
	return tl
}

func (tl *timeline) Reached(v uint64) bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.retired >= v
}

func (tl *timeline) WaitFor(v uint64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.waits++
	for tl.retired < v {
		tl.cond.Wait()
	}
}

func (tl *timeline) Destroy() {
	tl.mu.Lock()
	tl.destroyed = true
	tl.mu.Unlock()
}

func (tl *timeline) retire(v uint64) {
	tl.mu.Lock()
	if v > tl.retired {
		tl.retired = v
	}
	tl.mu.Unlock()
	tl.cond.Broadcast()
}

// queue records signals; with err set it refuses them.
type queue struct {
	signals []uint64
	err     error
}

func (q *queue) Signal(_ Primitive, v uint64) error {
	if q.err != nil {
		return q.err
	}
	q.signals = append(q.signals, v)
	return nil
}

func TestFenceUnsignalledIsComplete(t *testing.T) {
	f := New(newTimeline())
	if !f.Completed() {
		t.Error("fresh fence should be complete")
	}
	if f.Value() != 0 {
		t.Errorf("Value() = %d, want 0", f.Value())
	}
	f.Wait() // must not block
}

func TestFenceSignalAndRetire(t *testing.T) {
	tl := newTimeline()
	f := New(tl)
	q := &queue{}

	v, err := f.Signal(q)
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if v != 1 || len(q.signals) != 1 || q.signals[0] != 1 {
		t.Fatalf("signal value = %d, queue saw %v", v, q.signals)
	}
	if f.Completed() {
		t.Error("fence complete before retirement")
	}

	tl.retire(1)
	if !f.Completed() {
		t.Error("fence not complete after retirement")
	}

	v2, _ := f.Signal(q)
	if v2 != 2 {
		t.Errorf("second signal = %d, want 2", v2)
	}
	if f.Completed() {
		t.Error("new target should be outstanding")
	}
}

func TestFenceCompletedValue(t *testing.T) {
	tl := newTimeline()
	f := New(tl)
	tl.retire(5)

	tests := []struct {
		v    uint64
		want bool
	}{
		{3, true},
		{4, true},
		{5, false}, // retired must be strictly greater
		{6, false},
	}
	for _, tt := range tests {
		if got := f.CompletedValue(tt.v); got != tt.want {
			t.Errorf("CompletedValue(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestFenceSignalFailureRollsBack(t *testing.T) {
	f := New(newTimeline())
	boom := errors.New("queue lost")
	q := &queue{err: boom}

	if _, err := f.Signal(q); !errors.Is(err, ErrSignal) || !errors.Is(err, boom) {
		t.Fatalf("Signal error = %v, want ErrSignal wrapping cause", err)
	}
	if f.Value() != 0 {
		t.Errorf("Value() = %d after failed signal, want 0", f.Value())
	}
	if !f.Completed() {
		t.Error("failed signal left fence outstanding")
	}
}

func TestFenceIncrementValue(t *testing.T) {
	f := New(newTimeline())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.IncrementValue()
		}()
	}
	wg.Wait()
	if f.Value() != 50 {
		t.Errorf("Value() = %d, want 50", f.Value())
	}
}

func TestFenceWaitBlocksUntilRetired(t *testing.T) {
	tl := newTimeline()
	f := New(tl)
	if _, err := f.Signal(&queue{}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before retirement")
	case <-time.After(20 * time.Millisecond):
	}

	tl.retire(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after retirement")
	}
}

func TestFenceDestroy(t *testing.T) {
	tl := newTimeline()
	f := New(tl)
	f.Destroy()
	if !tl.destroyed {
		t.Error("primitive not destroyed")
	}
	if tl.waits != 0 {
		t.Error("Destroy waited on an idle fence")
	}
}

func TestNewNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) did not panic")
		}
	}()
	New(nil)
}
