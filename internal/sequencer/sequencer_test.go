package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a dispatcher that remembers which ids it handled and when.
type recorder struct {
	mu    sync.Mutex
	ids   []string
	times []time.Time
	skip  map[string]bool
}

func (r *recorder) Dispatch(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil || r.skip[id] {
		return false
	}
	r.ids = append(r.ids, id)
	r.times = append(r.times, time.Now())
	return true
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *recorder) snapshot() ([]string, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...), append([]time.Time(nil), r.times...)
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("e%d", i)
	}
	return out
}

func waitIdle(t *testing.T, s *Sequencer, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			_ = s.Stop()
			t.Fatalf("timeout waiting for run to finish (status=%+v)", s.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForCount(t *testing.T, r *recorder, n int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for r.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d dispatches (got %d)", n, r.count())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNew_NilDispatcher(t *testing.T) {
	s, err := New(nil)
	if err == nil || s != nil {
		t.Fatalf("expected error and nil sequencer, got %v %#v", err, s)
	}
}

func TestStart_NothingToSend(t *testing.T) {
	r := &recorder{}
	s, _ := New(r)

	if err := s.Start(nil, 10*time.Millisecond); !errors.Is(err, ErrNothingToSend) {
		t.Fatalf("expected ErrNothingToSend, got %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("expected idle after rejected start")
	}
	time.Sleep(30 * time.Millisecond)
	if r.count() != 0 {
		t.Fatalf("expected no side effects, got %d", r.count())
	}
}

func TestStart_InvalidDelay(t *testing.T) {
	s, _ := New(&recorder{})
	if err := s.Start(ids(1), 0); !errors.Is(err, ErrInvalidDelay) {
		t.Fatalf("expected ErrInvalidDelay, got %v", err)
	}
}

func TestFullRun_DispatchesEachOnceSpacedByDelay(t *testing.T) {
	const (
		n     = 4
		delay = 20 * time.Millisecond
	)

	r := &recorder{}
	finished := make(chan Status, 1)
	s, _ := New(r, WithOnDone(func(st Status) { finished <- st }))

	start := time.Now()
	if err := s.Start(ids(n), delay); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Start(ids(n), delay); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	var st Status
	select {
	case st = <-finished:
	case <-time.After(2 * time.Second):
		_ = s.Stop()
		t.Fatalf("run did not finish")
	}
	waitIdle(t, s, time.Second)

	if st.Dispatched != n || st.Total != n || st.Running {
		t.Fatalf("unexpected final status %+v", st)
	}

	got, times := r.snapshot()
	if len(got) != n {
		t.Fatalf("expected %d dispatches, got %d", n, len(got))
	}
	for i, id := range ids(n) {
		if got[i] != id {
			t.Fatalf("expected snapshot order %v, got %v", ids(n), got)
		}
	}

	if times[0].Sub(start) < delay {
		t.Fatalf("first step fired before one delay: %v", times[0].Sub(start))
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < delay {
			t.Fatalf("steps %d and %d only %v apart, want >= %v", i-1, i, gap, delay)
		}
	}

	if s.Stop() {
		t.Fatalf("Stop() after natural completion should report false")
	}
}

func TestStop_MidRunPreventsFurtherSteps(t *testing.T) {
	const delay = 15 * time.Millisecond

	r := &recorder{}
	doneCalled := make(chan struct{}, 1)
	s, _ := New(r, WithOnDone(func(Status) { doneCalled <- struct{}{} }))

	if err := s.Start(ids(10), delay); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	waitForCount(t, r, 2, time.Second)

	if !s.Stop() {
		t.Fatalf("expected Stop() true")
	}
	k := r.count()

	time.Sleep(5 * delay)
	if after := r.count(); after != k {
		t.Fatalf("expected no steps after Stop; before=%d after=%d", k, after)
	}
	if s.IsRunning() {
		t.Fatalf("expected idle after Stop")
	}
	if st := s.Status(); st.Dispatched != k {
		t.Fatalf("expected status dispatched=%d, got %+v", k, st)
	}

	select {
	case <-doneCalled:
		t.Fatalf("OnDone must not fire for a stopped run")
	default:
	}

	if s.Stop() {
		t.Fatalf("expected Stop() false when already stopped")
	}
}

func TestStop_BeforeFirstStep(t *testing.T) {
	r := &recorder{}
	s, _ := New(r)

	if err := s.Start(ids(3), time.Hour); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !s.Stop() {
		t.Fatalf("expected Stop() true")
	}
	if r.count() != 0 {
		t.Fatalf("expected no side effects, got %d", r.count())
	}
}

func TestIneligibleEntriesAreSkippedWithoutWaiting(t *testing.T) {
	const delay = 20 * time.Millisecond

	r := &recorder{skip: map[string]bool{"e1": true, "e2": true}}
	finished := make(chan Status, 1)
	s, _ := New(r, WithOnDone(func(st Status) { finished <- st }))

	if err := s.Start(ids(4), delay); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	var st Status
	select {
	case st = <-finished:
	case <-time.After(2 * time.Second):
		_ = s.Stop()
		t.Fatalf("run did not finish")
	}
	waitIdle(t, s, time.Second)

	got, times := r.snapshot()
	if len(got) != 2 || got[0] != "e0" || got[1] != "e3" {
		t.Fatalf("expected e0 and e3 dispatched, got %v", got)
	}
	if st.Dispatched != 2 || st.Cursor != 4 {
		t.Fatalf("unexpected status %+v", st)
	}
	// e1 and e2 are skipped inside one step, so e3 follows e0 after a single delay.
	if gap := times[1].Sub(times[0]); gap >= 3*delay {
		t.Fatalf("skipped entries should not consume delays, gap=%v", gap)
	}
}

func TestPanicInDispatchIsRecovered(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	d := DispatcherFunc(func(ctx context.Context, id string) bool {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if id == "e0" {
			panic("boom")
		}
		return true
	})

	finished := make(chan Status, 1)
	s, _ := New(d, WithOnDone(func(st Status) { finished <- st }))
	if err := s.Start(ids(2), 5*time.Millisecond); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case st := <-finished:
		if st.Dispatched != 1 {
			t.Fatalf("expected 1 dispatched after recovered panic, got %+v", st)
		}
	case <-time.After(time.Second):
		_ = s.Stop()
		t.Fatalf("run did not finish")
	}
	waitIdle(t, s, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected both entries attempted, got %d", calls)
	}
}

func TestStartStopMultipleTimes(t *testing.T) {
	r := &recorder{}
	s, _ := New(r)

	for i := 0; i < 3; i++ {
		if err := s.Start(ids(100), 5*time.Millisecond); err != nil {
			t.Fatalf("iteration %d: Start() error: %v", i, err)
		}
		waitForCount(t, r, i+1, time.Second)
		if !s.Stop() {
			t.Fatalf("iteration %d: expected Stop() true", i)
		}
	}
}

func TestStopRacingCompletion_OutcomeCountedOnce(t *testing.T) {
	const runs = 200

	var completed, stopped atomic.Int64
	var mu sync.Mutex
	var transitions []bool

	s, _ := New(&recorder{},
		WithOnDone(func(Status) { completed.Add(1) }),
		WithOnRunning(func(running bool) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, running)
		}),
	)

	for i := 0; i < runs; i++ {
		if err := s.Start(ids(1), time.Millisecond); err != nil {
			t.Fatalf("run %d: Start() error: %v", i, err)
		}
		time.Sleep(time.Duration(i%3) * 500 * time.Microsecond)
		if s.Stop() {
			stopped.Add(1)
		}

		deadline := time.Now().Add(time.Second)
		for completed.Load()+stopped.Load() != int64(i+1) {
			if time.Now().After(deadline) {
				t.Fatalf("run %d: completed=%d stopped=%d", i, completed.Load(), stopped.Load())
			}
			time.Sleep(100 * time.Microsecond)
		}
	}

	time.Sleep(10 * time.Millisecond)
	if got := completed.Load() + stopped.Load(); got != runs {
		t.Fatalf("expected %d outcomes, got completed=%d stopped=%d", runs, completed.Load(), stopped.Load())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2*runs {
		t.Fatalf("expected %d running transitions, got %d", 2*runs, len(transitions))
	}
	for i, running := range transitions {
		if running != (i%2 == 0) {
			t.Fatalf("transition %d = %v, want alternating start/stop", i, running)
		}
	}
}
