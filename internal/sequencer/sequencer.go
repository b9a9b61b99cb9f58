package sequencer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNothingToSend  = errors.New("nothing to send: no pending entries")
	ErrAlreadyRunning = errors.New("blast already running")
	ErrInvalidDelay   = errors.New("delay must be > 0")
)

// Dispatcher performs one step of a run. It reports false when the entry
// is no longer eligible (removed or already sent), in which case the step
// produced no side effect and the sequencer moves on without waiting.
// Implementations must check ctx before acting.
type Dispatcher interface {
	Dispatch(ctx context.Context, entryID string) bool
}

type DispatcherFunc func(ctx context.Context, entryID string) bool

func (f DispatcherFunc) Dispatch(ctx context.Context, entryID string) bool {
	return f(ctx, entryID)
}

type Status struct {
	Running    bool `json:"running"`
	Cursor     int  `json:"cursor"`
	Total      int  `json:"total"`
	Dispatched int  `json:"dispatched"`
}

// Sequencer walks a snapshot of entry ids, one step per delay. The delay is
// a one-shot timer re-armed after each step, so steps never overlap.
type Sequencer struct {
	dispatcher Dispatcher
	onDone     func(Status)
	onRunning  func(bool)

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Sequencer)

// WithOnDone registers a hook called when a run completes on its own.
// It is not called for runs ended by Stop.
func WithOnDone(fn func(Status)) Option {
	return func(s *Sequencer) { s.onDone = fn }
}

// WithOnRunning registers a hook called on every running transition. It runs
// with the sequencer's lock held and must not call back into the sequencer.
func WithOnRunning(fn func(running bool)) Option {
	return func(s *Sequencer) { s.onRunning = fn }
}

func New(d Dispatcher, opts ...Option) (*Sequencer, error) {
	if d == nil {
		return nil, errors.New("dispatcher must not be nil")
	}
	s := &Sequencer{dispatcher: d}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Sequencer) Start(ids []string, delay time.Duration) error {
	if delay <= 0 {
		return ErrInvalidDelay
	}
	if len(ids) == 0 {
		return ErrNothingToSend
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return ErrAlreadyRunning
	}

	snapshot := make([]string, len(ids))
	copy(snapshot, ids)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.status = Status{Running: true, Total: len(snapshot)}
	s.notifyRunningLocked()

	go s.run(ctx, done, snapshot, delay)

	slog.Info("blast started", "entries", len(snapshot), "delay", delay.String())
	return nil
}

// Stop cancels the current run and waits for it to exit. Once Stop returns
// no further step of that run can happen. It reports false when no run was
// active, including a run that completed on its own before the cancel.
func (s *Sequencer) Stop() bool {
	s.mu.Lock()
	if !s.status.Running {
		s.mu.Unlock()
		return false
	}
	// cancel under the lock so completion in run sees it
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	s.status.Running = false
	s.notifyRunningLocked()
	st := s.status
	s.mu.Unlock()

	slog.Info("blast stopped", "dispatched", st.Dispatched, "cursor", st.Cursor, "total", st.Total)
	return true
}

func (s *Sequencer) IsRunning() bool {
	return s.Status().Running
}

func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sequencer) run(ctx context.Context, done chan struct{}, ids []string, delay time.Duration) {
	defer close(done)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for i := 0; i < len(ids); {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// skip ineligible entries until one is dispatched or the snapshot ends
		dispatched := false
		for ; i < len(ids) && !dispatched; i++ {
			if ctx.Err() != nil {
				return
			}
			dispatched = s.safeDispatch(ctx, ids[i])
			s.advance(i+1, dispatched)
		}

		timer.Reset(delay)
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.status.Running = false
	s.notifyRunningLocked()
	st := s.status
	s.cancel()
	s.mu.Unlock()

	slog.Info("blast finished", "dispatched", st.Dispatched, "total", st.Total)
	if s.onDone != nil {
		s.onDone(st)
	}
}

func (s *Sequencer) notifyRunningLocked() {
	if s.onRunning != nil {
		s.onRunning(s.status.Running)
	}
}

func (s *Sequencer) advance(cursor int, dispatched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Cursor = cursor
	if dispatched {
		s.status.Dispatched++
	}
}

func (s *Sequencer) safeDispatch(ctx context.Context, id string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("blast step panic recovered", "entry_id", id, "panic", r)
			ok = false
		}
	}()
	return s.dispatcher.Dispatch(ctx, id)
}
