package collection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brightmarket/storefront-backend/pkg/config"
	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
	"github.com/brightmarket/storefront-backend/pkg/metrics"
)

// ErrSchedulerClosed is returned by Flush after Close.
var ErrSchedulerClosed = errors.New("collection: scheduler is closed")

// SyncResult reports the outcome of a completed push cycle.
type SyncResult struct {
	State    enums.SyncState
	Attempts int
	Err      error
}

// Scheduler owns the push cadence for one open session. Mutation signals are
// debounced into a single push after a quiet period; all pushes run on one
// internal goroutine, so at most one is in flight and pushes never
// interleave. Signals that arrive while a push runs are queued and served
// in order after it completes.
type Scheduler struct {
	snapshot func() Snapshot
	push     func(context.Context, Snapshot) error
	kind     enums.CollectionKind
	cfg      config.SyncConfig
	logg     *logger.Logger
	metrics  *metrics.SyncMetrics

	signal  chan struct{}
	flushCh chan chan SyncResult
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	state     enums.SyncState
	listeners []func(enums.SyncState)

	closeOnce sync.Once
}

// SchedulerParams carries the dependencies for NewScheduler.
type SchedulerParams struct {
	Snapshot func() Snapshot
	Push     func(context.Context, Snapshot) error
	Kind     enums.CollectionKind
	Cfg      config.SyncConfig
	Logger   *logger.Logger
	Metrics  *metrics.SyncMetrics
}

// NewScheduler builds a scheduler and starts its push loop.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Snapshot == nil {
		return nil, errors.New("collection: snapshot source is required")
	}
	if params.Push == nil {
		return nil, errors.New("collection: push function is required")
	}
	if params.Logger == nil {
		return nil, errors.New("collection: logger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		snapshot: params.Snapshot,
		push:     params.Push,
		kind:     params.Kind,
		cfg:      params.Cfg,
		logg:     params.Logger,
		metrics:  params.Metrics,
		signal:   make(chan struct{}, 1),
		flushCh:  make(chan chan SyncResult),
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    enums.SyncStateSynced,
	}
	go s.run(ctx)
	return s, nil
}

// Signal marks the collection dirty. Coalesces: signaling an already-dirty
// scheduler is a no-op, the pending push covers both mutations.
func (s *Scheduler) Signal() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Flush pushes the current snapshot immediately, skipping the debounce
// window, and blocks until that push cycle completes. A push already in
// flight finishes first.
func (s *Scheduler) Flush(ctx context.Context) (SyncResult, error) {
	resp := make(chan SyncResult, 1)
	select {
	case s.flushCh <- resp:
	case <-s.done:
		return SyncResult{}, ErrSchedulerClosed
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	}

	select {
	case result := <-resp:
		return result, result.Err
	case <-s.done:
		return SyncResult{}, ErrSchedulerClosed
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	}
}

// State returns the current synchronization state.
func (s *Scheduler) State() enums.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnStateChange registers a listener invoked on every state transition.
// Listeners run on the scheduler goroutine and must not block.
func (s *Scheduler) OnStateChange(fn func(enums.SyncState)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Close stops the push loop. Pending signals are dropped; callers that need
// durability before teardown should Flush first.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signal:
			switch s.debounce(ctx) {
			case debounceElapsed:
				s.pushWithRetry(ctx)
			case debounceFlushed:
				// push already ran inside the window
			case debounceStopped:
				return
			}
		case resp := <-s.flushCh:
			resp <- s.pushWithRetry(ctx)
		}
	}
}

type debounceOutcome int

const (
	debounceElapsed debounceOutcome = iota
	debounceFlushed
	debounceStopped
)

// debounce waits out the quiet period, restarting it on further signals. A
// flush during the window short-circuits it and runs the push itself.
func (s *Scheduler) debounce(ctx context.Context) debounceOutcome {
	window := s.cfg.Debounce
	if window <= 0 {
		return debounceElapsed
	}
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return debounceStopped
		case <-s.signal:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(window)
		case resp := <-s.flushCh:
			resp <- s.pushWithRetry(ctx)
			return debounceFlushed
		case <-timer.C:
			return debounceElapsed
		}
	}
}

// pushWithRetry snapshots the store and pushes it, retrying transient
// failures with capped backoff. Non-retryable failures and exhausted
// attempts both land the session in the out-of-sync state; the next
// mutation or an explicit flush tries again.
func (s *Scheduler) pushWithRetry(ctx context.Context) SyncResult {
	s.setState(enums.SyncStateSyncing)

	snap := s.snapshot()
	kind := s.kind.String()

	maxAttempts := s.cfg.PushMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	base := s.cfg.PushBaseBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	backoff := base
	attempts := 0
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		err := s.push(ctx, snap)
		if err == nil {
			s.metrics.SetOutOfSync(kind, false)
			s.setState(enums.SyncStateSynced)
			return SyncResult{State: enums.SyncStateSynced, Attempts: attempt}
		}
		lastErr = err

		if !pkgerrors.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "collection push failed, backing off")
		if err := sleepWithContext(ctx, withJitter(backoff)); err != nil {
			break
		}
		backoff = nextBackoff(backoff, base, s.cfg.PushMaxBackoff)
	}

	s.logg.Error(ctx, "collection push gave up", lastErr)
	s.metrics.SetOutOfSync(kind, true)
	s.setState(enums.SyncStateOutOfSync)
	return SyncResult{State: enums.SyncStateOutOfSync, Attempts: attempts, Err: lastErr}
}

func (s *Scheduler) setState(next enums.SyncState) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	listeners := make([]func(enums.SyncState), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
