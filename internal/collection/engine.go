package collection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/brightmarket/storefront-backend/pkg/config"
	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
	"github.com/brightmarket/storefront-backend/pkg/metrics"
)

// Engine is the entry point for collection synchronization. It hands out one
// Session per (owner, kind) pair and owns the shared replacer and
// transitioner underneath.
type Engine struct {
	durable      DurableStore
	replacer     *Replacer
	transitioner *Transitioner
	cfg          config.SyncConfig
	logg         *logger.Logger
	metrics      *metrics.SyncMetrics

	mu       sync.Mutex
	sessions map[sessionKey]*Session

	reapStop chan struct{}
	stopOnce sync.Once
}

// reapFlushTimeout bounds the final push of a session being evicted.
const reapFlushTimeout = 10 * time.Second

type sessionKey struct {
	ownerKey string
	kind     enums.CollectionKind
}

// EngineParams carries the dependencies for NewEngine.
type EngineParams struct {
	Durable DurableStore
	Cfg     config.SyncConfig
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// NewEngine validates dependencies and builds an Engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Durable == nil {
		return nil, errors.New("collection: durable store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("collection: logger is required")
	}

	replacer, err := NewReplacer(ReplacerParams{
		Store:   params.Durable,
		Cfg:     params.Cfg,
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	transitioner, err := NewTransitioner(TransitionerParams{
		Store:    params.Durable,
		Replacer: replacer,
		Logger:   params.Logger,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		durable:      params.Durable,
		replacer:     replacer,
		transitioner: transitioner,
		cfg:          params.Cfg,
		logg:         params.Logger,
		metrics:      params.Metrics,
		sessions:     make(map[sessionKey]*Session),
		reapStop:     make(chan struct{}),
	}
	// Anonymous visitors come and go; without a reaper their sessions and
	// scheduler goroutines would outlive the redis session TTL.
	if params.Cfg.SessionIdleTimeout > 0 {
		go engine.reapLoop(params.Cfg.SessionIdleTimeout)
	}
	return engine, nil
}

func (e *Engine) reapLoop(idleTimeout time.Duration) {
	interval := idleTimeout / 4
	if interval <= 0 {
		interval = idleTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.reapStop:
			return
		case <-ticker.C:
			e.reapIdle(idleTimeout)
		}
	}
}

// reapIdle flushes and closes every session untouched for longer than the
// idle timeout. A principal coming back later reopens from the durable store.
func (e *Engine) reapIdle(idleTimeout time.Duration) {
	cutoff := time.Now().Add(-idleTimeout)

	e.mu.Lock()
	idle := make([]*Session, 0)
	for key, session := range e.sessions {
		if session.lastActiveAt().Before(cutoff) {
			idle = append(idle, session)
			delete(e.sessions, key)
		}
	}
	e.mu.Unlock()

	for _, session := range idle {
		ctx, cancel := context.WithTimeout(context.Background(), reapFlushTimeout)
		ctx = e.logg.WithOwnerKey(ctx, session.OwnerKey())
		if _, err := session.Flush(ctx); err != nil && !errors.Is(err, ErrSchedulerClosed) {
			e.logg.Error(ctx, "flush on idle eviction failed", err)
		}
		session.close()
		cancel()
	}
}

// Open returns the session for (ownerKey, kind), creating and hydrating it
// from the durable store on first use. Reopening an already-open session
// returns the same instance.
func (e *Engine) Open(ctx context.Context, ownerKey string, kind enums.CollectionKind) (*Session, error) {
	if ownerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner key is required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown collection kind")
	}
	key := sessionKey{ownerKey: ownerKey, kind: kind}

	e.mu.Lock()
	if existing, ok := e.sessions[key]; ok {
		existing.touch()
		e.mu.Unlock()
		return existing, nil
	}
	e.mu.Unlock()

	// Hydrate outside the engine lock; opening one slow session must not
	// block the others.
	remote, err := e.durable.Load(ctx, ownerKey, kind)
	if err != nil {
		if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
			return nil, err
		}
		remote = nil
	}

	session, err := e.buildSession(ownerKey, kind, remote)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.sessions[key]; ok {
		// Lost the race to another opener.
		session.close()
		return existing, nil
	}
	e.sessions[key] = session
	return session, nil
}

func (e *Engine) buildSession(ownerKey string, kind enums.CollectionKind, remote *Snapshot) (*Session, error) {
	store := NewStore(ownerKey, kind)
	if remote != nil {
		store.Seed(remote.Items, remote.UpdatedAt)
	}

	sched, err := NewScheduler(SchedulerParams{
		Snapshot: store.Snapshot,
		Push:     e.replacer.Push,
		Kind:     kind,
		Cfg:      e.cfg,
		Logger:   e.logg,
		Metrics:  e.metrics,
	})
	if err != nil {
		return nil, err
	}
	session := &Session{
		ownerKey: ownerKey,
		kind:     kind,
		store:    store,
		sched:    sched,
	}
	session.touch()
	store.OnMutate(func() {
		session.touch()
		sched.Signal()
	})
	return session, nil
}

// Transition merges the anonymous owner's collection of the given kind into
// the authenticated owner's. Any open session under either key is rebuilt
// or torn down so in-memory state matches the merge result.
func (e *Engine) Transition(ctx context.Context, anonKey, userKey string, kind enums.CollectionKind) (*Snapshot, error) {
	if anonKey == "" || userKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "both owner keys are required")
	}

	// Drain unsynced mutations on both sides so the merge reads what each
	// owner last saw, not a stale durable snapshot.
	for _, ownerKey := range []string{anonKey, userKey} {
		e.mu.Lock()
		open := e.sessions[sessionKey{ownerKey: ownerKey, kind: kind}]
		e.mu.Unlock()
		if open == nil {
			continue
		}
		if _, err := open.Flush(ctx); err != nil && !errors.Is(err, ErrSchedulerClosed) {
			return nil, err
		}
	}

	merged, err := e.transitioner.Merge(ctx, anonKey, userKey, kind)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if anon, ok := e.sessions[sessionKey{ownerKey: anonKey, kind: kind}]; ok {
		delete(e.sessions, sessionKey{ownerKey: anonKey, kind: kind})
		defer anon.close()
	}
	if user, ok := e.sessions[sessionKey{ownerKey: userKey, kind: kind}]; ok {
		user.store.Seed(merged.Items, merged.UpdatedAt)
	}
	e.mu.Unlock()

	return merged, nil
}

// Close flushes and tears down the session for (ownerKey, kind). Unknown
// sessions are a no-op.
func (e *Engine) Close(ctx context.Context, ownerKey string, kind enums.CollectionKind) error {
	key := sessionKey{ownerKey: ownerKey, kind: kind}

	e.mu.Lock()
	session, ok := e.sessions[key]
	if ok {
		delete(e.sessions, key)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	_, err := session.Flush(ctx)
	session.close()
	if err != nil && !errors.Is(err, ErrSchedulerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the idle reaper, then flushes and closes every open session.
func (e *Engine) Shutdown(ctx context.Context) {
	e.stopOnce.Do(func() { close(e.reapStop) })

	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for key, session := range e.sessions {
		sessions = append(sessions, session)
		delete(e.sessions, key)
	}
	e.mu.Unlock()

	for _, session := range sessions {
		if _, err := session.Flush(ctx); err != nil && !errors.Is(err, ErrSchedulerClosed) {
			e.logg.Error(ctx, "flush on shutdown failed", err)
		}
		session.close()
	}
}

// Session is one owner's live view of a single collection. Mutations apply
// to the local store synchronously and schedule a background push; reads
// never touch the database.
type Session struct {
	ownerKey string
	kind     enums.CollectionKind
	store    *Store
	sched    *Scheduler

	// lastActive is the unix-nano time of the last open or mutation; the
	// engine's reaper evicts sessions idle past the configured timeout.
	lastActive atomic.Int64
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) lastActiveAt() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// OwnerKey returns the owning principal's key.
func (s *Session) OwnerKey() string { return s.ownerKey }

// Kind returns the collection kind.
func (s *Session) Kind() enums.CollectionKind { return s.kind }

// Add inserts a variant or tops up its quantity.
func (s *Session) Add(variantID uuid.UUID, quantity int, price PriceSnapshot) error {
	return s.store.Add(variantID, quantity, price)
}

// UpdateQuantity sets an existing item's quantity to an exact value.
func (s *Session) UpdateQuantity(variantID uuid.UUID, quantity int) error {
	return s.store.UpdateQuantity(variantID, quantity)
}

// Remove deletes an item; absent items are a no-op.
func (s *Session) Remove(variantID uuid.UUID) {
	s.store.Remove(variantID)
}

// Toggle flips wishlist membership and reports whether the variant was added.
func (s *Session) Toggle(variantID uuid.UUID, price PriceSnapshot) (bool, error) {
	return s.store.Toggle(variantID, price)
}

// Clear empties the collection.
func (s *Session) Clear() {
	s.store.Clear()
}

// Contains reports membership for a variant.
func (s *Session) Contains(variantID uuid.UUID) bool {
	return s.store.Contains(variantID)
}

// Items returns the line items in insertion order.
func (s *Session) Items() []LineItem {
	return s.store.Items()
}

// Totals returns the aggregate quantity and price.
func (s *Session) Totals() Totals {
	return s.store.Totals()
}

// Snapshot returns a copy of the full collection state.
func (s *Session) Snapshot() Snapshot {
	return s.store.Snapshot()
}

// State reports the current synchronization state.
func (s *Session) State() enums.SyncState {
	return s.sched.State()
}

// OnSyncStateChange registers a listener for state transitions.
func (s *Session) OnSyncStateChange(fn func(enums.SyncState)) {
	s.sched.OnStateChange(fn)
}

// Flush pushes the current snapshot immediately and waits for the result.
func (s *Session) Flush(ctx context.Context) (SyncResult, error) {
	return s.sched.Flush(ctx)
}

func (s *Session) close() {
	s.sched.Close()
}
