package collection

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/brightmarket/storefront-backend/pkg/config"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
	"github.com/brightmarket/storefront-backend/pkg/metrics"
)

const jitterWindow = 25 * time.Millisecond

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Replacer pushes full snapshots to the durable store using three separate
// steps: upsert the parent, delete its items, insert the new items. The
// steps are not one transaction; a failure between delete and insert leaves
// the remote copy empty while the local store still holds the items. That
// window is acceptable because the local store is authoritative and any
// later push repeats all three steps, but it is narrowed by retrying the
// insert in place before surfacing the failure.
type Replacer struct {
	store   DurableStore
	cfg     config.SyncConfig
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
}

// ReplacerParams carries the dependencies for NewReplacer.
type ReplacerParams struct {
	Store   DurableStore
	Cfg     config.SyncConfig
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// NewReplacer validates dependencies and builds a Replacer.
func NewReplacer(params ReplacerParams) (*Replacer, error) {
	if params.Store == nil {
		return nil, errors.New("collection: durable store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("collection: logger is required")
	}
	return &Replacer{
		store:   params.Store,
		cfg:     params.Cfg,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Push replaces the remote copy of the collection with the snapshot. A push
// of an empty snapshot still runs the upsert and delete so clearing a cart
// propagates; the insert is skipped. Push is idempotent: repeating it with
// the same snapshot converges on the same rows.
func (r *Replacer) Push(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	kind := snap.Kind.String()
	ctx = r.logg.WithOwnerKey(ctx, snap.OwnerKey)

	parentID, err := r.store.UpsertParent(ctx, snap.OwnerKey, snap.Kind)
	if err != nil {
		r.metrics.IncFailure(kind)
		return err
	}

	if err := r.store.DeleteItems(ctx, parentID); err != nil {
		r.metrics.IncFailure(kind)
		return err
	}

	if len(snap.Items) > 0 {
		if err := r.insertWithRetry(ctx, parentID, snap); err != nil {
			r.metrics.IncFailure(kind)
			return err
		}
	}

	r.metrics.IncSuccess(kind)
	r.metrics.ObserveDuration(kind, time.Since(start))
	return nil
}

// insertWithRetry retries the insert step with short backoff. At this point
// the remote items are already deleted, so giving up reports a partial
// replace rather than a plain dependency failure.
func (r *Replacer) insertWithRetry(ctx context.Context, parentID uuid.UUID, snap Snapshot) error {
	maxAttempts := r.cfg.InsertMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	base := r.cfg.InsertBaseBackoff
	if base <= 0 {
		base = 25 * time.Millisecond
	}

	backoff := base
	var attemptErrs error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := r.store.InsertItems(ctx, parentID, snap.Items)
		if err == nil {
			if attempt > 1 {
				r.logg.Info(r.logg.WithField(ctx, "attempt", attempt), "collection insert recovered")
			}
			return nil
		}
		if !pkgerrors.IsRetryable(err) {
			return err
		}
		attemptErrs = multierr.Append(attemptErrs, err)
		r.logg.Warn(r.logg.WithField(ctx, "attempt", attempt), "collection insert attempt failed")

		if attempt == maxAttempts {
			break
		}
		if err := sleepWithContext(ctx, withJitter(backoff)); err != nil {
			attemptErrs = multierr.Append(attemptErrs, err)
			break
		}
		backoff = nextBackoff(backoff, base, r.cfg.PushMaxBackoff)
	}

	return pkgerrors.Wrap(pkgerrors.CodePartialReplace, attemptErrs,
		"insert failed after items were deleted")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if max > 0 && next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	jitterMu.Unlock()
	return d + jitter
}
