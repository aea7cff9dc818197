package collection

import (
	"context"
	"errors"
	"time"

	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

// Transitioner folds an anonymous owner's collections into an authenticated
// owner's at login. The merged result is pushed under the authenticated key
// before the anonymous rows are retired, so a crash mid-transition loses the
// orphaned anonymous copy at worst, never the merged data.
type Transitioner struct {
	store    DurableStore
	replacer Pusher
	logg     *logger.Logger
}

// TransitionerParams carries the dependencies for NewTransitioner.
type TransitionerParams struct {
	Store    DurableStore
	Replacer Pusher
	Logger   *logger.Logger
}

// NewTransitioner validates dependencies and builds a Transitioner.
func NewTransitioner(params TransitionerParams) (*Transitioner, error) {
	if params.Store == nil {
		return nil, errors.New("collection: durable store is required")
	}
	if params.Replacer == nil {
		return nil, errors.New("collection: replacer is required")
	}
	if params.Logger == nil {
		return nil, errors.New("collection: logger is required")
	}
	return &Transitioner{
		store:    params.Store,
		replacer: params.Replacer,
		logg:     params.Logger,
	}, nil
}

// Merge combines the anonymous owner's collection of the given kind into the
// authenticated owner's and returns the resulting snapshot. When the
// anonymous side is empty or absent this degrades to a plain load of the
// authenticated collection. Cart quantities sum per variant, clamped at the
// per-item cap; wishlists take the union.
func (t *Transitioner) Merge(ctx context.Context, anonKey, userKey string, kind enums.CollectionKind) (*Snapshot, error) {
	ctx = t.logg.WithOwnerKey(ctx, userKey)

	anon, err := t.loadOrNil(ctx, anonKey, kind)
	if err != nil {
		return nil, err
	}
	user, err := t.loadOrNil(ctx, userKey, kind)
	if err != nil {
		return nil, err
	}

	if anon == nil || len(anon.Items) == 0 {
		if anon != nil {
			// Empty anonymous parent rows are garbage once the
			// identity is retired.
			if err := t.store.DeleteParent(ctx, anonKey, kind); err != nil {
				t.logg.Warn(ctx, "failed to retire empty anonymous collection")
			}
		}
		if user != nil {
			return user, nil
		}
		return &Snapshot{OwnerKey: userKey, Kind: kind, UpdatedAt: time.Now().UTC()}, nil
	}

	var userItems []LineItem
	if user != nil {
		userItems = user.Items
	}
	merged := Snapshot{
		OwnerKey:  userKey,
		Kind:      kind,
		Items:     MergeItems(userItems, anon.Items, kind),
		UpdatedAt: time.Now().UTC(),
	}

	if err := t.replacer.Push(ctx, merged); err != nil {
		return nil, err
	}

	// A failure here leaves the anonymous rows behind; they are unreachable
	// once the session token is discarded and expire with it.
	if err := t.store.DeleteParent(ctx, anonKey, kind); err != nil {
		t.logg.Error(ctx, "failed to retire anonymous collection after merge", err)
	}

	return &merged, nil
}

func (t *Transitioner) loadOrNil(ctx context.Context, ownerKey string, kind enums.CollectionKind) (*Snapshot, error) {
	snap, err := t.store.Load(ctx, ownerKey, kind)
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return snap, nil
}
