package collection

import (
	"context"

	"github.com/google/uuid"

	"github.com/brightmarket/storefront-backend/pkg/enums"
)

// DurableStore exposes the storage primitives the replace protocol
// orchestrates. The three write steps are deliberately separate calls so the
// protocol controls their ordering and retry behavior; implementations must
// not batch them into one transaction.
type DurableStore interface {
	// UpsertParent creates the parent row for (ownerKey, kind) if missing
	// and returns its id. Safe to call repeatedly.
	UpsertParent(ctx context.Context, ownerKey string, kind enums.CollectionKind) (uuid.UUID, error)

	// DeleteItems removes every child row of the parent. Deleting from an
	// already-empty parent succeeds.
	DeleteItems(ctx context.Context, parentID uuid.UUID) error

	// InsertItems writes the full item set under the parent in one batch.
	// Callers skip the call entirely for empty sets.
	InsertItems(ctx context.Context, parentID uuid.UUID, items []LineItem) error

	// Load reads the collection back. Absent collections return a
	// not-found error.
	Load(ctx context.Context, ownerKey string, kind enums.CollectionKind) (*Snapshot, error)

	// DeleteParent removes the parent row and its items. Used when an
	// anonymous identity is retired after a merge.
	DeleteParent(ctx context.Context, ownerKey string, kind enums.CollectionKind) error
}

// Pusher replaces the remote copy of a collection with a snapshot.
type Pusher interface {
	Push(ctx context.Context, snap Snapshot) error
}
