package collection

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
)

// Store is the in-memory working copy of one owner's collection. All reads
// and writes go through it; the durable store only ever sees snapshots.
// Mutations are serialized by an internal mutex and report through the
// OnMutate hook so a scheduler can pick them up.
type Store struct {
	ownerKey string
	kind     enums.CollectionKind

	mu        sync.Mutex
	items     map[uuid.UUID]*LineItem
	order     []uuid.UUID
	updatedAt time.Time
	onMutate  func()
}

func NewStore(ownerKey string, kind enums.CollectionKind) *Store {
	return &Store{
		ownerKey: ownerKey,
		kind:     kind,
		items:    make(map[uuid.UUID]*LineItem),
	}
}

// OnMutate registers the hook invoked after every state-changing operation.
// It runs outside the store lock.
func (s *Store) OnMutate(fn func()) {
	s.mu.Lock()
	s.onMutate = fn
	s.mu.Unlock()
}

// Seed replaces the store contents without firing the mutation hook. Used
// when hydrating from the durable store on session open and after an
// identity merge.
func (s *Store) Seed(items []LineItem, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[uuid.UUID]*LineItem, len(items))
	s.order = s.order[:0]
	for _, item := range cloneItems(items) {
		item := item
		s.items[item.VariantID] = &item
		s.order = append(s.order, item.VariantID)
	}
	s.updatedAt = updatedAt
}

// Add inserts a variant or tops up the quantity of an existing line item.
// Quantities that would exceed the per-item cap clamp to it. Wishlist adds
// are membership-only: quantity is pinned at 1 and re-adding is a no-op.
func (s *Store) Add(variantID uuid.UUID, quantity int, price PriceSnapshot) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if s.kind == enums.CollectionKindWishlist {
		quantity = 1
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	s.mu.Lock()
	existing, ok := s.items[variantID]
	if ok {
		if s.kind == enums.CollectionKindWishlist {
			s.mu.Unlock()
			return nil
		}
		qty := existing.Quantity + quantity
		if qty > MaxItemQuantity {
			qty = MaxItemQuantity
		}
		existing.Quantity = qty
		existing.Price = price
	} else {
		if quantity > MaxItemQuantity {
			quantity = MaxItemQuantity
		}
		item := LineItem{VariantID: variantID, Quantity: quantity, Price: price}
		s.items[variantID] = &item
		s.order = append(s.order, variantID)
	}
	s.updatedAt = time.Now().UTC()
	hook := s.onMutate
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// UpdateQuantity sets an existing line item's quantity to an exact value.
// Unlike Add, a value outside [1, MaxItemQuantity] is rejected rather than
// clamped: the caller asked for a specific state and silently storing a
// different one would mislead them.
func (s *Store) UpdateQuantity(variantID uuid.UUID, quantity int) error {
	if s.kind == enums.CollectionKindWishlist {
		return pkgerrors.New(pkgerrors.CodeValidation, "wishlist items do not carry quantities")
	}
	if quantity < 1 || quantity > MaxItemQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between 1 and %d", MaxItemQuantity))
	}

	s.mu.Lock()
	existing, ok := s.items[variantID]
	if !ok {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant is not in the collection")
	}
	existing.Quantity = quantity
	s.updatedAt = time.Now().UTC()
	hook := s.onMutate
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// Remove deletes a line item. Removing an absent variant is a no-op so
// double-taps and replayed requests converge on the same state.
func (s *Store) Remove(variantID uuid.UUID) {
	s.mu.Lock()
	if _, ok := s.items[variantID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.items, variantID)
	for i, id := range s.order {
		if id == variantID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.updatedAt = time.Now().UTC()
	hook := s.onMutate
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Toggle flips wishlist membership for a variant and reports whether it was
// added. Carts reject it.
func (s *Store) Toggle(variantID uuid.UUID, price PriceSnapshot) (bool, error) {
	if s.kind != enums.CollectionKindWishlist {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "toggle applies to wishlists only")
	}
	if variantID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}

	s.mu.Lock()
	if _, ok := s.items[variantID]; ok {
		delete(s.items, variantID)
		for i, id := range s.order {
			if id == variantID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.updatedAt = time.Now().UTC()
		hook := s.onMutate
		s.mu.Unlock()
		if hook != nil {
			hook()
		}
		return false, nil
	}

	item := LineItem{VariantID: variantID, Quantity: 1, Price: price}
	s.items[variantID] = &item
	s.order = append(s.order, variantID)
	s.updatedAt = time.Now().UTC()
	hook := s.onMutate
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true, nil
}

// Clear empties the collection.
func (s *Store) Clear() {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	s.items = make(map[uuid.UUID]*LineItem)
	s.order = s.order[:0]
	s.updatedAt = time.Now().UTC()
	hook := s.onMutate
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Contains reports wishlist/cart membership for a variant.
func (s *Store) Contains(variantID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[variantID]
	return ok
}

// Items returns the line items in insertion order. The result is a deep
// copy; callers can hold it across further mutations.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

func (s *Store) itemsLocked() []LineItem {
	out := make([]LineItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return cloneItems(out)
}

// Snapshot captures the full collection state for a push. Snapshots never
// alias live state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		OwnerKey:  s.ownerKey,
		Kind:      s.kind,
		Items:     s.itemsLocked(),
		UpdatedAt: s.updatedAt,
	}
}

// Totals computes the aggregate quantity and price of the current state.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.itemsLocked())
}
