package collection

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightmarket/storefront-backend/pkg/enums"
)

// MaxItemQuantity caps the quantity of a single line item. Adds beyond the
// cap clamp; explicit quantity updates beyond it are rejected.
const MaxItemQuantity = 99

// PriceSnapshot is the price captured from the catalog at add-time. It is
// display data only and may go stale; checkout pricing re-derives from the
// catalog.
type PriceSnapshot struct {
	CurrentCents   int64
	CompareAtCents *int64
}

// LineItem is one product variant held in a cart or wishlist. Wishlist items
// are degenerate line items with quantity fixed at 1.
type LineItem struct {
	VariantID uuid.UUID
	Quantity  int
	Price     PriceSnapshot
}

// Snapshot is an immutable copy of a collection taken for pushing to the
// durable store. It never aliases the live local store.
type Snapshot struct {
	OwnerKey  string
	Kind      enums.CollectionKind
	Items     []LineItem
	UpdatedAt time.Time
}

// MergeItems combines an authenticated collection's items with an anonymous
// one's, keyed by variant id. Cart quantities sum, clamped at the per-item
// cap; wishlist membership is boolean so duplicates collapse. Authenticated
// items keep their position, anonymous-only items append in order.
func MergeItems(authenticated, anonymous []LineItem, kind enums.CollectionKind) []LineItem {
	merged := make([]LineItem, 0, len(authenticated)+len(anonymous))
	index := make(map[uuid.UUID]int, len(authenticated))

	for _, item := range authenticated {
		index[item.VariantID] = len(merged)
		merged = append(merged, item)
	}

	for _, item := range anonymous {
		pos, exists := index[item.VariantID]
		if !exists {
			index[item.VariantID] = len(merged)
			merged = append(merged, item)
			continue
		}
		if kind == enums.CollectionKindWishlist {
			continue
		}
		qty := merged[pos].Quantity + item.Quantity
		if qty > MaxItemQuantity {
			qty = MaxItemQuantity
		}
		merged[pos].Quantity = qty
	}

	if kind == enums.CollectionKindWishlist {
		for i := range merged {
			merged[i].Quantity = 1
		}
	}

	return merged
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	for i := range out {
		if src := items[i].Price.CompareAtCents; src != nil {
			v := *src
			out[i].Price.CompareAtCents = &v
		}
	}
	return out
}
