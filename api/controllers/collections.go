package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/brightmarket/storefront-backend/api/middleware"
	"github.com/brightmarket/storefront-backend/internal/collection"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
)

type collectionItemResponse struct {
	VariantID          string           `json:"variant_id"`
	Quantity           int              `json:"quantity"`
	UnitPrice          decimal.Decimal  `json:"unit_price"`
	CompareAtUnitPrice *decimal.Decimal `json:"compare_at_unit_price,omitempty"`
	LineTotal          decimal.Decimal  `json:"line_total"`
}

type collectionResponse struct {
	Kind          string                   `json:"kind"`
	Items         []collectionItemResponse `json:"items"`
	TotalQuantity int                      `json:"total_quantity"`
	TotalPrice    decimal.Decimal          `json:"total_price"`
	SyncState     string                   `json:"sync_state"`
}

type syncResultResponse struct {
	SyncState string `json:"sync_state"`
	Attempts  int    `json:"attempts"`
}

func newCollectionResponse(session *collection.Session) collectionResponse {
	items := session.Items()
	totals := collection.ComputeTotals(items)

	out := collectionResponse{
		Kind:          session.Kind().String(),
		Items:         make([]collectionItemResponse, 0, len(items)),
		TotalQuantity: totals.TotalQuantity,
		TotalPrice:    totals.TotalPrice,
		SyncState:     session.State().String(),
	}
	for _, item := range items {
		unit := collection.CentsToDecimal(item.Price.CurrentCents)
		resp := collectionItemResponse{
			VariantID: item.VariantID.String(),
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if old := item.Price.CompareAtCents; old != nil {
			v := collection.CentsToDecimal(*old)
			resp.CompareAtUnitPrice = &v
		}
		out.Items = append(out.Items, resp)
	}
	return out
}

func newSyncResultResponse(result collection.SyncResult) syncResultResponse {
	return syncResultResponse{
		SyncState: result.State.String(),
		Attempts:  result.Attempts,
	}
}

// ownerKeyFor extracts the principal resolved by the middleware chain.
func ownerKeyFor(r *http.Request) (string, error) {
	ownerKey := middleware.OwnerKeyFromContext(r.Context())
	if ownerKey == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return ownerKey, nil
}
