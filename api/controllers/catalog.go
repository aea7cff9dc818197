package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/brightmarket/storefront-backend/api/responses"
	"github.com/brightmarket/storefront-backend/api/validators"
	"github.com/brightmarket/storefront-backend/internal/catalog"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

type productPricingResponse struct {
	ProductID   string           `json:"product_id"`
	Title       string           `json:"title"`
	MinPrice    *decimal.Decimal `json:"min_price,omitempty"`
	MaxOldPrice *decimal.Decimal `json:"max_old_price,omitempty"`
	HasDiscount bool             `json:"has_discount"`
}

// ProductPricing returns the price range summary of a product's active
// variants for listing surfaces.
func ProductPricing(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pricing, err := svc.ProductPricing(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, productPricingResponse{
			ProductID:   pricing.ProductID.String(),
			Title:       pricing.Title,
			MinPrice:    pricing.Summary.MinPrice,
			MaxOldPrice: pricing.Summary.MaxOldPrice,
			HasDiscount: pricing.Summary.HasDiscount,
		})
	}
}
