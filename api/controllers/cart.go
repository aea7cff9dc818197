package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/brightmarket/storefront-backend/api/responses"
	"github.com/brightmarket/storefront-backend/api/validators"
	"github.com/brightmarket/storefront-backend/internal/catalog"
	"github.com/brightmarket/storefront-backend/internal/collection"
	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

type addItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

func openCart(engine *collection.Engine, r *http.Request) (*collection.Session, error) {
	ownerKey, err := ownerKeyFor(r)
	if err != nil {
		return nil, err
	}
	return engine.Open(r.Context(), ownerKey, enums.CollectionKindCart)
}

// CartGet returns the principal's cart.
func CartGet(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := openCart(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCollectionResponse(session))
	}
}

// CartAddItem adds a variant to the cart, capturing its current catalog
// price. The mutation applies locally and returns immediately; the push to
// the durable store happens in the background.
func CartAddItem(engine *collection.Engine, catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := catalogSvc.VariantPrice(r.Context(), payload.VariantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := openCart(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := session.Add(payload.VariantID, payload.Quantity, price); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCollectionResponse(session))
	}
}

// CartUpdateItem sets an exact quantity for an item already in the cart.
func CartUpdateItem(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := openCart(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := session.UpdateQuantity(variantID, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCollectionResponse(session))
	}
}

// CartRemoveItem removes a variant. Removing an absent variant succeeds.
func CartRemoveItem(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := openCart(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session.Remove(variantID)
		responses.WriteSuccess(w, newCollectionResponse(session))
	}
}

// CartClear empties the cart.
func CartClear(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := openCart(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session.Clear()
		responses.WriteSuccess(w, newCollectionResponse(session))
	}
}

// CartFlush pushes the cart immediately and reports the outcome. Clients
// call it before navigation events that must observe a durable cart.
func CartFlush(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := openCart(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := session.Flush(r.Context())
		if err != nil {
			if result.Err != nil {
				err = result.Err
			} else {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flush failed")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSyncResultResponse(result))
	}
}
