package controllers

import (
	"net/http"

	"github.com/brightmarket/storefront-backend/api/responses"
	"github.com/brightmarket/storefront-backend/api/validators"
	"github.com/brightmarket/storefront-backend/internal/catalog"
	"github.com/brightmarket/storefront-backend/internal/collection"
	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

func openWishlist(engine *collection.Engine, r *http.Request) (*collection.Session, error) {
	ownerKey, err := ownerKeyFor(r)
	if err != nil {
		return nil, err
	}
	return engine.Open(r.Context(), ownerKey, enums.CollectionKindWishlist)
}

// WishlistGet returns the principal's wishlist.
func WishlistGet(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := openWishlist(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCollectionResponse(session))
	}
}

type toggleResponse struct {
	Added      bool               `json:"added"`
	Collection collectionResponse `json:"collection"`
}

// WishlistToggle flips membership of a variant and reports which way it
// went.
func WishlistToggle(engine *collection.Engine, catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := catalogSvc.VariantPrice(r.Context(), variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := openWishlist(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		added, err := session.Toggle(variantID, price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toggleResponse{Added: added, Collection: newCollectionResponse(session)})
	}
}

// WishlistRemoveItem removes a variant from the wishlist.
func WishlistRemoveItem(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := openWishlist(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session.Remove(variantID)
		responses.WriteSuccess(w, newCollectionResponse(session))
	}
}

// WishlistClear empties the wishlist.
func WishlistClear(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := openWishlist(engine, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session.Clear()
		responses.WriteSuccess(w, newCollectionResponse(session))
	}
}

// WishlistFlush pushes the wishlist immediately and reports the outcome.
func WishlistFlush(engine *collection.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := openWishlist(engine, r)
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
