package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightmarket/storefront-backend/api/controllers"
	"github.com/brightmarket/storefront-backend/api/middleware"
	"github.com/brightmarket/storefront-backend/internal/catalog"
	"github.com/brightmarket/storefront-backend/internal/collection"
	"github.com/brightmarket/storefront-backend/internal/identity"
	"github.com/brightmarket/storefront-backend/pkg/config"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Cfg             *config.Config
	Logger          *logger.Logger
	Engine          *collection.Engine
	CatalogService  catalog.Service
	IdentityService identity.Service
	SessionManager  *identity.SessionManager
	HealthDeps      map[string]controllers.Pinger
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Cfg
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.HealthDeps))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", controllers.SessionCreate(params.SessionManager, logg))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", controllers.AuthRegister(params.IdentityService, logg))
			r.Post("/login", controllers.AuthLogin(params.IdentityService, logg))
		})

		r.Get("/products/{productID}/pricing", controllers.ProductPricing(params.CatalogService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Principal(cfg.JWT, params.SessionManager, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(params.Engine, logg))
				r.Delete("/", controllers.CartClear(params.Engine, logg))
				r.Post("/items", controllers.CartAddItem(params.Engine, params.CatalogService, logg))
				r.Patch("/items/{variantID}", controllers.CartUpdateItem(params.Engine, logg))
				r.Delete("/items/{variantID}", controllers.CartRemoveItem(params.Engine, logg))
				r.Post("/flush", controllers.CartFlush(params.Engine, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistGet(params.Engine, logg))
				r.Delete("/", controllers.WishlistClear(params.Engine, logg))
				r.Put("/items/{variantID}", controllers.WishlistToggle(params.Engine, params.CatalogService, logg))
				r.Delete("/items/{variantID}", controllers.WishlistRemoveItem(params.Engine, logg))
				r.Post("/flush", controllers.WishlistFlush(params.Engine, logg))
			})
		})
	})

	return r
}
