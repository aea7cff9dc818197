package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightmarket/storefront-backend/internal/catalog"
	"github.com/brightmarket/storefront-backend/internal/collection"
	"github.com/brightmarket/storefront-backend/internal/identity"
	"github.com/brightmarket/storefront-backend/pkg/config"
	"github.com/brightmarket/storefront-backend/pkg/db/models"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

// memSessionStore stands in for Redis so the router test stays
// self-contained.
type memSessionStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{values: make(map[string]string)}
}

func (s *memSessionStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = fmt.Sprint(value)
	return nil
}

func (s *memSessionStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (s *memSessionStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *memSessionStore) SessionKey(sessionID string) string {
	return "bm:session:" + sessionID
}

func setupRouterTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  tags TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  compare_at_price_cents INTEGER,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS collections (
  id TEXT PRIMARY KEY,
  owner_key TEXT NOT NULL,
  kind TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (owner_key, kind)
);`,
		`CREATE TABLE IF NOT EXISTS collection_items (
  id TEXT PRIMARY KEY,
  collection_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  compare_at_unit_price_cents INTEGER,
  created_at DATETIME,
  UNIQUE (collection_id, variant_id)
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func routerTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", LogLevel: "error"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "brightmarket-test", ExpirationMinutes: 5},
		Password: config.PasswordConfig{
			ArgonMemoryKB:    8,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     8,
			ArgonKeyLen:      16,
		},
		Session: config.SessionConfig{AnonymousTTL: time.Hour},
		Sync: config.SyncConfig{
			Debounce:          time.Millisecond,
			PushMaxAttempts:   2,
			PushBaseBackoff:   time.Millisecond,
			PushMaxBackoff:    5 * time.Millisecond,
			InsertMaxAttempts: 2,
			InsertBaseBackoff: time.Millisecond,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

type routerFixture struct {
	handler http.Handler
	db      *gorm.DB
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	cfg := routerTestConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	db := setupRouterTestDB(t)

	engine, err := collection.NewEngine(collection.EngineParams{
		Durable: collection.NewRepository(db),
		Cfg:     cfg.Sync,
		Logger:  logg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Shutdown(context.Background()) })

	catalogSvc, err := catalog.NewService(catalog.NewRepository(db))
	require.NoError(t, err)

	sessions, err := identity.NewSessionManager(newMemSessionStore(), cfg.Session.AnonymousTTL)
	require.NoError(t, err)

	identitySvc, err := identity.NewService(identity.ServiceParams{
		UserRepo:       identity.NewUserRepository(db),
		Collections:    engine,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	require.NoError(t, err)

	handler := NewRouter(RouterParams{
		Cfg:             cfg,
		Logger:          logg,
		Engine:          engine,
		CatalogService:  catalogSvc,
		IdentityService: identitySvc,
		SessionManager:  sessions,
	})
	return &routerFixture{handler: handler, db: db}
}

func (f *routerFixture) seedVariant(t *testing.T, priceCents int64, compareAt *int64) uuid.UUID {
	t.Helper()

	product := &models.Product{Slug: "prod-" + uuid.NewString(), Title: "Test Product", IsActive: true}
	require.NoError(t, f.db.Omit("Tags", "Variants").Create(product).Error)

	variant := &models.ProductVariant{
		ProductID:           product.ID,
		SKU:                 uuid.NewString(),
		Title:               "Test Variant",
		PriceCents:          priceCents,
		CompareAtPriceCents: compareAt,
		IsActive:            true,
	}
	require.NoError(t, f.db.Create(variant).Error)
	return variant.ID
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func routerDecodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestRouterHealthAndMetrics(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	rec := f.do(t, http.MethodGet, "/health/live", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-BrightMarket-Env"))

	rec = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRejectsUnauthenticatedCart(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// The storefront's browse-then-register journey end to end: an anonymous
// visitor fills a cart under a session token, registers, and finds the same
// cart under their user account.
func TestRouterAnonymousToRegisteredJourney(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	compareAt := int64(2500)
	variantID := f.seedVariant(t, 1999, &compareAt)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session struct {
		SessionToken string `json:"session_token"`
	}
	routerDecodeData(t, rec, &session)
	require.NotEmpty(t, session.SessionToken)
	anonHeaders := map[string]string{"X-Session-Token": session.SessionToken}

	rec = f.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"variant_id": variantID, "quantity": 2}, anonHeaders)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/v1/wishlist/items/"+variantID.String(), nil, anonHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":    "shopper@example.com",
		"password": "hunter2hunter2",
	}, anonHeaders)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var auth struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
		Email       string `json:"email"`
	}
	routerDecodeData(t, rec, &auth)
	require.NotEmpty(t, auth.AccessToken)
	require.Equal(t, "shopper@example.com", auth.Email)

	userHeaders := map[string]string{"Authorization": "Bearer " + auth.AccessToken}
	rec = f.do(t, http.MethodGet, "/api/v1/cart", nil, userHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cart struct {
		Items []struct {
			VariantID string `json:"variant_id"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
		TotalQuantity int `json:"total_quantity"`
	}
	routerDecodeData(t, rec, &cart)
	require.Len(t, cart.Items, 1)
	require.Equal(t, variantID.String(), cart.Items[0].VariantID)
	require.Equal(t, 2, cart.Items[0].Quantity)

	rec = f.do(t, http.MethodGet, "/api/v1/wishlist", nil, userHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	routerDecodeData(t, rec, &cart)
	require.Len(t, cart.Items, 1)

	// The anonymous session was revoked during registration.
	rec = f.do(t, http.MethodGet, "/api/v1/cart", nil, anonHeaders)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterProductPricing(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	compareAt := int64(6000)
	f.seedVariant(t, 4500, &compareAt)

	product := &models.Product{Slug: "prod-" + uuid.NewString(), Title: "Priced Product", IsActive: true}
	require.NoError(t, f.db.Omit("Tags", "Variants").Create(product).Error)
	variant := &models.ProductVariant{
		ProductID:           product.ID,
		SKU:                 uuid.NewString(),
		Title:               "Priced Variant",
		PriceCents:          3999,
		CompareAtPriceCents: &compareAt,
		IsActive:            true,
	}
	require.NoError(t, f.db.Create(variant).Error)

	rec := f.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/pricing", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pricing struct {
		ProductID   string  `json:"product_id"`
		MinPrice    *string `json:"min_price"`
		MaxOldPrice *string `json:"max_old_price"`
		HasDiscount bool    `json:"has_discount"`
	}
	routerDecodeData(t, rec, &pricing)
	require.Equal(t, product.ID.String(), pricing.ProductID)
	require.NotNil(t, pricing.MinPrice)
	require.Equal(t, "39.99", *pricing.MinPrice)
	require.True(t, pricing.HasDiscount)
}
