package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/brightmarket/storefront-backend/api/responses"
	"github.com/brightmarket/storefront-backend/internal/identity"
	pkgauth "github.com/brightmarket/storefront-backend/pkg/auth"
	"github.com/brightmarket/storefront-backend/pkg/config"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

const sessionTokenHeader = "X-Session-Token"

// SessionValidator checks anonymous session tokens.
type SessionValidator interface {
	Validate(ctx context.Context, token string) error
}

// Principal resolves who owns the collections this request operates on. A
// bearer token names an authenticated user; failing that, a session token
// header names an anonymous visitor. Requests with neither are rejected.
func Principal(cfg config.JWTConfig, sessions SessionValidator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				claims, err := pkgauth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				ownerKey := identity.OwnerKeyForUser(claims.UserID)
				ctx := WithOwnerKey(r.Context(), ownerKey)
				ctx = WithUserID(ctx, claims.UserID.String())
				if logg != nil {
					ctx = logg.WithUserID(ctx, claims.UserID.String())
					ctx = logg.WithOwnerKey(ctx, ownerKey)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if token := strings.TrimSpace(r.Header.Get(sessionTokenHeader)); token != "" {
				if sessions != nil {
					if err := sessions.Validate(r.Context(), token); err != nil {
						responses.WriteError(r.Context(), logg, w, err)
						return
					}
				}

				ownerKey := identity.OwnerKeyForSession(token)
				ctx := WithOwnerKey(r.Context(), ownerKey)
				ctx = WithSessionToken(ctx, token)
				if logg != nil {
					ctx = logg.WithOwnerKey(ctx, ownerKey)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
