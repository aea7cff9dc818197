package controllers

import (
	"context"
	"net/http"

	"github.com/brightmarket/storefront-backend/api/responses"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

// SessionIssuer mints anonymous browse sessions.
type SessionIssuer interface {
	Issue(ctx context.Context) (string, error)
}

type sessionResponse struct {
	SessionToken string `json:"session_token"`
}

// SessionCreate issues a fresh anonymous session token. Storefront clients
// call this once on first visit and send the token on every request until
// they authenticate.
func SessionCreate(sessions SessionIssuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := sessions.Issue(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{SessionToken: token})
	}
}
