package controllers

import (
	"net/http"
	"strings"

	"github.com/brightmarket/storefront-backend/api/responses"
	"github.com/brightmarket/storefront-backend/api/validators"
	"github.com/brightmarket/storefront-backend/internal/identity"
	"github.com/brightmarket/storefront-backend/pkg/logger"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
}

// AuthRegister creates an account. A session token header carries the
// visitor's anonymous cart and wishlist into the new account.
func AuthRegister(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Register(r.Context(), identity.RegisterRequest{
			Email:        payload.Email,
			Password:     payload.Password,
			SessionToken: sessionTokenFromHeader(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAuthResponse(resp))
	}
}

// AuthLogin authenticates a customer and folds any anonymous collections
// into their account.
func AuthLogin(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Login(r.Context(), identity.LoginRequest{
			Email:        payload.Email,
			Password:     payload.Password,
			SessionToken: sessionTokenFromHeader(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAuthResponse(resp))
	}
}

func newAuthResponse(resp *identity.AuthResponse) authResponse {
	return authResponse{
		AccessToken: resp.AccessToken,
		UserID:      resp.UserID.String(),
		Email:       resp.Email,
	}
}

func sessionTokenFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Session-Token"))
}
