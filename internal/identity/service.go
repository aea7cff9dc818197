package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightmarket/storefront-backend/internal/collection"
	pkgauth "github.com/brightmarket/storefront-backend/pkg/auth"
	"github.com/brightmarket/storefront-backend/pkg/config"
	"github.com/brightmarket/storefront-backend/pkg/db/models"
	"github.com/brightmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/logger"
	"github.com/brightmarket/storefront-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
}

// RegisterRequest is the validated signup payload.
type RegisterRequest struct {
	Email    string
	Password string
	// SessionToken carries the visitor's anonymous session so their cart
	// and wishlist follow them into the new account.
	SessionToken string
}

// LoginRequest is the validated login payload.
type LoginRequest struct {
	Email        string
	Password     string
	SessionToken string
}

// AuthResponse is returned by both register and login.
type AuthResponse struct {
	AccessToken string
	UserID      uuid.UUID
	Email       string
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

type collectionTransitioner interface {
	Transition(ctx context.Context, anonKey, userKey string, kind enums.CollectionKind) (*collection.Snapshot, error)
}

type sessionRevoker interface {
	Revoke(ctx context.Context, token string) error
}

type service struct {
	users       userRepository
	collections collectionTransitioner
	sessions    sessionRevoker
	jwtCfg      config.JWTConfig
	passCfg     config.PasswordConfig
	logg        *logger.Logger
}

// ServiceParams bundles the dependencies required to build the identity
// service.
type ServiceParams struct {
	UserRepo       userRepository
	Collections    collectionTransitioner
	SessionManager sessionRevoker
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

// NewService constructs the identity service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Collections == nil {
		return nil, fmt.Errorf("collection transitioner is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		users:       params.UserRepo,
		collections: params.Collections,
		sessions:    params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passCfg:     params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	hash, err := security.HashPassword(req.Password, s.passCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, &models.User{Email: req.Email, PasswordHash: hash})
	if err != nil {
		return nil, err
	}

	return s.finishAuth(ctx, user, req.SessionToken)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	return s.finishAuth(ctx, user, req.SessionToken)
}

// finishAuth mints the token and, when the caller arrived with an anonymous
// session, folds its cart and wishlist into the account. A merge failure
// fails the whole request: replace pushes are idempotent, so the client
// retries the login and nothing is lost.
func (s *service) finishAuth(ctx context.Context, user *models.User, sessionToken string) (*AuthResponse, error) {
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	if sessionToken != "" {
		anonKey := OwnerKeyForSession(sessionToken)
		userKey := OwnerKeyForUser(user.ID)
		for _, kind := range []enums.CollectionKind{enums.CollectionKindCart, enums.CollectionKindWishlist} {
			if _, err := s.collections.Transition(ctx, anonKey, userKey, kind); err != nil {
				return nil, err
			}
		}
		if err := s.sessions.Revoke(ctx, sessionToken); err != nil {
			// The token expires on its own; losing the eager revoke
			// is not worth failing the login.
			s.logg.Warn(ctx, "failed to revoke anonymous session after merge")
		}
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &AuthResponse{
		AccessToken: token,
		UserID:      user.ID,
		Email:       user.Email,
	}, nil
}
