package identity

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/google/uuid"

	pkgerrors "github.com/brightmarket/storefront-backend/pkg/errors"
	"github.com/brightmarket/storefront-backend/pkg/redis"
)

// SessionManager issues and validates anonymous browse sessions. Tokens live
// in redis with a TTL; once a token expires, the collections keyed by it are
// unreachable and get cleaned up out of band.
type SessionManager struct {
	store redis.SessionStore
	ttl   time.Duration
}

// NewSessionManager builds a session manager over the provided store.
func NewSessionManager(store redis.SessionStore, ttl time.Duration) (*SessionManager, error) {
	if store == nil {
		return nil, errors.New("identity: session store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("identity: session ttl must be positive")
	}
	return &SessionManager{store: store, ttl: ttl}, nil
}

// Issue creates a fresh anonymous session and returns its token.
func (m *SessionManager) Issue(ctx context.Context) (string, error) {
	token := uuid.NewString()
	key := m.store.SessionKey(token)
	if err := m.store.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session failed")
	}
	return token, nil
}

// Validate checks that the token names a live session and refreshes its TTL
// so active visitors are not expired mid-browse.
func (m *SessionManager) Validate(ctx context.Context, token string) error {
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session token is required")
	}
	key := m.store.SessionKey(token)
	issued, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "session is expired or unknown")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read session failed")
	}
	if err := m.store.Set(ctx, key, issued, m.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh session failed")
	}
	return nil
}

// Revoke deletes the session. Used after a login folds the anonymous
// identity into an authenticated one.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Del(ctx, m.store.SessionKey(token)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session failed")
	}
	return nil
}
