package identity

import (
	"strings"

	"github.com/google/uuid"
)

// Owner keys name the principal a collection belongs to. Anonymous visitors
// are keyed by their session token, authenticated customers by user id; the
// prefix keeps the two namespaces from ever colliding.
const (
	anonPrefix = "sess:"
	userPrefix = "user:"
)

// OwnerKeyForSession returns the owner key for an anonymous session token.
func OwnerKeyForSession(token string) string {
	return anonPrefix + token
}

// OwnerKeyForUser returns the owner key for an authenticated user.
func OwnerKeyForUser(userID uuid.UUID) string {
	return userPrefix + userID.String()
}

// IsAnonymousKey reports whether the owner key names an anonymous session.
func IsAnonymousKey(ownerKey string) bool {
	return strings.HasPrefix(ownerKey, anonPrefix)
}
