package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active API key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// Scope constants checked by the HTTP layer.
const (
	ScopeAdmin = "admin"
)

// Identity is the resolved owner of a validated API key. UserID attributes
// baskets and orders created through the key.
type Identity struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Scopes  []string
}

// HasScope reports whether the identity carries the given scope.
func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Identity, error)
}
