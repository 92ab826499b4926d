package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/minhhieu1/electronic-store/internal/domain/auth"
)

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// IdentityFrom extracts the authenticated identity from the context.
// It panics when called outside the APIKeyAuth middleware: every route
// registered through Handler.Register sits behind it.
func IdentityFrom(ctx context.Context) *auth.Identity {
	id, ok := ctx.Value(identityKey{}).(*auth.Identity)
	if !ok {
		panic("handler: no identity in context")
	}
	return id
}

// APIKeyAuth authenticates requests via the api_key header: the key is
// HMAC-SHA256 hashed with the pepper, looked up, and compared in constant
// time to guard against timing side-channels.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("api_key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope gates a route on the authenticated identity carrying the
// given scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := r.Context().Value(identityKey{}).(*auth.Identity)
			if !ok || !id.HasScope(scope) {
				writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
