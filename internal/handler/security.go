package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/auth"
)

// ErrInvalidAPIKey is returned for keys that do not match an active record.
var ErrInvalidAPIKey = errors.Wrap(apperr.ErrUnauthorized, "invalid api key")

// SecurityHandler authenticates requests via HMAC-SHA256 hashed API keys and
// attaches the resulting auth.Identity to the request context.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Middleware resolves the caller identity. Requests without a key proceed
// anonymously; requests with an unknown key are rejected with 401.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFrom(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := s.Identify(r.Context(), key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		zctx.From(r.Context()).Debug("Authenticated",
			zap.String("subject", id.Subject),
			zap.Bool("staff", id.Staff),
		)
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// Identify resolves an API key to the identity it grants.
func (s *SecurityHandler) Identify(ctx context.Context, key string) (auth.Identity, error) {
	hash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return auth.Identity{}, ErrInvalidAPIKey
		}
		return auth.Identity{}, errors.Wrap(err, "find api key")
	}

	// The lookup already matched on the hash; compare again in constant time
	// in case the repository returned a different row.
	if !auth.HashMatches(hash, info.KeyHash) {
		return auth.Identity{}, ErrInvalidAPIKey
	}
	return auth.IdentityFromKey(info), nil
}

// apiKeyFrom reads the key from the api_key header or a bearer token.
func apiKeyFrom(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("api_key")); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
