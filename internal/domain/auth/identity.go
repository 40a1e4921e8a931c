package auth

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/venue-orders/internal/domain/apperr"
)

var (
	// ErrKeyNotFound is returned by Repository for unknown key hashes.
	ErrKeyNotFound = errors.Wrap(apperr.ErrUnauthorized, "api key not found")
	// ErrStaffOnly is returned when a non-staff caller hits a staff operation.
	ErrStaffOnly = errors.Wrap(apperr.ErrForbidden, "staff access required")
)

// Identity is the caller of a request. The zero value is an anonymous,
// non-privileged caller.
type Identity struct {
	Subject string
	Staff   bool
}

// IdentityFromKey builds the Identity granted by an API key.
func IdentityFromKey(k *APIKeyInfo) Identity {
	return Identity{
		Subject: k.Name,
		Staff:   k.HasScope(ScopeStaff),
	}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller identity, anonymous if none was set.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// RequireStaff fails with ErrStaffOnly unless the caller is staff.
func RequireStaff(ctx context.Context) error {
	if !FromContext(ctx).Staff {
		return ErrStaffOnly
	}
	return nil
}
