package common

import "context"

// Role names carried in access tokens.
const (
	RoleStaff   = "staff"
	RoleStudent = "student"
)

// Identity is the caller resolved by the authentication layer.
type Identity struct {
	Subject string
	Role    string
	RegNum  string
}

// IsStaff reports whether the caller acts on behalf of the mess office.
func (i Identity) IsStaff() bool { return i.Role == RoleStaff }

type ctxKey string

const identityKey ctxKey = "auth/identity"

// WithIdentity stores the authenticated caller on the provided context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the authenticated caller from the context if present.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityKey)
	if v == nil {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok && id.Subject != ""
}

// UserID returns the caller subject, used by logging and audit.
func UserID(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", false
	}
	return id.Subject, true
}
