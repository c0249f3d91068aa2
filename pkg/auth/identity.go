package auth

import (
	"context"
	"strings"
)

// System role names as they appear in tokens
const (
	RoleUser      = "User"
	RoleSiteAdmin = "SiteAdmin"
)

// Identity is the authenticated caller as read from a token
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
	SystemRole    string
}

// IdentityFromClaims maps API Gateway JWT authorizer claims. HTTP APIs flatten every
// claim to a string, so cognito:groups arrives as "[SiteAdmin Riders]".
func IdentityFromClaims(claims map[string]string) (Identity, bool) {
	sub := claims["sub"]
	if sub == "" {
		return Identity{}, false
	}
	return Identity{
		UserID:        sub,
		Email:         claims["email"],
		EmailVerified: strings.EqualFold(claims["email_verified"], "true"),
		SystemRole:    resolveSystemRole(claims["custom:system_role"], parseGroups(claims["cognito:groups"])),
	}, true
}

// resolveSystemRole prefers the explicit claim, then group membership
func resolveSystemRole(explicit string, groups []string) string {
	if strings.EqualFold(explicit, RoleSiteAdmin) {
		return RoleSiteAdmin
	}
	for _, group := range groups {
		if strings.EqualFold(group, RoleSiteAdmin) {
			return RoleSiteAdmin
		}
	}
	return RoleUser
}

func parseGroups(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '"'
	})
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the caller identity in ctx
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity stored by WithIdentity
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok && identity.UserID != ""
}
