package authorization

// AuthContext is the resolved caller identity. Token parsing happens before this point.
type AuthContext struct {
	UserID          string
	Email           string
	EmailVerified   bool
	SystemRole      SystemRole
	IsAuthenticated bool
}

// NewAuthContext builds an authenticated context; unknown system roles fall back to User
func NewAuthContext(userID, email string, role SystemRole) AuthContext {
	if !role.IsValid() {
		role = SystemRoleUser
	}
	return AuthContext{
		UserID:          userID,
		Email:           email,
		SystemRole:      role,
		IsAuthenticated: userID != "",
	}
}

// WithVerifiedEmail marks the caller's email as verified by the identity provider
func (a AuthContext) WithVerifiedEmail(verified bool) AuthContext {
	a.EmailVerified = verified && a.Email != ""
	return a
}

// IsSiteAdmin reports whether the caller holds the SiteAdmin system role
func (a AuthContext) IsSiteAdmin() bool {
	return a.SystemRole == SystemRoleSiteAdmin
}
