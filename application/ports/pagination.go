package ports

import (
	"collective-rides/domain/core/entities"
)

// Constants for pagination
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListOptions carries cursor pagination parameters
type ListOptions struct {
	Limit  int
	Cursor string
}

// EffectiveLimit clamps the requested limit to [1, MaxListLimit], defaulting to DefaultListLimit
func (o ListOptions) EffectiveLimit() int {
	return ClampLimit(o.Limit)
}

// ClampLimit applies the list limit rules to a raw value
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ClubListOptions filters club listings
type ClubListOptions struct {
	ListOptions
	Status entities.ClubStatus
}

// MemberListOptions filters a club's member listing
type MemberListOptions struct {
	ListOptions
	Role   entities.MembershipRole
	Status entities.MembershipStatus
}

// UserMembershipListOptions filters a user's memberships
type UserMembershipListOptions struct {
	ListOptions
	Status entities.MembershipStatus
}

// InvitationListOptions filters invitation listings
type InvitationListOptions struct {
	ListOptions
	Status entities.InvitationStatus
}

// Page is one page of a cursor-paginated listing.
// HasMore reports that the key range was not exhausted; with a status filter the
// next page can come back empty.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}
