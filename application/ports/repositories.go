package ports

import (
	"context"
	"time"

	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/domain/events"
)

// ClubRepository defines club persistence.
// Reads return (nil, nil) when the club does not exist.
type ClubRepository interface {
	// Create stores the club, its name index item and, when owner is non-nil, the owner
	// membership in one transaction. A name index collision returns ErrConflict.
	Create(ctx context.Context, club *entities.Club, owner *entities.Membership) error

	// GetByID retrieves a club by its ID
	GetByID(ctx context.Context, id valueobjects.ClubID) (*entities.Club, error)

	// FindByName looks a club up by its normalized name
	FindByName(ctx context.Context, name string) (*entities.Club, error)

	// Update persists after, moving the name index item if the normalized name changed.
	// Returns ErrNotFound if the club is missing and ErrConflict if the new name is taken.
	Update(ctx context.Context, before, after *entities.Club) error

	// List pages through clubs ordered by normalized name
	List(ctx context.Context, opts ClubListOptions) (Page[*entities.Club], error)
}

// MembershipRepository defines membership persistence keyed by (clubID, userID)
type MembershipRepository interface {
	// Create stores a new membership and its index items. A live membership for the same
	// pair returns the stored row together with ErrConflict; a retry of the same membership
	// returns the stored row and no error.
	Create(ctx context.Context, membership *entities.Membership) (*entities.Membership, error)

	// Get returns the membership for the pair, or nil
	Get(ctx context.Context, clubID valueobjects.ClubID, userID string) (*entities.Membership, error)

	// Update writes after and both index items in one transaction, guarded on before's
	// status and role. Returns ErrConflict when the stored row moved underneath.
	Update(ctx context.Context, before, after *entities.Membership) error

	// ListByClub pages through a club's members ordered by role then user
	ListByClub(ctx context.Context, clubID valueobjects.ClubID, opts MemberListOptions) (Page[*entities.Membership], error)

	// ListByUser pages through a user's memberships ordered by club
	ListByUser(ctx context.Context, userID string, opts UserMembershipListOptions) (Page[*entities.Membership], error)
}

// InvitationRepository defines invitation persistence
type InvitationRepository interface {
	// Create stores the invitation with its invitee, club and expiry index items
	Create(ctx context.Context, invitation *entities.Invitation) error

	// GetByID returns the invitation, or nil
	GetByID(ctx context.Context, id valueobjects.InvitationID) (*entities.Invitation, error)

	// Update persists a status change and moves the index items with it
	Update(ctx context.Context, before, after *entities.Invitation) error

	// Accept persists an accepted invitation and the membership it grants in one write.
	// replaced is the stored membership the new one overwrites (a pending request or a
	// removed membership), or nil when the user has none in the club.
	Accept(ctx context.Context, before, after *entities.Invitation, membership, replaced *entities.Membership) error

	// ListByInvitee pages through invitations addressed to a user id or an email
	ListByInvitee(ctx context.Context, invitee Invitee, opts InvitationListOptions) (Page[*entities.Invitation], error)

	// ListByClub pages through a club's invitations, optionally by status
	ListByClub(ctx context.Context, clubID valueobjects.ClubID, opts InvitationListOptions) (Page[*entities.Invitation], error)

	// HasPendingInvitation reports whether an unexpired pending invitation exists for invitee
	HasPendingInvitation(ctx context.Context, clubID valueobjects.ClubID, invitee string, now time.Time) (bool, error)

	// ListExpiredPending returns up to limit pending invitations whose expiry is before now
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.Invitation, error)
}

// Invitee addresses an invitation either by user id or by email
type Invitee struct {
	UserID string
	Email  string
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
