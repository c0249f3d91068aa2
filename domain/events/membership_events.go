package events

import (
	"time"

	"collective-rides/domain/core/entities"
)

// MembershipEvent carries the state of a membership after a lifecycle change
type MembershipEvent struct {
	BaseEvent
	MembershipID string                    `json:"membership_id"`
	ClubID       string                    `json:"club_id"`
	UserID       string                    `json:"user_id"`
	Role         entities.MembershipRole   `json:"role"`
	Status       entities.MembershipStatus `json:"status"`
	ActorID      string                    `json:"actor_id,omitempty"`
	Reason       string                    `json:"reason,omitempty"`
}

func newMembershipEvent(eventType string, m *entities.Membership, actorID string, timestamp time.Time) MembershipEvent {
	return MembershipEvent{
		BaseEvent:    newBase(m.ClubID().String()+"#"+m.UserID(), eventType, timestamp),
		MembershipID: m.ID().String(),
		ClubID:       m.ClubID().String(),
		UserID:       m.UserID(),
		Role:         m.Role(),
		Status:       m.Status(),
		ActorID:      actorID,
		Reason:       m.Reason(),
	}
}

// NewMembershipRequested is raised when a user asks to join a club
func NewMembershipRequested(m *entities.Membership, timestamp time.Time) MembershipEvent {
	return newMembershipEvent(TypeMembershipRequested, m, m.UserID(), timestamp)
}

// NewMembershipActivated is raised when a membership becomes active
func NewMembershipActivated(m *entities.Membership, actorID string, timestamp time.Time) MembershipEvent {
	return newMembershipEvent(TypeMembershipActivated, m, actorID, timestamp)
}

// NewMembershipSuspended is raised when an active member is suspended
func NewMembershipSuspended(m *entities.Membership, actorID string, timestamp time.Time) MembershipEvent {
	return newMembershipEvent(TypeMembershipSuspended, m, actorID, timestamp)
}

// NewMembershipRemoved is raised on leave, rejection or removal
func NewMembershipRemoved(m *entities.Membership, actorID string, timestamp time.Time) MembershipEvent {
	return newMembershipEvent(TypeMembershipRemoved, m, actorID, timestamp)
}

// MembershipRoleChanged records both sides of a role change
type MembershipRoleChanged struct {
	MembershipEvent
	OldRole entities.MembershipRole `json:"old_role"`
}

// NewMembershipRoleChanged creates a MembershipRoleChanged event
func NewMembershipRoleChanged(m *entities.Membership, oldRole entities.MembershipRole, actorID string, timestamp time.Time) MembershipRoleChanged {
	return MembershipRoleChanged{
		MembershipEvent: newMembershipEvent(TypeMembershipRoleChanged, m, actorID, timestamp),
		OldRole:         oldRole,
	}
}
