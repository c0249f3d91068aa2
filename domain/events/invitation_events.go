package events

import (
	"time"

	"collective-rides/domain/core/entities"
)

// InvitationEvent carries an invitation after a lifecycle change.
// The token is never part of the payload.
type InvitationEvent struct {
	BaseEvent
	InvitationID   string                    `json:"invitation_id"`
	ClubID         string                    `json:"club_id"`
	Type           entities.InvitationType   `json:"type"`
	Email          string                    `json:"email,omitempty"`
	UserID         string                    `json:"user_id,omitempty"`
	Role           entities.MembershipRole   `json:"role"`
	Status         entities.InvitationStatus `json:"status"`
	InvitedBy      string                    `json:"invited_by"`
	ExpiresAt      time.Time                 `json:"expires_at"`
	DeliveryMethod entities.DeliveryMethod   `json:"delivery_method"`
	ActorID        string                    `json:"actor_id,omitempty"`
}

func newInvitationEvent(eventType string, inv *entities.Invitation, actorID string, timestamp time.Time) InvitationEvent {
	return InvitationEvent{
		BaseEvent:      newBase(inv.ID().String(), eventType, timestamp),
		InvitationID:   inv.ID().String(),
		ClubID:         inv.ClubID().String(),
		Type:           inv.Type(),
		Email:          inv.Email(),
		UserID:         inv.UserID(),
		Role:           inv.Role(),
		Status:         inv.Status(),
		InvitedBy:      inv.InvitedBy(),
		ExpiresAt:      inv.ExpiresAt(),
		DeliveryMethod: inv.DeliveryMethod(),
		ActorID:        actorID,
	}
}

// NewInvitationCreated is raised after an invitation is stored
func NewInvitationCreated(inv *entities.Invitation, timestamp time.Time) InvitationEvent {
	return newInvitationEvent(TypeInvitationCreated, inv, inv.InvitedBy(), timestamp)
}

// NewInvitationProcessed maps the invitation's terminal status to its event type
func NewInvitationProcessed(inv *entities.Invitation, actorID string, timestamp time.Time) InvitationEvent {
	eventType := TypeInvitationDeclined
	switch inv.Status() {
	case entities.InvitationStatusAccepted:
		eventType = TypeInvitationAccepted
	case entities.InvitationStatusCancelled:
		eventType = TypeInvitationCancelled
	case entities.InvitationStatusExpired:
		eventType = TypeInvitationExpired
	}
	return newInvitationEvent(eventType, inv, actorID, timestamp)
}
