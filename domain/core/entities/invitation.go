package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/utils"
)

// InvitationType distinguishes invitations addressed by email from those addressed to a known user
type InvitationType string

const (
	InvitationTypeEmail InvitationType = "email"
	InvitationTypeUser  InvitationType = "user"
)

// InvitationStatus is the lifecycle state of an invitation
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusDeclined  InvitationStatus = "declined"
	InvitationStatusExpired   InvitationStatus = "expired"
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// DeliveryMethod is how the invitee is notified
type DeliveryMethod string

const (
	DeliveryEmail DeliveryMethod = "email"
	DeliveryInApp DeliveryMethod = "in_app"
)

// InvitationAction is an invitee's response
type InvitationAction string

const (
	InvitationActionAccept  InvitationAction = "accept"
	InvitationActionDecline InvitationAction = "decline"
)

// Invitation expiry bounds
const (
	DefaultInvitationExpiryDays = 7
	MaxInvitationExpiryDays     = 30
	MaxInvitationMessageLength  = 500
)

// IsValid reports whether s is a known invitation status
func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusDeclined,
		InvitationStatusExpired, InvitationStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s InvitationStatus) IsTerminal() bool {
	return s != InvitationStatusPending
}

// Invitation offers a club role to an email address or a user
type Invitation struct {
	id             valueobjects.InvitationID
	invType        InvitationType
	clubID         valueobjects.ClubID
	email          string
	userID         string
	role           MembershipRole
	status         InvitationStatus
	invitedBy      string
	invitedAt      time.Time
	expiresAt      time.Time
	processedAt    *time.Time
	message        string
	token          string
	deliveryMethod DeliveryMethod
}

// NewInvitationInput describes an invitation to create
type NewInvitationInput struct {
	Type           InvitationType
	ClubID         valueobjects.ClubID
	Email          string
	UserID         string
	Role           MembershipRole // defaults to member
	InvitedBy      string
	Message        string
	ExpiresAt      *time.Time // defaults to now + 7 days
	DeliveryMethod DeliveryMethod
}

// InvitationSnapshot is the persisted form of an invitation
type InvitationSnapshot struct {
	ID             string
	Type           InvitationType
	ClubID         string
	Email          string
	UserID         string
	Role           MembershipRole
	Status         InvitationStatus
	InvitedBy      string
	InvitedAt      time.Time
	ExpiresAt      time.Time
	ProcessedAt    *time.Time
	Message        string
	Token          string
	DeliveryMethod DeliveryMethod
}

// NewInvitation validates input and creates a pending invitation
func NewInvitation(input NewInvitationInput, now time.Time) (*Invitation, error) {
	inv := &Invitation{
		id:             valueobjects.NewInvitationID(),
		invType:        input.Type,
		clubID:         input.ClubID,
		email:          strings.ToLower(strings.TrimSpace(input.Email)),
		userID:         strings.TrimSpace(input.UserID),
		role:           input.Role,
		status:         InvitationStatusPending,
		invitedBy:      input.InvitedBy,
		invitedAt:      now,
		expiresAt:      now.AddDate(0, 0, DefaultInvitationExpiryDays),
		message:        strings.TrimSpace(input.Message),
		deliveryMethod: input.DeliveryMethod,
	}
	if inv.role == "" {
		inv.role = RoleMember
	}
	if input.ExpiresAt != nil {
		inv.expiresAt = *input.ExpiresAt
		if !inv.expiresAt.After(now) {
			return nil, pkgerrors.NewValidationError("invitation expiry must be in the future")
		}
	}

	switch inv.invType {
	case InvitationTypeEmail:
		inv.token = valueobjects.NewInvitationToken()
		inv.userID = ""
		if inv.deliveryMethod == "" {
			inv.deliveryMethod = DeliveryEmail
		}
	case InvitationTypeUser:
		inv.email = ""
		if inv.deliveryMethod == "" {
			inv.deliveryMethod = DeliveryInApp
		}
	}

	if err := inv.validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// ReconstructInvitation rebuilds an invitation from storage
func ReconstructInvitation(s InvitationSnapshot) (*Invitation, error) {
	clubID, err := valueobjects.ParseClubID(s.ClubID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid club id: " + err.Error())
	}
	inv := &Invitation{
		id:             valueobjects.InvitationID(s.ID),
		invType:        s.Type,
		clubID:         clubID,
		email:          s.Email,
		userID:         s.UserID,
		role:           s.Role,
		status:         s.Status,
		invitedBy:      s.InvitedBy,
		invitedAt:      s.InvitedAt,
		expiresAt:      s.ExpiresAt,
		processedAt:    s.ProcessedAt,
		message:        s.Message,
		token:          s.Token,
		deliveryMethod: s.DeliveryMethod,
	}
	if err := inv.validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (i *Invitation) ID() valueobjects.InvitationID  { return i.id }
func (i *Invitation) Type() InvitationType           { return i.invType }
func (i *Invitation) ClubID() valueobjects.ClubID    { return i.clubID }
func (i *Invitation) Email() string                  { return i.email }
func (i *Invitation) UserID() string                 { return i.userID }
func (i *Invitation) Role() MembershipRole           { return i.role }
func (i *Invitation) Status() InvitationStatus       { return i.status }
func (i *Invitation) InvitedBy() string              { return i.invitedBy }
func (i *Invitation) InvitedAt() time.Time           { return i.invitedAt }
func (i *Invitation) ExpiresAt() time.Time           { return i.expiresAt }
func (i *Invitation) Message() string                { return i.message }
func (i *Invitation) Token() string                  { return i.token }
func (i *Invitation) DeliveryMethod() DeliveryMethod { return i.deliveryMethod }

// ProcessedAt returns when the invitation reached a terminal state
func (i *Invitation) ProcessedAt() *time.Time {
	if i.processedAt == nil {
		return nil
	}
	t := *i.processedAt
	return &t
}

// IsExpired is true when the invitation is stored as expired, or is still pending past its expiry.
func (i *Invitation) IsExpired(now time.Time) bool {
	if i.status == InvitationStatusExpired {
		return true
	}
	return i.status == InvitationStatusPending && now.After(i.expiresAt)
}

// IsPending is true only for pending invitations that have not lapsed
func (i *Invitation) IsPending(now time.Time) bool {
	return i.status == InvitationStatusPending && !i.IsExpired(now)
}

// Invitee returns the email or user id the invitation is addressed to
func (i *Invitation) Invitee() string {
	if i.invType == InvitationTypeEmail {
		return i.email
	}
	return i.userID
}

// Snapshot exports the invitation for persistence
func (i *Invitation) Snapshot() InvitationSnapshot {
	return InvitationSnapshot{
		ID:             i.id.String(),
		Type:           i.invType,
		ClubID:         i.clubID.String(),
		Email:          i.email,
		UserID:         i.userID,
		Role:           i.role,
		Status:         i.status,
		InvitedBy:      i.invitedBy,
		InvitedAt:      i.invitedAt,
		ExpiresAt:      i.expiresAt,
		ProcessedAt:    i.ProcessedAt(),
		Message:        i.message,
		Token:          i.token,
		DeliveryMethod: i.deliveryMethod,
	}
}

// Process applies the invitee's response. Accepting binds the invitation to userID.
func (i *Invitation) Process(action InvitationAction, userID string, now time.Time) (*Invitation, error) {
	switch action {
	case InvitationActionAccept:
		return i.Accept(userID, now)
	case InvitationActionDecline:
		return i.Decline(now)
	default:
		return nil, pkgerrors.NewValidationErrorf("invalid invitation action %q", action)
	}
}

// Accept accepts a pending, unexpired invitation
func (i *Invitation) Accept(userID string, now time.Time) (*Invitation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.NewValidationError("accepting user id is required")
	}
	next, err := i.transition(InvitationStatusAccepted, now)
	if err != nil {
		return nil, err
	}
	next.userID = userID
	return next, nil
}

// Decline declines a pending, unexpired invitation
func (i *Invitation) Decline(now time.Time) (*Invitation, error) {
	return i.transition(InvitationStatusDeclined, now)
}

// Cancel withdraws a pending invitation
func (i *Invitation) Cancel(now time.Time) (*Invitation, error) {
	return i.transition(InvitationStatusCancelled, now)
}

// Expire marks a lapsed pending invitation as expired
func (i *Invitation) Expire(now time.Time) (*Invitation, error) {
	if i.status != InvitationStatusPending {
		return nil, pkgerrors.NewValidationErrorf("cannot expire invitation in status %s", i.status)
	}
	if !now.After(i.expiresAt) {
		return nil, pkgerrors.NewValidationError("invitation has not reached its expiry")
	}
	next := *i
	processedAt := now
	next.status = InvitationStatusExpired
	next.processedAt = &processedAt
	return &next, nil
}

func (i *Invitation) transition(status InvitationStatus, now time.Time) (*Invitation, error) {
	if i.status != InvitationStatusPending {
		return nil, pkgerrors.NewValidationErrorf("invitation is already %s", i.status)
	}
	if i.IsExpired(now) {
		return nil, pkgerrors.NewValidationError("invitation has expired")
	}
	next := *i
	processedAt := now
	next.status = status
	next.processedAt = &processedAt
	return &next, nil
}

func (i *Invitation) validate() error {
	if i.clubID == "" {
		return pkgerrors.NewValidationError("club id is required")
	}
	if i.invitedBy == "" {
		return pkgerrors.NewValidationError("inviter is required")
	}
	if i.role != RoleMember && i.role != RoleAdmin {
		return pkgerrors.NewValidationErrorf("invitations can grant member or admin, not %q", i.role)
	}
	if !i.status.IsValid() {
		return pkgerrors.NewValidationErrorf("invalid invitation status %q", i.status)
	}
	if i.deliveryMethod != DeliveryEmail && i.deliveryMethod != DeliveryInApp {
		return pkgerrors.NewValidationErrorf("invalid delivery method %q", i.deliveryMethod)
	}
	if utf8.RuneCountInString(i.message) > MaxInvitationMessageLength {
		return pkgerrors.NewValidationErrorf("invitation message must be at most %d characters", MaxInvitationMessageLength)
	}
	if i.expiresAt.After(i.invitedAt.AddDate(0, 0, MaxInvitationExpiryDays)) {
		return pkgerrors.NewValidationErrorf("invitation expiry cannot exceed %d days", MaxInvitationExpiryDays)
	}

	switch i.invType {
	case InvitationTypeEmail:
		if !utils.IsEmail(i.email) {
			return pkgerrors.NewValidationError("email invitations require a valid email")
		}
		if len(i.token) != valueobjects.InvitationTokenLength {
			return pkgerrors.NewValidationErrorf("email invitations require a %d character token", valueobjects.InvitationTokenLength)
		}
	case InvitationTypeUser:
		if i.userID == "" {
			return pkgerrors.NewValidationError("user invitations require a user id")
		}
	default:
		return pkgerrors.NewValidationErrorf("invalid invitation type %q", i.invType)
	}
	return nil
}
