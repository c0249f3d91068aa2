package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
)

// MembershipRole is a member's role inside a club
type MembershipRole string

const (
	RoleMember MembershipRole = "member"
	RoleAdmin  MembershipRole = "admin"
	RoleOwner  MembershipRole = "owner"
)

// IsValid reports whether r is a known club role
func (r MembershipRole) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// MembershipStatus is the lifecycle state of a membership
type MembershipStatus string

const (
	MembershipStatusPending   MembershipStatus = "pending"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusSuspended MembershipStatus = "suspended"
	MembershipStatusRemoved   MembershipStatus = "removed"
)

// MaxJoinMessageLength bounds free text attached to a membership
const MaxJoinMessageLength = 500

// removed is the tombstone state
var membershipStatusTransitions = map[MembershipStatus][]MembershipStatus{
	MembershipStatusPending:   {MembershipStatusActive, MembershipStatusRemoved},
	MembershipStatusActive:    {MembershipStatusSuspended, MembershipStatusRemoved},
	MembershipStatusSuspended: {MembershipStatusActive, MembershipStatusRemoved},
	MembershipStatusRemoved:   {},
}

// owner is never reachable through a role change
var membershipRoleTransitions = map[MembershipRole][]MembershipRole{
	RoleMember: {RoleAdmin},
	RoleAdmin:  {RoleMember},
	RoleOwner:  {},
}

// IsValid reports whether s is a known membership status
func (s MembershipStatus) IsValid() bool {
	_, ok := membershipStatusTransitions[s]
	return ok
}

// CanTransitionMembership reports whether a membership may move between statuses
func CanTransitionMembership(from, to MembershipStatus) bool {
	for _, allowed := range membershipStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionRole reports whether a role change is allowed by the role table
func CanTransitionRole(from, to MembershipRole) bool {
	for _, allowed := range membershipRoleTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Membership links one user to one club
type Membership struct {
	id          valueobjects.MembershipID
	clubID      valueobjects.ClubID
	userID      string
	role        MembershipRole
	status      MembershipStatus
	joinedAt    time.Time
	updatedAt   time.Time
	joinMessage string
	invitedBy   string
	processedBy string
	processedAt *time.Time
	reason      string
}

// NewMembershipInput describes a membership to create
type NewMembershipInput struct {
	ClubID      valueobjects.ClubID
	UserID      string
	Role        MembershipRole   // defaults to member
	Status      MembershipStatus // defaults to pending; only pending or active are accepted
	JoinMessage string
	InvitedBy   string
}

// MembershipSnapshot is the persisted form of a membership
type MembershipSnapshot struct {
	ID          string
	ClubID      string
	UserID      string
	Role        MembershipRole
	Status      MembershipStatus
	JoinedAt    time.Time
	UpdatedAt   time.Time
	JoinMessage string
	InvitedBy   string
	ProcessedBy string
	ProcessedAt *time.Time
	Reason      string
}

// NewMembership validates input and creates a new membership
func NewMembership(input NewMembershipInput, now time.Time) (*Membership, error) {
	role := input.Role
	if role == "" {
		role = RoleMember
	}
	status := input.Status
	if status == "" {
		status = MembershipStatusPending
	}
	if status != MembershipStatusPending && status != MembershipStatusActive {
		return nil, pkgerrors.NewValidationErrorf("new memberships must be pending or active, got %q", status)
	}

	m := &Membership{
		id:          valueobjects.NewMembershipID(),
		clubID:      input.ClubID,
		userID:      strings.TrimSpace(input.UserID),
		role:        role,
		status:      status,
		joinedAt:    now,
		updatedAt:   now,
		joinMessage: strings.TrimSpace(input.JoinMessage),
		invitedBy:   input.InvitedBy,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReconstructMembership rebuilds a membership from storage
func ReconstructMembership(s MembershipSnapshot) (*Membership, error) {
	clubID, err := valueobjects.ParseClubID(s.ClubID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid club id: " + err.Error())
	}
	m := &Membership{
		id:          valueobjects.MembershipID(s.ID),
		clubID:      clubID,
		userID:      s.UserID,
		role:        s.Role,
		status:      s.Status,
		joinedAt:    s.JoinedAt,
		updatedAt:   s.UpdatedAt,
		joinMessage: s.JoinMessage,
		invitedBy:   s.InvitedBy,
		processedBy: s.ProcessedBy,
		processedAt: s.ProcessedAt,
		reason:      s.Reason,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Membership) ID() valueobjects.MembershipID { return m.id }
func (m *Membership) ClubID() valueobjects.ClubID   { return m.clubID }
func (m *Membership) UserID() string                { return m.userID }
func (m *Membership) Role() MembershipRole          { return m.role }
func (m *Membership) Status() MembershipStatus      { return m.status }
func (m *Membership) JoinedAt() time.Time           { return m.joinedAt }
func (m *Membership) UpdatedAt() time.Time          { return m.updatedAt }
func (m *Membership) JoinMessage() string           { return m.joinMessage }
func (m *Membership) InvitedBy() string             { return m.invitedBy }
func (m *Membership) ProcessedBy() string           { return m.processedBy }
func (m *Membership) Reason() string                { return m.reason }

// ProcessedAt returns when an admin-driven transition last happened
func (m *Membership) ProcessedAt() *time.Time {
	if m.processedAt == nil {
		return nil
	}
	t := *m.processedAt
	return &t
}

func (m *Membership) IsActive() bool  { return m.status == MembershipStatusActive }
func (m *Membership) IsRemoved() bool { return m.status == MembershipStatusRemoved }
func (m *Membership) IsOwner() bool   { return m.role == RoleOwner }

// Snapshot exports the membership for persistence
func (m *Membership) Snapshot() MembershipSnapshot {
	return MembershipSnapshot{
		ID:          m.id.String(),
		ClubID:      m.clubID.String(),
		UserID:      m.userID,
		Role:        m.role,
		Status:      m.status,
		JoinedAt:    m.joinedAt,
		UpdatedAt:   m.updatedAt,
		JoinMessage: m.joinMessage,
		InvitedBy:   m.invitedBy,
		ProcessedBy: m.processedBy,
		ProcessedAt: m.ProcessedAt(),
		Reason:      m.reason,
	}
}

// ChangeStatus applies a status transition. Owners can never be suspended or removed.
func (m *Membership) ChangeStatus(status MembershipStatus, processedBy, reason string, now time.Time) (*Membership, error) {
	if !status.IsValid() {
		return nil, pkgerrors.NewValidationErrorf("invalid membership status %q", status)
	}
	if m.role == RoleOwner && (status == MembershipStatusSuspended || status == MembershipStatusRemoved) {
		return nil, pkgerrors.NewValidationError("club owner cannot be suspended or removed; transfer ownership first")
	}
	if !CanTransitionMembership(m.status, status) {
		return nil, pkgerrors.NewValidationErrorf("cannot change membership status from %s to %s", m.status, status)
	}

	next := m.stamp(processedBy, reason, now)
	next.status = status
	if err := next.validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// Activate approves a pending membership or reinstates a suspended one
func (m *Membership) Activate(processedBy, reason string, now time.Time) (*Membership, error) {
	return m.ChangeStatus(MembershipStatusActive, processedBy, reason, now)
}

// Suspend suspends an active membership
func (m *Membership) Suspend(processedBy, reason string, now time.Time) (*Membership, error) {
	return m.ChangeStatus(MembershipStatusSuspended, processedBy, reason, now)
}

// Remove tombstones the membership
func (m *Membership) Remove(processedBy, reason string, now time.Time) (*Membership, error) {
	return m.ChangeStatus(MembershipStatusRemoved, processedBy, reason, now)
}

// UpdateRole changes the member's role. Only member<->admin is allowed; owners are fixed.
func (m *Membership) UpdateRole(role MembershipRole, processedBy, reason string, now time.Time) (*Membership, error) {
	if m.role == RoleOwner {
		return nil, pkgerrors.NewValidationError("owner role cannot be changed; ownership transfer required")
	}
	if !role.IsValid() {
		return nil, pkgerrors.NewValidationErrorf("invalid membership role %q", role)
	}
	if !CanTransitionRole(m.role, role) {
		return nil, pkgerrors.NewValidationErrorf("cannot change role from %s to %s", m.role, role)
	}

	next := m.stamp(processedBy, reason, now)
	next.role = role
	if err := next.validate(); err != nil {
		return nil, err
	}
	return next, nil
}

func (m *Membership) stamp(processedBy, reason string, now time.Time) *Membership {
	next := *m
	processedAt := now
	next.updatedAt = now
	next.processedBy = processedBy
	next.processedAt = &processedAt
	next.reason = strings.TrimSpace(reason)
	return &next
}

func (m *Membership) validate() error {
	if m.clubID == "" {
		return pkgerrors.NewValidationError("club id is required")
	}
	if m.userID == "" {
		return pkgerrors.NewValidationError("user id is required")
	}
	if strings.Contains(m.userID, "#") {
		return pkgerrors.NewValidationError("user id cannot contain '#'")
	}
	if !m.role.IsValid() {
		return pkgerrors.NewValidationErrorf("invalid membership role %q", m.role)
	}
	if !m.status.IsValid() {
		return pkgerrors.NewValidationErrorf("invalid membership status %q", m.status)
	}
	if utf8.RuneCountInString(m.joinMessage) > MaxJoinMessageLength {
		return pkgerrors.NewValidationErrorf("join message must be at most %d characters", MaxJoinMessageLength)
	}
	if utf8.RuneCountInString(m.reason) > MaxJoinMessageLength {
		return pkgerrors.NewValidationErrorf("reason must be at most %d characters", MaxJoinMessageLength)
	}
	return nil
}
