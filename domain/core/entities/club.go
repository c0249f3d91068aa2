package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/utils"
)

// ClubStatus represents the lifecycle state of a club
type ClubStatus string

const (
	ClubStatusActive    ClubStatus = "active"
	ClubStatusSuspended ClubStatus = "suspended"
	ClubStatusArchived  ClubStatus = "archived"
)

// Field limits for clubs
const (
	MaxClubNameLength        = 100
	MaxClubDescriptionLength = 500
	MaxClubCityLength        = 50
)

// archived is terminal
var clubStatusTransitions = map[ClubStatus][]ClubStatus{
	ClubStatusActive:    {ClubStatusSuspended, ClubStatusArchived},
	ClubStatusSuspended: {ClubStatusActive, ClubStatusArchived},
	ClubStatusArchived:  {},
}

// IsValid reports whether s is a known club status
func (s ClubStatus) IsValid() bool {
	_, ok := clubStatusTransitions[s]
	return ok
}

// CanTransitionClub reports whether a club may move from one status to another
func CanTransitionClub(from, to ClubStatus) bool {
	for _, allowed := range clubStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Club is a cycling club. Values are immutable; every change returns a new Club.
type Club struct {
	id          valueobjects.ClubID
	name        string
	description string
	city        string
	logoURL     string
	status      ClubStatus
	createdAt   time.Time
	updatedAt   time.Time
}

// CreateClubInput carries the fields accepted when creating a club
type CreateClubInput struct {
	Name        string
	Description string
	City        string
	LogoURL     string
}

// UpdateClubInput carries optional field changes; nil leaves a field unchanged
type UpdateClubInput struct {
	Name        *string
	Description *string
	City        *string
	LogoURL     *string
}

// ClubSnapshot is the persisted form used to rebuild a Club
type ClubSnapshot struct {
	ID          string
	Name        string
	Description string
	City        string
	LogoURL     string
	Status      ClubStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewClub validates input and creates an active club
func NewClub(input CreateClubInput, now time.Time) (*Club, error) {
	club := &Club{
		id:          valueobjects.NewClubID(),
		name:        strings.TrimSpace(input.Name),
		description: strings.TrimSpace(input.Description),
		city:        strings.TrimSpace(input.City),
		logoURL:     strings.TrimSpace(input.LogoURL),
		status:      ClubStatusActive,
		createdAt:   now,
		updatedAt:   now,
	}
	if err := club.validate(); err != nil {
		return nil, err
	}
	return club, nil
}

// ReconstructClub rebuilds a club from storage
func ReconstructClub(s ClubSnapshot) (*Club, error) {
	id, err := valueobjects.ParseClubID(s.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid club id: " + err.Error())
	}
	club := &Club{
		id:          id,
		name:        s.Name,
		description: s.Description,
		city:        s.City,
		logoURL:     s.LogoURL,
		status:      s.Status,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
	}
	if err := club.validate(); err != nil {
		return nil, err
	}
	return club, nil
}

func (c *Club) ID() valueobjects.ClubID { return c.id }
func (c *Club) Name() string            { return c.name }
func (c *Club) Description() string     { return c.description }
func (c *Club) City() string            { return c.city }
func (c *Club) LogoURL() string         { return c.logoURL }
func (c *Club) Status() ClubStatus      { return c.status }
func (c *Club) CreatedAt() time.Time    { return c.createdAt }
func (c *Club) UpdatedAt() time.Time    { return c.updatedAt }

// NameKey is the normalized name used for case-insensitive uniqueness
func (c *Club) NameKey() string {
	return NormalizeClubName(c.name)
}

// NormalizeClubName trims and lower-cases a club name
func NormalizeClubName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsActive reports whether the club accepts new members
func (c *Club) IsActive() bool {
	return c.status == ClubStatusActive
}

// Snapshot exports the club for persistence
func (c *Club) Snapshot() ClubSnapshot {
	return ClubSnapshot{
		ID:          c.id.String(),
		Name:        c.name,
		Description: c.description,
		City:        c.city,
		LogoURL:     c.logoURL,
		Status:      c.status,
		CreatedAt:   c.createdAt,
		UpdatedAt:   c.updatedAt,
	}
}

// Update applies field changes and returns the updated club
func (c *Club) Update(input UpdateClubInput, now time.Time) (*Club, error) {
	if c.status == ClubStatusArchived {
		return nil, pkgerrors.NewValidationError("archived clubs cannot be updated")
	}

	next := *c
	if input.Name != nil {
		next.name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		next.description = strings.TrimSpace(*input.Description)
	}
	if input.City != nil {
		next.city = strings.TrimSpace(*input.City)
	}
	if input.LogoURL != nil {
		next.logoURL = strings.TrimSpace(*input.LogoURL)
	}
	next.updatedAt = now

	if err := next.validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

// Activate moves a suspended club back to active
func (c *Club) Activate(now time.Time) (*Club, error) {
	return c.ChangeStatus(ClubStatusActive, now)
}

// Suspend suspends an active club
func (c *Club) Suspend(now time.Time) (*Club, error) {
	return c.ChangeStatus(ClubStatusSuspended, now)
}

// Archive archives the club permanently
func (c *Club) Archive(now time.Time) (*Club, error) {
	return c.ChangeStatus(ClubStatusArchived, now)
}

// ChangeStatus applies a status transition permitted by the club transition table
func (c *Club) ChangeStatus(status ClubStatus, now time.Time) (*Club, error) {
	if !status.IsValid() {
		return nil, pkgerrors.NewValidationErrorf("invalid club status %q", status)
	}
	if !CanTransitionClub(c.status, status) {
		return nil, pkgerrors.NewValidationErrorf("cannot change club status from %s to %s", c.status, status)
	}
	next := *c
	next.status = status
	next.updatedAt = now
	return &next, nil
}

func (c *Club) validate() error {
	nameLen := utf8.RuneCountInString(c.name)
	if nameLen == 0 {
		return pkgerrors.NewValidationError("club name is required")
	}
	if nameLen > MaxClubNameLength {
		return pkgerrors.NewValidationErrorf("club name must be at most %d characters", MaxClubNameLength)
	}
	if utf8.RuneCountInString(c.description) > MaxClubDescriptionLength {
		return pkgerrors.NewValidationErrorf("club description must be at most %d characters", MaxClubDescriptionLength)
	}
	if utf8.RuneCountInString(c.city) > MaxClubCityLength {
		return pkgerrors.NewValidationErrorf("club city must be at most %d characters", MaxClubCityLength)
	}
	if c.logoURL != "" && !utils.IsURL(c.logoURL) {
		return pkgerrors.NewValidationError("club logo URL must be a valid URL")
	}
	if !c.status.IsValid() {
		return pkgerrors.NewValidationErrorf("invalid club status %q", c.status)
	}
	return nil
}
