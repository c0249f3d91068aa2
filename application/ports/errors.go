package ports

import (
	"errors"
	"fmt"
)

// ErrNotFound represents a resource not found error in the repository layer.
type ErrNotFound struct {
	Resource string // The type of resource (e.g., "club", "membership")
	ID       string // The identifier that was not found
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
}

// IsNotFound checks if an error chain holds a repository not found error.
func IsNotFound(err error) bool {
	var target ErrNotFound
	return errors.As(err, &target)
}

// ErrConflict represents a failed conditional write in the repository layer.
type ErrConflict struct {
	Resource string // The type of resource (e.g., "club", "membership")
	ID       string // The identifier that caused the conflict
	Reason   string // The reason for the conflict
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("conflict with %s '%s': %s", e.Resource, e.ID, e.Reason)
}

// Conflict resources reported by repositories
const (
	ResourceClub       = "club"
	ResourceClubName   = "club_name"
	ResourceMembership = "membership"
	ResourceInvitation = "invitation"
)

// IsConflictOn reports whether err holds a conflict on the given resource
func IsConflictOn(err error, resource string) bool {
	var target ErrConflict
	return errors.As(err, &target) && target.Resource == resource
}

// IsConflict checks if an error chain holds a repository conflict error.
func IsConflict(err error) bool {
	var target ErrConflict
	return errors.As(err, &target)
}

// ErrInvalidCursor is returned when a pagination cursor cannot be decoded
type ErrInvalidCursor struct {
	Reason string
}

func (e ErrInvalidCursor) Error() string {
	return fmt.Sprintf("invalid cursor: %s", e.Reason)
}

// IsInvalidCursor checks if an error chain holds a cursor decoding error.
func IsInvalidCursor(err error) bool {
	var target ErrInvalidCursor
	return errors.As(err, &target)
}

// NewNotFound creates a new ErrNotFound.
func NewNotFound(resource, id string) ErrNotFound {
	return ErrNotFound{Resource: resource, ID: id}
}

// NewConflict creates a new ErrConflict.
func NewConflict(resource, id, reason string) ErrConflict {
	return ErrConflict{Resource: resource, ID: id, Reason: reason}
}
