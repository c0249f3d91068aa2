package events

import (
	"time"

	"collective-rides/domain/core/entities"
)

// Club Events

// ClubCreated is raised when a club and its owner membership are stored
type ClubCreated struct {
	BaseEvent
	ClubID  string `json:"club_id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// NewClubCreated creates a ClubCreated event
func NewClubCreated(club *entities.Club, ownerID string, timestamp time.Time) ClubCreated {
	return ClubCreated{
		BaseEvent: newBase(club.ID().String(), TypeClubCreated, timestamp),
		ClubID:    club.ID().String(),
		Name:      club.Name(),
		OwnerID:   ownerID,
	}
}

// ClubUpdated is raised when club details change
type ClubUpdated struct {
	BaseEvent
	ClubID    string `json:"club_id"`
	OldName   string `json:"old_name"`
	NewName   string `json:"new_name"`
	UpdatedBy string `json:"updated_by"`
}

// NewClubUpdated creates a ClubUpdated event
func NewClubUpdated(before, after *entities.Club, updatedBy string, timestamp time.Time) ClubUpdated {
	return ClubUpdated{
		BaseEvent: newBase(after.ID().String(), TypeClubUpdated, timestamp),
		ClubID:    after.ID().String(),
		OldName:   before.Name(),
		NewName:   after.Name(),
		UpdatedBy: updatedBy,
	}
}

// ClubStatusChanged is raised on activate/suspend/archive
type ClubStatusChanged struct {
	BaseEvent
	ClubID    string              `json:"club_id"`
	OldStatus entities.ClubStatus `json:"old_status"`
	NewStatus entities.ClubStatus `json:"new_status"`
	ChangedBy string              `json:"changed_by"`
}

// NewClubStatusChanged creates a ClubStatusChanged event
func NewClubStatusChanged(before, after *entities.Club, changedBy string, timestamp time.Time) ClubStatusChanged {
	return ClubStatusChanged{
		BaseEvent: newBase(after.ID().String(), TypeClubStatusChanged, timestamp),
		ClubID:    after.ID().String(),
		OldStatus: before.Status(),
		NewStatus: after.Status(),
		ChangedBy: changedBy,
	}
}
