package services

import (
	"context"
	"fmt"

	"collective-rides/application/ports"
	"collective-rides/domain/authorization"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/domain/events"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/utils"
	"go.uber.org/zap"
)

// CreateClubInput is the body of a club creation request
type CreateClubInput struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
	City        string `json:"city,omitempty" validate:"max=50"`
	LogoURL     string `json:"logoUrl,omitempty" validate:"omitempty,url"`
}

// UpdateClubInput is the body of a club update; omitted fields stay unchanged
type UpdateClubInput struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	City        *string `json:"city,omitempty" validate:"omitempty,max=50"`
	LogoURL     *string `json:"logoUrl,omitempty"`
}

// ChangeClubStatusInput is the body of a status change
type ChangeClubStatusInput struct {
	Status entities.ClubStatus `json:"status" validate:"required,oneof=active suspended archived"`
}

// ClubService manages clubs and their case-insensitive name uniqueness
type ClubService struct {
	clubs  ports.ClubRepository
	authz  *AuthorizationService
	events eventEmitter
	clock  utils.Clock
	logger *zap.Logger
}

// NewClubService creates a new club service
func NewClubService(
	clubs ports.ClubRepository,
	authz *AuthorizationService,
	publisher ports.EventPublisher,
	clock utils.Clock,
	logger *zap.Logger,
) *ClubService {
	return &ClubService{
		clubs:  clubs,
		authz:  authz,
		events: eventEmitter{publisher: publisher, logger: logger},
		clock:  clock,
		logger: logger,
	}
}

// CreateClub creates a club with the caller as its active owner
func (s *ClubService) CreateClub(ctx context.Context, auth authorization.AuthContext, input CreateClubInput) (*entities.Club, error) {
	if err := s.authz.RequireSystemCapability(auth, authorization.SysCreateClubs); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	club, err := entities.NewClub(entities.CreateClubInput{
		Name:        input.Name,
		Description: input.Description,
		City:        input.City,
		LogoURL:     input.LogoURL,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.ensureNameAvailable(ctx, club); err != nil {
		return nil, err
	}

	owner, err := entities.NewMembership(entities.NewMembershipInput{
		ClubID: club.ID(),
		UserID: auth.UserID,
		Role:   entities.RoleOwner,
		Status: entities.MembershipStatusActive,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.clubs.Create(ctx, club, owner); err != nil {
		if ports.IsConflictOn(err, ports.ResourceClubName) {
			return nil, pkgerrors.NewClubNameTakenError(club.Name())
		}
		if ports.IsConflict(err) {
			return nil, pkgerrors.NewConflictError("club already exists")
		}
		return nil, fmt.Errorf("failed to create club: %w", err)
	}

	s.logger.Info("Club created",
		zap.String("clubID", club.ID().String()),
		zap.String("name", club.Name()),
		zap.String("ownerID", auth.UserID),
	)
	s.events.emit(ctx,
		events.NewClubCreated(club, auth.UserID, now),
		events.NewMembershipActivated(owner, auth.UserID, now),
	)
	return club, nil
}

// GetClub returns a club by ID
func (s *ClubService) GetClub(ctx context.Context, clubID valueobjects.ClubID) (*entities.Club, error) {
	club, err := s.clubs.GetByID(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to get club: %w", err)
	}
	if club == nil {
		return nil, pkgerrors.NewClubNotFoundError(clubID.String())
	}
	return club, nil
}

// ListClubs pages through clubs ordered by name
func (s *ClubService) ListClubs(ctx context.Context, opts ports.ClubListOptions) (ports.Page[*entities.Club], error) {
	if opts.Status != "" && !opts.Status.IsValid() {
		return ports.Page[*entities.Club]{}, pkgerrors.NewValidationErrorf("invalid club status %q", opts.Status)
	}
	opts.Limit = ports.ClampLimit(opts.Limit)

	page, err := s.clubs.List(ctx, opts)
	if err != nil {
		return ports.Page[*entities.Club]{}, mapListError(err, "failed to list clubs")
	}
	return page, nil
}

// UpdateClub applies detail changes. A rename re-checks uniqueness and moves the name index.
func (s *ClubService) UpdateClub(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, input UpdateClubInput) (*entities.Club, error) {
	club, err := s.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireClubCapability(ctx, auth, clubID, authorization.CapEditClubDetails); err != nil {
		return nil, err
	}

	updated, err := club.Update(entities.UpdateClubInput{
		Name:        input.Name,
		Description: input.Description,
		City:        input.City,
		LogoURL:     input.LogoURL,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if updated.NameKey() != club.NameKey() {
		if err := s.ensureNameAvailable(ctx, updated); err != nil {
			return nil, err
		}
	}

	if err := s.clubs.Update(ctx, club, updated); err != nil {
		return nil, s.mapUpdateError(err, updated)
	}

	s.events.emit(ctx, events.NewClubUpdated(club, updated, auth.UserID, s.clock.Now()))
	return updated, nil
}

// ChangeClubStatus activates, suspends or archives a club. Requires manage_all_clubs.
func (s *ClubService) ChangeClubStatus(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, input ChangeClubStatusInput) (*entities.Club, error) {
	if err := s.authz.RequireSystemCapability(auth, authorization.SysManageAllClubs); err != nil {
		return nil, err
	}

	club, err := s.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}

	updated, err := club.ChangeStatus(input.Status, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.clubs.Update(ctx, club, updated); err != nil {
		return nil, s.mapUpdateError(err, updated)
	}

	s.logger.Info("Club status changed",
		zap.String("clubID", clubID.String()),
		zap.String("from", string(club.Status())),
		zap.String("to", string(updated.Status())),
		zap.String("actorID", auth.UserID),
	)
	s.events.emit(ctx, events.NewClubStatusChanged(club, updated, auth.UserID, s.clock.Now()))
	return updated, nil
}

func (s *ClubService) ensureNameAvailable(ctx context.Context, club *entities.Club) error {
	existing, err := s.clubs.FindByName(ctx, club.Name())
	if err != nil {
		return fmt.Errorf("failed to check club name: %w", err)
	}
	if existing != nil && existing.ID() != club.ID() {
		return pkgerrors.NewClubNameTakenError(club.Name())
	}
	return nil
}

func (s *ClubService) mapUpdateError(err error, club *entities.Club) error {
	switch {
	case ports.IsNotFound(err):
		return pkgerrors.NewClubNotFoundError(club.ID().String())
	case ports.IsConflictOn(err, ports.ResourceClubName):
		return pkgerrors.NewClubNameTakenError(club.Name())
	case ports.IsConflict(err):
		return pkgerrors.NewConflictError("club was modified concurrently; retry the operation")
	default:
		return fmt.Errorf("failed to update club: %w", err)
	}
}
