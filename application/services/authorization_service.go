package services

import (
	"context"
	"errors"

	"collective-rides/application/ports"
	"collective-rides/domain/authorization"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
	"go.uber.org/zap"
)

// AuthorizationService answers capability questions for a caller within a club.
// Club-scoped checks always read the caller's membership; only system capabilities are cached.
type AuthorizationService struct {
	memberships ports.MembershipRepository
	cache       *authorization.SystemCapabilityCache
	logger      *zap.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(
	memberships ports.MembershipRepository,
	cache *authorization.SystemCapabilityCache,
	logger *zap.Logger,
) *AuthorizationService {
	return &AuthorizationService{
		memberships: memberships,
		cache:       cache,
		logger:      logger,
	}
}

// RequireAuthenticated rejects anonymous callers
func (s *AuthorizationService) RequireAuthenticated(auth authorization.AuthContext) error {
	if !auth.IsAuthenticated || auth.UserID == "" {
		return pkgerrors.NewUnauthorizedError("authentication required")
	}
	return nil
}

// HasSystemCapability reports whether the caller's system role grants capability
func (s *AuthorizationService) HasSystemCapability(auth authorization.AuthContext, capability authorization.SystemCapability) bool {
	if !auth.IsAuthenticated {
		return false
	}
	return s.cache.Has(auth.UserID, auth.SystemRole, capability)
}

// RequireSystemCapability fails with INSUFFICIENT_PRIVILEGES unless the system role grants capability
func (s *AuthorizationService) RequireSystemCapability(auth authorization.AuthContext, capability authorization.SystemCapability) error {
	if err := s.RequireAuthenticated(auth); err != nil {
		return err
	}
	if !s.HasSystemCapability(auth, capability) {
		return pkgerrors.NewInsufficientPrivilegesError(string(capability))
	}
	return nil
}

// ActiveMembership returns the caller's membership in the club only when it is active
func (s *AuthorizationService) ActiveMembership(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID) (*entities.Membership, error) {
	membership, err := s.memberships.Get(ctx, clubID, auth.UserID)
	if err != nil {
		return nil, pkgerrors.NewAuthorizationServiceError(err)
	}
	if membership == nil || !membership.IsActive() {
		return nil, nil
	}
	return membership, nil
}

// RequireClubCapability succeeds for holders of manage_all_clubs, or for active members whose
// role grants capability. Pending, suspended and removed memberships authorize nothing.
func (s *AuthorizationService) RequireClubCapability(
	ctx context.Context,
	auth authorization.AuthContext,
	clubID valueobjects.ClubID,
	capability authorization.Capability,
) error {
	if err := s.RequireAuthenticated(auth); err != nil {
		return err
	}
	if s.HasSystemCapability(auth, authorization.SysManageAllClubs) {
		return nil
	}

	membership, err := s.ActiveMembership(ctx, auth, clubID)
	if err != nil {
		return err
	}
	if membership == nil || !authorization.RoleHasCapability(membership.Role(), capability) {
		s.logger.Debug("Club capability denied",
			zap.String("userID", auth.UserID),
			zap.String("clubID", clubID.String()),
			zap.String("capability", string(capability)),
		)
		return pkgerrors.NewInsufficientPrivilegesError(string(capability))
	}
	return nil
}

// HasCapability is the fail-closed boolean form of RequireClubCapability
func (s *AuthorizationService) HasCapability(
	ctx context.Context,
	auth authorization.AuthContext,
	clubID valueobjects.ClubID,
	capability authorization.Capability,
) bool {
	err := s.RequireClubCapability(ctx, auth, clubID, capability)
	if errors.Is(err, pkgerrors.ErrAuthorizationService) {
		s.logger.Warn("Capability check failed, denying",
			zap.String("userID", auth.UserID),
			zap.String("clubID", clubID.String()),
			zap.Error(err),
		)
	}
	return err == nil
}

// CanManageMember compares the caller's role rank with the target's. Owners are never
// manageable through this path unless the caller holds manage_all_clubs.
func (s *AuthorizationService) CanManageMember(
	ctx context.Context,
	auth authorization.AuthContext,
	clubID valueobjects.ClubID,
	targetRole entities.MembershipRole,
) (bool, error) {
	if !auth.IsAuthenticated {
		return false, nil
	}
	if s.HasSystemCapability(auth, authorization.SysManageAllClubs) {
		return true, nil
	}
	if targetRole == entities.RoleOwner {
		return false, nil
	}

	actor, err := s.ActiveMembership(ctx, auth, clubID)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return false, nil
	}
	return authorization.RoleRank(actor.Role()) >= authorization.RoleRank(targetRole), nil
}

// ValidateRoleAssignment checks whether the caller may hand out targetRole in the club.
// Owner is never assignable; admin needs an owner; member needs an admin or owner.
func (s *AuthorizationService) ValidateRoleAssignment(
	ctx context.Context,
	auth authorization.AuthContext,
	clubID valueobjects.ClubID,
	targetRole entities.MembershipRole,
) error {
	if err := s.RequireAuthenticated(auth); err != nil {
		return err
	}
	if !targetRole.IsValid() {
		return pkgerrors.NewValidationErrorf("invalid membership role %q", targetRole)
	}
	if targetRole == entities.RoleOwner {
		return pkgerrors.NewValidationError("owner role cannot be assigned; ownership transfer required")
	}

	actor, err := s.ActiveMembership(ctx, auth, clubID)
	if err != nil {
		return err
	}
	if actor == nil {
		return pkgerrors.NewInsufficientPrivilegesError(string(authorization.CapManageMembers))
	}

	switch targetRole {
	case entities.RoleAdmin:
		if actor.Role() != entities.RoleOwner {
			return pkgerrors.NewInsufficientPrivilegesError(string(authorization.CapManageAdmins))
		}
	case entities.RoleMember:
		if actor.Role() != entities.RoleAdmin && actor.Role() != entities.RoleOwner {
			return pkgerrors.NewInsufficientPrivilegesError(string(authorization.CapManageMembers))
		}
	}
	return nil
}

// Invalidate drops cached capability sets for the given users
func (s *AuthorizationService) Invalidate(userIDs ...string) {
	for _, id := range userIDs {
		if id != "" {
			s.cache.Invalidate(id)
		}
	}
}
