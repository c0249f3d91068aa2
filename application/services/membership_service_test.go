package services

import (
	"testing"

	"collective-rides/application/ports"
	"collective-rides/application/ports/mocks"
	"collective-rides/domain/core/entities"
	pkgerrors "collective-rides/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMembershipService_JoinClub_Success(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
	f.withoutMember(testClubID, "rider")
	f.memberships.On("Create", f.ctx, membershipWith(entities.MembershipStatusPending, entities.RoleMember)).
		Return(mocks.ReturnArg, nil)

	// Act
	m, err := f.membershipService().JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{Message: "Keen for Saturdays"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entities.MembershipStatusPending, m.Status())
	assert.Equal(t, entities.RoleMember, m.Role())
	assert.Equal(t, "Keen for Saturdays", m.JoinMessage())
	f.memberships.AssertExpectations(t)
	f.publisher.AssertCalled(t, "Publish", f.ctx, mock.Anything)
}

func TestMembershipService_JoinClub_Errors(t *testing.T) {
	t.Run("club not found", func(t *testing.T) {
		f := newFixture(t)
		f.clubs.On("GetByID", f.ctx, testClubID).Return(nil, nil)

		_, err := f.membershipService().JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{})
		assertDomainError(t, err, pkgerrors.ErrClubNotFound)
	})

	t.Run("already an active member", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))

		_, err := f.membershipService().JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{})
		assertDomainError(t, err, pkgerrors.ErrAlreadyMember)
		f.memberships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("lost the create race", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withoutMember(testClubID, "rider")
		existing := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusPending)
		f.memberships.On("Create", f.ctx, mock.Anything).
			Return(existing, ports.NewConflict(ports.ResourceMembership, "club_spokes#rider", "exists"))

		_, err := f.membershipService().JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{})
		assertDomainError(t, err, pkgerrors.ErrAlreadyMember)
	})

	t.Run("suspended club", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusSuspended))

		_, err := f.membershipService().JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{})
		assertDomainError(t, err, pkgerrors.ErrOperationNotAllowed)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.membershipService().JoinClub(f.ctx, user(""), testClubID, JoinClubInput{})
		assert.True(t, pkgerrors.IsUnauthorized(err))
	})
}

func TestMembershipService_JoinClub_AfterRemoval(t *testing.T) {
	f := newFixture(t)
	f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
	f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusRemoved))
	f.memberships.On("Create", f.ctx, membershipWith(entities.MembershipStatusPending, entities.RoleMember)).
		Return(mocks.ReturnArg, nil)

	m, err := f.membershipService().JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{})

	require.NoError(t, err)
	assert.Equal(t, entities.MembershipStatusPending, m.Status())
}

func TestMembershipService_JoinApproveJoinAgain(t *testing.T) {
	// Arrange: first join
	f := newFixture(t)
	f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
	f.memberships.On("Get", f.ctx, testClubID, "rider").Return(nil, nil).Once()
	f.memberships.On("Create", f.ctx, mock.Anything).
		Return(mocks.ReturnArg, nil)
	svc := f.membershipService()

	pending, err := svc.JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{})
	require.NoError(t, err)

	// Approve by admin
	f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
	f.memberships.On("Get", f.ctx, testClubID, "rider").Return(pending, nil).Once()
	f.memberships.On("Update", f.ctx, pending, membershipWith(entities.MembershipStatusActive, entities.RoleMember)).Return(nil)

	active, err := svc.ApproveMembership(f.ctx, user("admin"), testClubID, "rider", MemberActionInput{})
	require.NoError(t, err)
	assert.Equal(t, entities.MembershipStatusActive, active.Status())
	assert.Equal(t, entities.RoleMember, active.Role())
	assert.Equal(t, "admin", active.ProcessedBy())

	// Join again
	f.memberships.On("Get", f.ctx, testClubID, "rider").Return(active, nil)
	_, err = svc.JoinClub(f.ctx, user("rider"), testClubID, JoinClubInput{})
	assertDomainError(t, err, pkgerrors.ErrAlreadyMember)
}

func TestMembershipService_LeaveClub(t *testing.T) {
	t.Run("owner cannot leave", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "owner", entities.RoleOwner, entities.MembershipStatusActive))

		_, err := f.membershipService().LeaveClub(f.ctx, user("owner"), testClubID)
		assertDomainError(t, err, pkgerrors.ErrOperationNotAllowed)
		assert.Equal(t, 403, pkgerrors.GetDomainError(err).StatusCode)
	})

	t.Run("pending member has nothing to leave", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusPending))

		_, err := f.membershipService().LeaveClub(f.ctx, user("rider"), testClubID)
		assertDomainError(t, err, pkgerrors.ErrMembershipNotFound)
	})

	t.Run("voluntary departure", func(t *testing.T) {
		f := newFixture(t)
		current := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive)
		f.withMember(current)
		f.memberships.On("Update", f.ctx, current, membershipWith(entities.MembershipStatusRemoved, entities.RoleMember)).Return(nil)

		removed, err := f.membershipService().LeaveClub(f.ctx, user("rider"), testClubID)

		require.NoError(t, err)
		assert.Equal(t, "Voluntary departure", removed.Reason())
		assert.Equal(t, "rider", removed.ProcessedBy())
		f.memberships.AssertExpectations(t)
	})

	t.Run("concurrent modification", func(t *testing.T) {
		f := newFixture(t)
		current := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive)
		f.withMember(current)
		f.memberships.On("Update", f.ctx, current, mock.Anything).
			Return(ports.NewConflict(ports.ResourceMembership, "club_spokes#rider", "status changed"))

		_, err := f.membershipService().LeaveClub(f.ctx, user("rider"), testClubID)
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestMembershipService_UpdateMemberRole(t *testing.T) {
	t.Run("owner role cannot be changed", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "owner", entities.RoleOwner, entities.MembershipStatusActive))

		_, err := f.membershipService().UpdateMemberRole(f.ctx, user("owner"), testClubID, "owner",
			UpdateMemberRoleInput{Role: entities.RoleAdmin})

		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
		assert.Contains(t, err.Error(), "ownership transfer")
	})

	t.Run("admin cannot promote to admin", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))

		_, err := f.membershipService().UpdateMemberRole(f.ctx, user("admin"), testClubID, "rider",
			UpdateMemberRoleInput{Role: entities.RoleAdmin})
		assertDomainError(t, err, pkgerrors.ErrInsufficientPrivileges)
		f.memberships.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("owner promotes member", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "owner", entities.RoleOwner, entities.MembershipStatusActive))
		target := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive)
		f.withMember(target)
		f.memberships.On("Update", f.ctx, target, membershipWith(entities.MembershipStatusActive, entities.RoleAdmin)).Return(nil)

		updated, err := f.membershipService().UpdateMemberRole(f.ctx, user("owner"), testClubID, "rider",
			UpdateMemberRoleInput{Role: entities.RoleAdmin, Reason: "Ride leader"})

		require.NoError(t, err)
		assert.Equal(t, entities.RoleAdmin, updated.Role())
		assert.Equal(t, "Ride leader", updated.Reason())
		assert.Equal(t, entities.RoleMember, target.Role())
		f.memberships.AssertExpectations(t)
	})

	t.Run("target not active", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusSuspended))

		_, err := f.membershipService().UpdateMemberRole(f.ctx, user("owner"), testClubID, "rider",
			UpdateMemberRoleInput{Role: entities.RoleAdmin})
		assertDomainError(t, err, pkgerrors.ErrMembershipNotFound)
	})
}

func TestMembershipService_RemoveMember(t *testing.T) {
	t.Run("owner is rejected before privilege checks", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "owner", entities.RoleOwner, entities.MembershipStatusActive))

		_, err := f.membershipService().RemoveMember(f.ctx, user("admin"), testClubID, "owner", MemberActionInput{})

		assertDomainError(t, err, pkgerrors.ErrCannotRemoveOwner)
		f.memberships.AssertNotCalled(t, "Get", f.ctx, testClubID, "admin")
	})

	t.Run("member cannot remove member", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))
		f.withMember(testMember(t, "other", entities.RoleMember, entities.MembershipStatusActive))

		_, err := f.membershipService().RemoveMember(f.ctx, user("rider"), testClubID, "other", MemberActionInput{})
		assertDomainError(t, err, pkgerrors.ErrInsufficientPrivileges)
	})

	t.Run("admin removes member", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
		target := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive)
		f.withMember(target)
		f.memberships.On("Update", f.ctx, target, membershipWith(entities.MembershipStatusRemoved, entities.RoleMember)).Return(nil)

		removed, err := f.membershipService().RemoveMember(f.ctx, user("admin"), testClubID, "rider", MemberActionInput{Reason: "Spam"})

		require.NoError(t, err)
		assert.True(t, removed.IsRemoved())
		assert.Equal(t, "Spam", removed.Reason())
	})

	t.Run("site admin removes admin", func(t *testing.T) {
		f := newFixture(t)
		target := testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive)
		f.withMember(target)
		f.memberships.On("Update", f.ctx, target, mock.Anything).Return(nil)

		_, err := f.membershipService().RemoveMember(f.ctx, siteAdmin("root"), testClubID, "admin", MemberActionInput{})
		require.NoError(t, err)
	})
}

func TestMembershipService_AdminTransitions(t *testing.T) {
	t.Run("suspend then reinstate", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "owner", entities.RoleOwner, entities.MembershipStatusActive))
		active := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive)
		f.memberships.On("Get", f.ctx, testClubID, "rider").Return(active, nil).Once()
		f.memberships.On("Update", f.ctx, active, membershipWith(entities.MembershipStatusSuspended, entities.RoleMember)).Return(nil)
		svc := f.membershipService()

		suspended, err := svc.SuspendMember(f.ctx, user("owner"), testClubID, "rider", MemberActionInput{Reason: "Dangerous riding"})
		require.NoError(t, err)

		f.memberships.On("Get", f.ctx, testClubID, "rider").Return(suspended, nil).Once()
		f.memberships.On("Update", f.ctx, suspended, membershipWith(entities.MembershipStatusActive, entities.RoleMember)).Return(nil)

		reinstated, err := svc.ReinstateMember(f.ctx, user("owner"), testClubID, "rider", MemberActionInput{})
		require.NoError(t, err)
		assert.True(t, reinstated.IsActive())
	})

	t.Run("approve requires pending", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusSuspended))

		_, err := f.membershipService().ApproveMembership(f.ctx, user("owner"), testClubID, "rider", MemberActionInput{})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("owner cannot be suspended", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "owner", entities.RoleOwner, entities.MembershipStatusActive))

		_, err := f.membershipService().SuspendMember(f.ctx, siteAdmin("root"), testClubID, "owner", MemberActionInput{})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("reject pending request", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
		pending := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusPending)
		f.withMember(pending)
		f.memberships.On("Update", f.ctx, pending, membershipWith(entities.MembershipStatusRemoved, entities.RoleMember)).Return(nil)

		rejected, err := f.membershipService().RejectMembership(f.ctx, user("admin"), testClubID, "rider", MemberActionInput{Reason: "Full"})
		require.NoError(t, err)
		assert.True(t, rejected.IsRemoved())
	})
}

func TestMembershipService_Listing(t *testing.T) {
	t.Run("club members clamps the limit", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))
		expected := ports.MemberListOptions{ListOptions: ports.ListOptions{Limit: ports.MaxListLimit}, Role: entities.RoleAdmin}
		f.memberships.On("ListByClub", f.ctx, testClubID, expected).
			Return(ports.Page[*entities.Membership]{HasMore: true, NextCursor: "abc"}, nil)

		page, err := f.membershipService().ListClubMembers(f.ctx, user("rider"), testClubID,
			ports.MemberListOptions{ListOptions: ports.ListOptions{Limit: 500}, Role: entities.RoleAdmin})

		require.NoError(t, err)
		assert.True(t, page.HasMore)
		assert.Equal(t, "abc", page.NextCursor)
	})

	t.Run("club not found", func(t *testing.T) {
		f := newFixture(t)
		f.clubs.On("GetByID", f.ctx, testClubID).Return(nil, nil)

		_, err := f.membershipService().ListClubMembers(f.ctx, user("rider"), testClubID, ports.MemberListOptions{})
		assertDomainError(t, err, pkgerrors.ErrClubNotFound)
	})

	t.Run("user memberships default limit", func(t *testing.T) {
		f := newFixture(t)
		expected := ports.UserMembershipListOptions{ListOptions: ports.ListOptions{Limit: ports.DefaultListLimit}}
		f.memberships.On("ListByUser", f.ctx, "rider", expected).Return(ports.Page[*entities.Membership]{}, nil)

		_, err := f.membershipService().GetUserMemberships(f.ctx, user("rider"), ports.UserMembershipListOptions{})
		require.NoError(t, err)
		f.memberships.AssertExpectations(t)
	})

	t.Run("bad cursor is a validation error", func(t *testing.T) {
		f := newFixture(t)
		f.memberships.On("ListByUser", f.ctx, "rider", mock.Anything).
			Return(ports.Page[*entities.Membership]{}, ports.ErrInvalidCursor{Reason: "not base64"})

		_, err := f.membershipService().GetUserMemberships(f.ctx, user("rider"), ports.UserMembershipListOptions{ListOptions: ports.ListOptions{Cursor: "%%"}})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestMembershipService_GetMembership(t *testing.T) {
	t.Run("own membership needs no capability", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusPending))

		m, err := f.membershipService().GetMembership(f.ctx, user("rider"), testClubID, "rider")

		require.NoError(t, err)
		assert.Equal(t, entities.MembershipStatusPending, m.Status())
	})

	t.Run("active member reads another member", func(t *testing.T) {
		f := newFixture(t)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))

		m, err := f.membershipService().GetMembership(f.ctx, user("rider"), testClubID, "admin")

		require.NoError(t, err)
		assert.Equal(t, entities.RoleAdmin, m.Role())
	})

	t.Run("outsider is denied", func(t *testing.T) {
		f := newFixture(t)
		f.withoutMember(testClubID, "stranger")

		_, err := f.membershipService().GetMembership(f.ctx, user("stranger"), testClubID, "admin")
		assertDomainError(t, err, pkgerrors.ErrInsufficientPrivileges)
	})

	t.Run("missing membership", func(t *testing.T) {
		f := newFixture(t)
		f.withoutMember(testClubID, "rider")

		_, err := f.membershipService().GetMembership(f.ctx, user("rider"), testClubID, "rider")
		assertDomainError(t, err, pkgerrors.ErrMembershipNotFound)
	})
}
