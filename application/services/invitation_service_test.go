package services

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"collective-rides/application/ports"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testInvitationID = valueobjects.InvitationID("inv_weekend")

func testInvitation(t *testing.T, mutate func(s *entities.InvitationSnapshot)) *entities.Invitation {
	t.Helper()
	s := entities.InvitationSnapshot{
		ID:             testInvitationID.String(),
		Type:           entities.InvitationTypeEmail,
		ClubID:         testClubID.String(),
		Email:          "rider@example.com",
		Role:           entities.RoleMember,
		Status:         entities.InvitationStatusPending,
		InvitedBy:      "admin",
		InvitedAt:      fixtureNow.Add(-24 * time.Hour),
		ExpiresAt:      fixtureNow.Add(6 * 24 * time.Hour),
		Token:          "0123456789abcdef0123456789abcdef",
		DeliveryMethod: entities.DeliveryEmail,
	}
	if mutate != nil {
		mutate(&s)
	}
	inv, err := entities.ReconstructInvitation(s)
	require.NoError(t, err)
	return inv
}

func invitationWith(status entities.InvitationStatus) interface{} {
	return mock.MatchedBy(func(inv *entities.Invitation) bool { return inv.Status() == status })
}

func TestInvitationService_CreateInvitation_Success(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
	f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
	f.invitations.On("HasPendingInvitation", f.ctx, testClubID, "new.rider@example.com", fixtureNow).Return(false, nil)
	f.invitations.On("Create", f.ctx, mock.AnythingOfType("*entities.Invitation")).Return(nil)

	// Act
	inv, err := f.invitationService().CreateInvitation(f.ctx, user("admin"), testClubID, CreateInvitationInput{
		Type:  entities.InvitationTypeEmail,
		Email: "New.Rider@Example.com",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "new.rider@example.com", inv.Email())
	assert.Equal(t, entities.RoleMember, inv.Role())
	assert.Equal(t, entities.InvitationStatusPending, inv.Status())
	assert.Equal(t, fixtureNow.AddDate(0, 0, 7), inv.ExpiresAt())
	assert.Len(t, inv.Token(), valueobjects.InvitationTokenLength)
	assert.Equal(t, entities.DeliveryEmail, inv.DeliveryMethod())
	f.invitations.AssertExpectations(t)
}

func TestInvitationService_CreateInvitation_Errors(t *testing.T) {
	t.Run("invitee is already a member", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusSuspended))

		_, err := f.invitationService().CreateInvitation(f.ctx, user("admin"), testClubID, CreateInvitationInput{
			Type:   entities.InvitationTypeUser,
			UserID: "rider",
		})
		assertDomainError(t, err, pkgerrors.ErrCannotInviteExistingMember)
	})

	t.Run("pending invitation exists", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
		f.invitations.On("HasPendingInvitation", f.ctx, testClubID, "rider@example.com", fixtureNow).Return(true, nil)

		_, err := f.invitationService().CreateInvitation(f.ctx, user("admin"), testClubID, CreateInvitationInput{
			Type:  entities.InvitationTypeEmail,
			Email: "rider@example.com",
		})
		assertDomainError(t, err, pkgerrors.ErrUserAlreadyInvited)
		f.invitations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("admin cannot invite an admin", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))

		_, err := f.invitationService().CreateInvitation(f.ctx, user("admin"), testClubID, CreateInvitationInput{
			Type:  entities.InvitationTypeEmail,
			Email: "rider@example.com",
			Role:  entities.RoleAdmin,
		})
		assertDomainError(t, err, pkgerrors.ErrInsufficientPrivileges)
	})

	t.Run("member cannot invite", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))

		_, err := f.invitationService().CreateInvitation(f.ctx, user("rider"), testClubID, CreateInvitationInput{
			Type:  entities.InvitationTypeEmail,
			Email: "friend@example.com",
		})
		assertDomainError(t, err, pkgerrors.ErrInsufficientPrivileges)
	})

	t.Run("expiry beyond thirty days", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "owner", entities.RoleOwner, entities.MembershipStatusActive))

		_, err := f.invitationService().CreateInvitation(f.ctx, user("owner"), testClubID, CreateInvitationInput{
			Type:          entities.InvitationTypeEmail,
			Email:         "friend@example.com",
			ExpiresInDays: 45,
		})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("archived club", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusArchived))

		_, err := f.invitationService().CreateInvitation(f.ctx, user("owner"), testClubID, CreateInvitationInput{
			Type:  entities.InvitationTypeEmail,
			Email: "friend@example.com",
		})
		assertDomainError(t, err, pkgerrors.ErrOperationNotAllowed)
	})
}

func TestInvitationService_ProcessInvitation_Accept(t *testing.T) {
	// Arrange
	f := newFixture(t)
	pending := testInvitation(t, func(s *entities.InvitationSnapshot) { s.Role = entities.RoleAdmin })
	f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
	f.withoutMember(testClubID, "rider")
	f.invitations.On("Accept", f.ctx, pending, invitationWith(entities.InvitationStatusAccepted),
		membershipWith(entities.MembershipStatusActive, entities.RoleAdmin), (*entities.Membership)(nil)).Return(nil)

	// Act
	accepted, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
		ProcessInvitationInput{Action: entities.InvitationActionAccept})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entities.InvitationStatusAccepted, accepted.Status())
	assert.Equal(t, "rider", accepted.UserID())
	require.NotNil(t, accepted.ProcessedAt())
	assert.Equal(t, fixtureNow, *accepted.ProcessedAt())
	f.invitations.AssertExpectations(t)
	f.invitations.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	f.memberships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.publisher.AssertCalled(t, "PublishBatch", f.ctx, mock.Anything)
}

func TestInvitationService_ProcessInvitation_ActivatesPendingRequest(t *testing.T) {
	f := newFixture(t)
	pending := testInvitation(t, nil)
	f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
	request := testMember(t, "rider", entities.RoleMember, entities.MembershipStatusPending)
	f.withMember(request)
	f.invitations.On("Accept", f.ctx, pending, mock.Anything,
		membershipWith(entities.MembershipStatusActive, entities.RoleMember), request).Return(nil)

	_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
		ProcessInvitationInput{Action: entities.InvitationActionAccept})

	require.NoError(t, err)
	f.invitations.AssertExpectations(t)
	f.memberships.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	f.memberships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvitationService_ProcessInvitation_Errors(t *testing.T) {
	t.Run("lazily expired", func(t *testing.T) {
		f := newFixture(t)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(testInvitation(t, func(s *entities.InvitationSnapshot) {
			s.InvitedAt = fixtureNow.AddDate(0, 0, -8)
			s.ExpiresAt = fixtureNow.Add(-time.Hour)
		}), nil)

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})

		assertDomainError(t, err, pkgerrors.ErrInvitationExpired)
		assert.Equal(t, http.StatusGone, pkgerrors.GetDomainError(err).StatusCode)
		f.invitations.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already accepted", func(t *testing.T) {
		f := newFixture(t)
		processedAt := fixtureNow.Add(-time.Hour)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(testInvitation(t, func(s *entities.InvitationSnapshot) {
			s.Status = entities.InvitationStatusAccepted
			s.ProcessedAt = &processedAt
		}), nil)

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionDecline})
		assertDomainError(t, err, pkgerrors.ErrInvitationAlreadyProcessed)
	})

	t.Run("addressed to someone else", func(t *testing.T) {
		f := newFixture(t)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(testInvitation(t, nil), nil)

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("stranger"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})
		assertDomainError(t, err, pkgerrors.ErrOperationNotAllowed)
	})

	t.Run("unknown invitation", func(t *testing.T) {
		f := newFixture(t)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(nil, nil)

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})
		assertDomainError(t, err, pkgerrors.ErrInvitationNotFound)
	})

	t.Run("already an active member", func(t *testing.T) {
		f := newFixture(t)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(testInvitation(t, nil), nil)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})
		assertDomainError(t, err, pkgerrors.ErrAlreadyMember)
	})

	t.Run("processed concurrently", func(t *testing.T) {
		f := newFixture(t)
		pending := testInvitation(t, nil)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
		f.invitations.On("Update", f.ctx, pending, mock.Anything).
			Return(ports.NewConflict(ports.ResourceInvitation, testInvitationID.String(), "not pending"))

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionDecline})
		assertDomainError(t, err, pkgerrors.ErrInvitationAlreadyProcessed)
	})
}

func TestInvitationService_Decline(t *testing.T) {
	f := newFixture(t)
	pending := testInvitation(t, func(s *entities.InvitationSnapshot) {
		s.Type = entities.InvitationTypeUser
		s.Email = ""
		s.UserID = "rider"
		s.Token = ""
		s.DeliveryMethod = entities.DeliveryInApp
	})
	f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
	f.invitations.On("Update", f.ctx, pending, invitationWith(entities.InvitationStatusDeclined)).Return(nil)

	declined, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
		ProcessInvitationInput{Action: entities.InvitationActionDecline})

	require.NoError(t, err)
	assert.Equal(t, entities.InvitationStatusDeclined, declined.Status())
	f.memberships.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvitationService_CancelInvitation(t *testing.T) {
	t.Run("inviter cancels", func(t *testing.T) {
		f := newFixture(t)
		pending := testInvitation(t, nil)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
		f.invitations.On("Update", f.ctx, pending, invitationWith(entities.InvitationStatusCancelled)).Return(nil)

		cancelled, err := f.invitationService().CancelInvitation(f.ctx, user("admin"), testInvitationID)

		require.NoError(t, err)
		assert.Equal(t, entities.InvitationStatusCancelled, cancelled.Status())
		f.memberships.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("plain member cannot cancel", func(t *testing.T) {
		f := newFixture(t)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(testInvitation(t, nil), nil)
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))

		_, err := f.invitationService().CancelInvitation(f.ctx, user("rider"), testInvitationID)
		assertDomainError(t, err, pkgerrors.ErrInsufficientPrivileges)
	})
}

func TestInvitationService_ListMyInvitations(t *testing.T) {
	t.Run("by user id", func(t *testing.T) {
		f := newFixture(t)
		expected := ports.InvitationListOptions{ListOptions: ports.ListOptions{Limit: ports.DefaultListLimit}}
		f.invitations.On("ListByInvitee", f.ctx, ports.Invitee{UserID: "rider"}, expected).
			Return(ports.Page[*entities.Invitation]{}, nil)

		_, err := f.invitationService().ListMyInvitations(f.ctx, user("rider"), false, ports.InvitationListOptions{})
		require.NoError(t, err)
		f.invitations.AssertExpectations(t)
	})

	t.Run("by lower-cased email", func(t *testing.T) {
		f := newFixture(t)
		f.invitations.On("ListByInvitee", f.ctx, ports.Invitee{Email: "rider@example.com"}, mock.Anything).
			Return(ports.Page[*entities.Invitation]{}, nil)

		caller := user("rider")
		caller.Email = "Rider@Example.com"
		_, err := f.invitationService().ListMyInvitations(f.ctx, caller, true, ports.InvitationListOptions{})
		require.NoError(t, err)
		f.invitations.AssertExpectations(t)
	})
}

func TestInvitationService_ExpireOverdueInvitations(t *testing.T) {
	// Arrange
	f := newFixture(t)
	lapsed := func(id string) *entities.Invitation {
		return testInvitation(t, func(s *entities.InvitationSnapshot) {
			s.ID = id
			s.InvitedAt = fixtureNow.AddDate(0, 0, -10)
			s.ExpiresAt = fixtureNow.AddDate(0, 0, -3)
		})
	}
	first, second := lapsed("inv_first"), lapsed("inv_second")
	f.invitations.On("ListExpiredPending", f.ctx, fixtureNow, expirySweepBatchSize).
		Return([]*entities.Invitation{first, second}, nil)
	f.invitations.On("Update", f.ctx, first, invitationWith(entities.InvitationStatusExpired)).Return(nil)
	f.invitations.On("Update", f.ctx, second, mock.Anything).
		Return(ports.NewConflict(ports.ResourceInvitation, "inv_second", "already processed"))

	// Act
	count, err := f.invitationService().ExpireOverdueInvitations(f.ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	f.invitations.AssertNumberOfCalls(t, "ListExpiredPending", 1)
}

func TestInvitationService_ListClubInvitations(t *testing.T) {
	t.Run("admin lists by status", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "admin", entities.RoleAdmin, entities.MembershipStatusActive))
		expected := ports.InvitationListOptions{
			ListOptions: ports.ListOptions{Limit: ports.DefaultListLimit},
			Status:      entities.InvitationStatusPending,
		}
		f.invitations.On("ListByClub", f.ctx, testClubID, expected).
			Return(ports.Page[*entities.Invitation]{Items: []*entities.Invitation{testInvitation(t, nil)}}, nil)

		page, err := f.invitationService().ListClubInvitations(f.ctx, user("admin"), testClubID,
			ports.InvitationListOptions{Status: entities.InvitationStatusPending})

		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
	})

	t.Run("plain member is denied", func(t *testing.T) {
		f := newFixture(t)
		f.withClub(testClub(t, "Sydney Spokes", entities.ClubStatusActive))
		f.withMember(testMember(t, "rider", entities.RoleMember, entities.MembershipStatusActive))

		_, err := f.invitationService().ListClubInvitations(f.ctx, user("rider"), testClubID, ports.InvitationListOptions{})

		assertDomainError(t, err, pkgerrors.ErrInsufficientPrivileges)
		f.invitations.AssertNotCalled(t, "ListByClub", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("club not found", func(t *testing.T) {
		f := newFixture(t)
		f.clubs.On("GetByID", f.ctx, testClubID).Return(nil, nil)

		_, err := f.invitationService().ListClubInvitations(f.ctx, user("admin"), testClubID, ports.InvitationListOptions{})
		assertDomainError(t, err, pkgerrors.ErrClubNotFound)
	})
}

func TestInvitationService_ProcessInvitation_AcceptFailures(t *testing.T) {
	t.Run("failed write leaves the invitation pending for a retry", func(t *testing.T) {
		f := newFixture(t)
		pending := testInvitation(t, nil)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
		f.withoutMember(testClubID, "rider")
		f.invitations.On("Accept", f.ctx, pending, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("ProvisionedThroughputExceeded")).Once()
		f.invitations.On("Accept", f.ctx, pending, mock.Anything, mock.Anything, mock.Anything).
			Return(nil).Once()
		service := f.invitationService()

		_, err := service.ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to accept invitation")
		f.publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)

		accepted, err := service.ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})

		require.NoError(t, err)
		assert.Equal(t, entities.InvitationStatusAccepted, accepted.Status())
		f.invitations.AssertNumberOfCalls(t, "Accept", 2)
		f.invitations.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("membership created concurrently", func(t *testing.T) {
		f := newFixture(t)
		pending := testInvitation(t, nil)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
		f.withoutMember(testClubID, "rider")
		f.invitations.On("Accept", f.ctx, pending, mock.Anything, mock.Anything, mock.Anything).
			Return(ports.NewConflict(ports.ResourceMembership, "club_spokes#rider", "membership changed"))

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})

		assertDomainError(t, err, pkgerrors.ErrAlreadyMember)
	})

	t.Run("invitation processed concurrently", func(t *testing.T) {
		f := newFixture(t)
		pending := testInvitation(t, nil)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
		f.withoutMember(testClubID, "rider")
		f.invitations.On("Accept", f.ctx, pending, mock.Anything, mock.Anything, mock.Anything).
			Return(ports.NewConflict(ports.ResourceInvitation, testInvitationID.String(), "invitation is declined"))

		_, err := f.invitationService().ProcessInvitation(f.ctx, user("rider"), testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})

		assertDomainError(t, err, pkgerrors.ErrInvitationAlreadyProcessed)
	})
}

func TestInvitationService_EmailInvitationsNeedVerifiedEmail(t *testing.T) {
	unverified := user("rider").WithVerifiedEmail(false)

	t.Run("process", func(t *testing.T) {
		f := newFixture(t)
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(testInvitation(t, nil), nil)

		_, err := f.invitationService().ProcessInvitation(f.ctx, unverified, testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionAccept})

		assertDomainError(t, err, pkgerrors.ErrOperationNotAllowed)
		f.invitations.AssertNotCalled(t, "Accept", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("user invitations do not need it", func(t *testing.T) {
		f := newFixture(t)
		pending := testInvitation(t, func(s *entities.InvitationSnapshot) {
			s.Type = entities.InvitationTypeUser
			s.Email = ""
			s.UserID = "rider"
			s.DeliveryMethod = entities.DeliveryInApp
		})
		f.invitations.On("GetByID", f.ctx, testInvitationID).Return(pending, nil)
		f.invitations.On("Update", f.ctx, pending, invitationWith(entities.InvitationStatusDeclined)).Return(nil)

		declined, err := f.invitationService().ProcessInvitation(f.ctx, unverified, testInvitationID,
			ProcessInvitationInput{Action: entities.InvitationActionDecline})

		require.NoError(t, err)
		assert.Equal(t, entities.InvitationStatusDeclined, declined.Status())
	})

	t.Run("list by email", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.invitationService().ListMyInvitations(f.ctx, unverified, true, ports.InvitationListOptions{})

		assertDomainError(t, err, pkgerrors.ErrOperationNotAllowed)
		f.invitations.AssertNotCalled(t, "ListByInvitee", mock.Anything, mock.Anything, mock.Anything)
	})
}
