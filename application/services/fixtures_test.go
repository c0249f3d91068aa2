package services

import (
	"context"
	"testing"
	"time"

	"collective-rides/application/ports/mocks"
	"collective-rides/domain/authorization"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixtureNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

const testClubID = valueobjects.ClubID("club_spokes")

type fixture struct {
	ctx         context.Context
	clubs       *mocks.MockClubRepository
	memberships *mocks.MockMembershipRepository
	invitations *mocks.MockInvitationRepository
	publisher   *mocks.MockEventPublisher
	clock       *utils.FixedClock
	authz       *AuthorizationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := utils.NewFixedClock(fixtureNow)
	f := &fixture{
		ctx:         context.Background(),
		clubs:       new(mocks.MockClubRepository),
		memberships: new(mocks.MockMembershipRepository),
		invitations: new(mocks.MockInvitationRepository),
		publisher:   new(mocks.MockEventPublisher),
		clock:       clock,
	}
	f.authz = NewAuthorizationService(f.memberships, authorization.NewSystemCapabilityCache(0, clock), zap.NewNop())
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func (f *fixture) membershipService() *MembershipService {
	return NewMembershipService(f.clubs, f.memberships, f.authz, f.publisher, f.clock, zap.NewNop())
}

func (f *fixture) clubService() *ClubService {
	return NewClubService(f.clubs, f.authz, f.publisher, f.clock, zap.NewNop())
}

func (f *fixture) invitationService() *InvitationService {
	return NewInvitationService(f.clubs, f.memberships, f.invitations, f.authz, f.publisher, f.clock, 7, zap.NewNop())
}

// withMember registers a stored membership for Get lookups
func (f *fixture) withMember(m *entities.Membership) {
	f.memberships.On("Get", f.ctx, m.ClubID(), m.UserID()).Return(m, nil)
}

func (f *fixture) withoutMember(clubID valueobjects.ClubID, userID string) {
	f.memberships.On("Get", f.ctx, clubID, userID).Return(nil, nil)
}

func (f *fixture) withClub(c *entities.Club) {
	f.clubs.On("GetByID", f.ctx, c.ID()).Return(c, nil)
}

func user(id string) authorization.AuthContext {
	return authorization.NewAuthContext(id, id+"@example.com", authorization.SystemRoleUser).WithVerifiedEmail(true)
}

func siteAdmin(id string) authorization.AuthContext {
	return authorization.NewAuthContext(id, id+"@example.com", authorization.SystemRoleSiteAdmin).WithVerifiedEmail(true)
}

func testClub(t *testing.T, name string, status entities.ClubStatus) *entities.Club {
	t.Helper()
	c, err := entities.ReconstructClub(entities.ClubSnapshot{
		ID:        testClubID.String(),
		Name:      name,
		Status:    status,
		CreatedAt: fixtureNow.Add(-24 * time.Hour),
		UpdatedAt: fixtureNow.Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	return c
}

func testMember(t *testing.T, userID string, role entities.MembershipRole, status entities.MembershipStatus) *entities.Membership {
	t.Helper()
	m, err := entities.ReconstructMembership(entities.MembershipSnapshot{
		ID:        "mbr_" + userID,
		ClubID:    testClubID.String(),
		UserID:    userID,
		Role:      role,
		Status:    status,
		JoinedAt:  fixtureNow.Add(-time.Hour),
		UpdatedAt: fixtureNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	return m
}

func membershipWith(status entities.MembershipStatus, role entities.MembershipRole) interface{} {
	return mock.MatchedBy(func(m *entities.Membership) bool {
		return m.Status() == status && m.Role() == role
	})
}

func strPtr(s string) *string { return &s }

func assertDomainError(t *testing.T, err error, target *pkgerrors.DomainError) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, target)
}
