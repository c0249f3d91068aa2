package dynamodb

import (
	"context"
	"testing"
	"time"

	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testCtx = context.Background()
	testNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	nopLogger = zap.NewNop()
)

func newTestClub(t *testing.T, name string) *entities.Club {
	t.Helper()
	club, err := entities.NewClub(entities.CreateClubInput{Name: name, City: "Sydney"}, testNow)
	require.NoError(t, err)
	return club
}

func newTestMembership(t *testing.T, clubID valueobjects.ClubID, userID string, role entities.MembershipRole, status entities.MembershipStatus) *entities.Membership {
	t.Helper()
	m, err := entities.NewMembership(entities.NewMembershipInput{
		ClubID: clubID,
		UserID: userID,
		Role:   role,
		Status: status,
	}, testNow)
	require.NoError(t, err)
	return m
}

func newEmailInvitation(t *testing.T, clubID valueobjects.ClubID, email string, expiresAt time.Time) *entities.Invitation {
	t.Helper()
	inv, err := entities.NewInvitation(entities.NewInvitationInput{
		Type:      entities.InvitationTypeEmail,
		ClubID:    clubID,
		Email:     email,
		Role:      entities.RoleMember,
		InvitedBy: "admin",
		ExpiresAt: &expiresAt,
	}, testNow)
	require.NoError(t, err)
	return inv
}

func newUserInvitation(t *testing.T, clubID valueobjects.ClubID, userID string, expiresAt time.Time) *entities.Invitation {
	t.Helper()
	inv, err := entities.NewInvitation(entities.NewInvitationInput{
		Type:      entities.InvitationTypeUser,
		ClubID:    clubID,
		UserID:    userID,
		Role:      entities.RoleAdmin,
		InvitedBy: "owner",
		ExpiresAt: &expiresAt,
	}, testNow)
	require.NoError(t, err)
	return inv
}
