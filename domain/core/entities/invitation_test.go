package entities

import (
	"testing"
	"time"

	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func emailInvite(t *testing.T, expiresAt *time.Time) *Invitation {
	t.Helper()
	inv, err := NewInvitation(NewInvitationInput{
		Type:      InvitationTypeEmail,
		ClubID:    "club_1",
		Email:     "Rider@Example.com",
		InvitedBy: "owner_1",
		ExpiresAt: expiresAt,
	}, testNow)
	require.NoError(t, err)
	return inv
}

func TestNewEmailInvitation(t *testing.T) {
	inv := emailInvite(t, nil)

	assert.Equal(t, "rider@example.com", inv.Email())
	assert.Len(t, inv.Token(), valueobjects.InvitationTokenLength)
	assert.Equal(t, RoleMember, inv.Role())
	assert.Equal(t, InvitationStatusPending, inv.Status())
	assert.Equal(t, DeliveryEmail, inv.DeliveryMethod())
	assert.Equal(t, testNow.AddDate(0, 0, DefaultInvitationExpiryDays), inv.ExpiresAt())
	assert.Equal(t, "rider@example.com", inv.Invitee())
}

func TestNewUserInvitation(t *testing.T) {
	inv, err := NewInvitation(NewInvitationInput{
		Type:      InvitationTypeUser,
		ClubID:    "club_1",
		UserID:    "user_2",
		Role:      RoleAdmin,
		InvitedBy: "owner_1",
	}, testNow)
	require.NoError(t, err)

	assert.Empty(t, inv.Token())
	assert.Equal(t, DeliveryInApp, inv.DeliveryMethod())
	assert.Equal(t, "user_2", inv.Invitee())
}

func TestNewInvitationValidation(t *testing.T) {
	tooLate := testNow.AddDate(0, 0, 45)
	past := testNow.Add(-time.Minute)

	tests := []struct {
		name  string
		input NewInvitationInput
	}{
		{"expiry beyond 30 days", NewInvitationInput{Type: InvitationTypeEmail, ClubID: "club_1", Email: "a@b.co", InvitedBy: "o", ExpiresAt: &tooLate}},
		{"expiry in the past", NewInvitationInput{Type: InvitationTypeEmail, ClubID: "club_1", Email: "a@b.co", InvitedBy: "o", ExpiresAt: &past}},
		{"invalid email", NewInvitationInput{Type: InvitationTypeEmail, ClubID: "club_1", Email: "nope", InvitedBy: "o"}},
		{"user without id", NewInvitationInput{Type: InvitationTypeUser, ClubID: "club_1", InvitedBy: "o"}},
		{"owner role", NewInvitationInput{Type: InvitationTypeUser, ClubID: "club_1", UserID: "u", Role: RoleOwner, InvitedBy: "o"}},
		{"unknown type", NewInvitationInput{Type: "sms", ClubID: "club_1", UserID: "u", InvitedBy: "o"}},
		{"missing inviter", NewInvitationInput{Type: InvitationTypeUser, ClubID: "club_1", UserID: "u"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := NewInvitation(tt.input, testNow)
			assert.Nil(t, inv)
			assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestLazyExpiry(t *testing.T) {
	inv := emailInvite(t, nil)
	afterExpiry := inv.ExpiresAt().Add(time.Second)

	assert.False(t, inv.IsExpired(testNow))
	assert.True(t, inv.IsExpired(afterExpiry))
	assert.Equal(t, InvitationStatusPending, inv.Status())

	_, err := inv.Process(InvitationActionAccept, "user_9", afterExpiry)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestProcessInvitation(t *testing.T) {
	inv := emailInvite(t, nil)
	later := testNow.Add(time.Hour)

	accepted, err := inv.Process(InvitationActionAccept, "user_9", later)
	require.NoError(t, err)
	assert.Equal(t, InvitationStatusAccepted, accepted.Status())
	assert.Equal(t, "user_9", accepted.UserID())
	assert.Equal(t, later, *accepted.ProcessedAt())

	_, err = accepted.Decline(later)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = inv.Process("maybe", "user_9", later)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestExpire(t *testing.T) {
	inv := emailInvite(t, nil)

	_, err := inv.Expire(testNow)
	assert.Error(t, err)

	expired, err := inv.Expire(inv.ExpiresAt().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, InvitationStatusExpired, expired.Status())
	assert.True(t, expired.IsExpired(testNow))
}

func TestReconstructInvitationRoundTrip(t *testing.T) {
	inv := emailInvite(t, nil)
	rebuilt, err := ReconstructInvitation(inv.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, inv.Snapshot(), rebuilt.Snapshot())
}

func TestInvitationTerminalStates(t *testing.T) {
	statuses := []InvitationStatus{
		InvitationStatusPending, InvitationStatusAccepted, InvitationStatusDeclined,
		InvitationStatusExpired, InvitationStatusCancelled,
	}

	rapid.Check(t, func(t *rapid.T) {
		status := rapid.SampledFrom(statuses).Draw(t, "status")
		action := rapid.SampledFrom([]string{"accept", "decline", "cancel"}).Draw(t, "action")
		offset := time.Duration(rapid.IntRange(0, 6*24).Draw(t, "hours")) * time.Hour

		inv, err := ReconstructInvitation(InvitationSnapshot{
			ID: "inv_1", Type: InvitationTypeUser, ClubID: "club_1", UserID: "user_1",
			Role: RoleMember, Status: status, InvitedBy: "owner_1",
			InvitedAt: testNow, ExpiresAt: testNow.AddDate(0, 0, 7), DeliveryMethod: DeliveryInApp,
		})
		if err != nil {
			t.Fatalf("reconstruct: %v", err)
		}

		now := testNow.Add(offset)
		var next *Invitation
		switch action {
		case "accept":
			next, err = inv.Accept("user_1", now)
		case "decline":
			next, err = inv.Decline(now)
		default:
			next, err = inv.Cancel(now)
		}

		if status.IsTerminal() {
			if !pkgerrors.IsValidation(err) {
				t.Fatalf("%s should reject %s, got %v", status, action, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("pending invitation should allow %s: %v", action, err)
		}
		if !next.Status().IsTerminal() {
			t.Fatalf("expected terminal status, got %s", next.Status())
		}
	})
}
