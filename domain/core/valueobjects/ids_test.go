package valueobjects

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDsArePrefixedAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewClubID().String()
		assert.True(t, strings.HasPrefix(id, "club_"))
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}

	assert.True(t, strings.HasPrefix(NewMembershipID().String(), "mbr_"))
	assert.True(t, strings.HasPrefix(NewInvitationID().String(), "inv_"))
}

func TestNewInvitationToken(t *testing.T) {
	token := NewInvitationToken()
	assert.Len(t, token, InvitationTokenLength)
	assert.NotContains(t, token, "-")
	assert.NotEqual(t, token, NewInvitationToken())
}

func TestParseClubID(t *testing.T) {
	_, err := ParseClubID("club_123")
	assert.NoError(t, err)

	_, err = ParseClubID("  ")
	assert.Error(t, err)

	_, err = ParseClubID("club#1")
	assert.Error(t, err)
}
