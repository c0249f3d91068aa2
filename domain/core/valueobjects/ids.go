package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Identifier prefixes persisted as part of every entity ID
const (
	ClubIDPrefix       = "club"
	MembershipIDPrefix = "mbr"
	InvitationIDPrefix = "inv"
)

// InvitationTokenLength is the fixed length of email invitation tokens
const InvitationTokenLength = 32

// ClubID identifies a club
type ClubID string

// MembershipID identifies a membership row
type MembershipID string

// InvitationID identifies an invitation
type InvitationID string

// NewClubID generates a random club identifier
func NewClubID() ClubID { return ClubID(newPrefixedID(ClubIDPrefix)) }

// NewMembershipID generates a random membership identifier
func NewMembershipID() MembershipID { return MembershipID(newPrefixedID(MembershipIDPrefix)) }

// NewInvitationID generates a random invitation identifier
func NewInvitationID() InvitationID { return InvitationID(newPrefixedID(InvitationIDPrefix)) }

func (id ClubID) String() string       { return string(id) }
func (id MembershipID) String() string { return string(id) }
func (id InvitationID) String() string { return string(id) }

// ParseClubID validates an externally supplied club identifier
func ParseClubID(s string) (ClubID, error) {
	if err := validateID(s); err != nil {
		return "", err
	}
	return ClubID(s), nil
}

// ParseInvitationID validates an externally supplied invitation identifier
func ParseInvitationID(s string) (InvitationID, error) {
	if err := validateID(s); err != nil {
		return "", err
	}
	return InvitationID(s), nil
}

// NewInvitationToken returns a 32 character random token (a v4 UUID without dashes)
func NewInvitationToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newPrefixedID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// validateID rejects IDs that would corrupt composite keys
func validateID(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("identifier cannot be empty")
	}
	if strings.Contains(s, "#") {
		return errors.New("identifier cannot contain '#'")
	}
	if len(s) > 128 {
		return errors.New("identifier is too long")
	}
	return nil
}
