package dynamodb

import (
	"strings"
	"time"

	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
)

// Attribute names shared by every item in the table
const (
	attrPK       = "PK"
	attrSK       = "SK"
	attrGSI1PK   = "GSI1PK"
	attrGSI1SK   = "GSI1SK"
	attrGSI2PK   = "GSI2PK"
	attrGSI2SK   = "GSI2SK"
	attrItemType = "ItemType"
	attrStatus   = "Status"
)

const (
	metadataSK          = "METADATA"
	lockSK              = "LOCK"
	clubIndexPK         = "INDEX#CLUB"
	pendingInvitationPK = "INDEX#INVITATION#PENDING"
)

// keyTimeLayout is fixed width so lexical order matches chronological order
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

// itemKey is the primary key of a single item
type itemKey struct {
	PK string
	SK string
}

func clubKey(id valueobjects.ClubID) itemKey {
	return itemKey{PK: "CLUB#" + id.String(), SK: metadataSK}
}

func clubNameIndexKey(nameLower string, id valueobjects.ClubID) itemKey {
	return itemKey{PK: clubIndexPK, SK: clubNamePrefix(nameLower) + id.String()}
}

func clubNamePrefix(nameLower string) string {
	return "NAME#" + nameLower + "#ID#"
}

func clubNameLockKey(nameLower string) itemKey {
	return itemKey{PK: "CLUBNAME#" + nameLower, SK: lockSK}
}

func membershipKey(clubID valueobjects.ClubID, userID string) itemKey {
	return itemKey{PK: "CLUB#" + clubID.String(), SK: "MEMBER#" + userID}
}

func userMembershipKey(userID string, clubID valueobjects.ClubID) itemKey {
	return itemKey{PK: userPK(userID), SK: userMembershipPrefix + clubID.String()}
}

const userMembershipPrefix = "MEMBERSHIP#"

func userPK(userID string) string {
	return "USER#" + userID
}

func clubMembersPK(clubID valueobjects.ClubID) string {
	return "CLUB#" + clubID.String() + "#MEMBERS"
}

func clubMemberKey(clubID valueobjects.ClubID, role entities.MembershipRole, userID string) itemKey {
	return itemKey{PK: clubMembersPK(clubID), SK: clubMemberRolePrefix(role) + userID}
}

// clubMemberRolePrefix narrows the club member index to one role, or to all roles when role is empty
func clubMemberRolePrefix(role entities.MembershipRole) string {
	if role == "" {
		return "ROLE#"
	}
	return "ROLE#" + string(role) + "#USER#"
}

func invitationKey(id valueobjects.InvitationID) itemKey {
	return itemKey{PK: "INVITATION#" + id.String(), SK: metadataSK}
}

const inviteeInvitationPrefix = "INVITATION#"

// inviteePK addresses invitations by user id, or by lower-cased email for email invitations
func inviteePK(userID, email string) string {
	if userID != "" {
		return userPK(userID)
	}
	return "EMAIL#" + strings.ToLower(email)
}

func inviteeInvitationKey(inv *entities.Invitation) itemKey {
	pk := inviteePK("", inv.Email())
	if inv.Type() == entities.InvitationTypeUser {
		pk = inviteePK(inv.UserID(), "")
	}
	return itemKey{PK: pk, SK: inviteeInvitationPrefix + inv.ID().String()}
}

func clubInvitationsPK(clubID valueobjects.ClubID) string {
	return "CLUB#" + clubID.String() + "#INVITATIONS"
}

func clubInvitationKey(clubID valueobjects.ClubID, status entities.InvitationStatus, id valueobjects.InvitationID) itemKey {
	return itemKey{PK: clubInvitationsPK(clubID), SK: clubInvitationStatusPrefix(status) + id.String()}
}

func clubInvitationStatusPrefix(status entities.InvitationStatus) string {
	if status == "" {
		return "INVITATION#"
	}
	return "INVITATION#" + string(status) + "#"
}

func pendingInvitationKey(expiresAt time.Time, id valueobjects.InvitationID) itemKey {
	return itemKey{PK: pendingInvitationPK, SK: expiresBefore(expiresAt) + "#" + id.String()}
}

// expiresBefore is the exclusive upper bound for pending-index keys expiring before t
func expiresBefore(t time.Time) string {
	return "EXPIRES#" + t.UTC().Format(keyTimeLayout)
}
