package dynamodb

import (
	"fmt"
	"time"

	"collective-rides/domain/core/entities"
	"collective-rides/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ItemType discriminates the item variants sharing the table
type ItemType string

const (
	ItemTypeClub                   ItemType = "CLUB"
	ItemTypeClubNameIndex          ItemType = "CLUB_NAME_INDEX"
	ItemTypeClubNameLock           ItemType = "CLUB_NAME_LOCK"
	ItemTypeMembership             ItemType = "MEMBERSHIP"
	ItemTypeMembershipUserIndex    ItemType = "MEMBERSHIP_USER_INDEX"
	ItemTypeMembershipClubIndex    ItemType = "MEMBERSHIP_CLUB_INDEX"
	ItemTypeInvitation             ItemType = "INVITATION"
	ItemTypeInvitationInviteeIndex ItemType = "INVITATION_INVITEE_INDEX"
	ItemTypeInvitationClubIndex    ItemType = "INVITATION_CLUB_INDEX"
	ItemTypeInvitationPendingIndex ItemType = "INVITATION_PENDING_INDEX"
)

// itemKeys is the identity every variant carries. Index variants repeat their table key on the
// GSI they are projected onto.
type itemKeys struct {
	PK       string   `dynamodbav:"PK"`
	SK       string   `dynamodbav:"SK"`
	GSI1PK   string   `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK   string   `dynamodbav:"GSI1SK,omitempty"`
	GSI2PK   string   `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK   string   `dynamodbav:"GSI2SK,omitempty"`
	ItemType ItemType `dynamodbav:"ItemType"`
}

func canonicalKeys(key itemKey, itemType ItemType) itemKeys {
	return itemKeys{PK: key.PK, SK: key.SK, ItemType: itemType}
}

func gsi1Keys(key itemKey, itemType ItemType) itemKeys {
	return itemKeys{PK: key.PK, SK: key.SK, GSI1PK: key.PK, GSI1SK: key.SK, ItemType: itemType}
}

func gsi2Keys(key itemKey, itemType ItemType) itemKeys {
	return itemKeys{PK: key.PK, SK: key.SK, GSI2PK: key.PK, GSI2SK: key.SK, ItemType: itemType}
}

// clubItem is the canonical club row and its name index projection
type clubItem struct {
	itemKeys
	ClubID      string `dynamodbav:"ClubID"`
	Name        string `dynamodbav:"Name"`
	NameLower   string `dynamodbav:"NameLower"`
	Description string `dynamodbav:"Description,omitempty"`
	City        string `dynamodbav:"City,omitempty"`
	LogoURL     string `dynamodbav:"LogoURL,omitempty"`
	Status      string `dynamodbav:"Status"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
}

func newClubItem(keys itemKeys, club *entities.Club) clubItem {
	return clubItem{
		itemKeys:    keys,
		ClubID:      club.ID().String(),
		Name:        club.Name(),
		NameLower:   club.NameKey(),
		Description: club.Description(),
		City:        club.City(),
		LogoURL:     club.LogoURL(),
		Status:      string(club.Status()),
		CreatedAt:   utils.FormatTimestamp(club.CreatedAt()),
		UpdatedAt:   utils.FormatTimestamp(club.UpdatedAt()),
	}
}

func clubCanonicalItem(club *entities.Club) clubItem {
	return newClubItem(canonicalKeys(clubKey(club.ID()), ItemTypeClub), club)
}

func clubNameIndexItem(club *entities.Club) clubItem {
	return newClubItem(gsi1Keys(clubNameIndexKey(club.NameKey(), club.ID()), ItemTypeClubNameIndex), club)
}

func (i clubItem) toEntity() (*entities.Club, error) {
	createdAt, err := parseTime(i.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructClub(entities.ClubSnapshot{
		ID:          i.ClubID,
		Name:        i.Name,
		Description: i.Description,
		City:        i.City,
		LogoURL:     i.LogoURL,
		Status:      entities.ClubStatus(i.Status),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	})
}

// clubNameLockItem reserves a normalized club name
type clubNameLockItem struct {
	itemKeys
	ClubID    string `dynamodbav:"ClubID"`
	NameLower string `dynamodbav:"NameLower"`
}

func newClubNameLockItem(club *entities.Club) clubNameLockItem {
	return clubNameLockItem{
		itemKeys:  canonicalKeys(clubNameLockKey(club.NameKey()), ItemTypeClubNameLock),
		ClubID:    club.ID().String(),
		NameLower: club.NameKey(),
	}
}

// membershipItem is the canonical membership row and its user and club-member projections
type membershipItem struct {
	itemKeys
	MembershipID string `dynamodbav:"MembershipID"`
	ClubID       string `dynamodbav:"ClubID"`
	UserID       string `dynamodbav:"UserID"`
	Role         string `dynamodbav:"Role"`
	Status       string `dynamodbav:"Status"`
	JoinedAt     string `dynamodbav:"JoinedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
	JoinMessage  string `dynamodbav:"JoinMessage,omitempty"`
	InvitedBy    string `dynamodbav:"InvitedBy,omitempty"`
	ProcessedBy  string `dynamodbav:"ProcessedBy,omitempty"`
	ProcessedAt  string `dynamodbav:"ProcessedAt,omitempty"`
	Reason       string `dynamodbav:"Reason,omitempty"`
}

func newMembershipItem(keys itemKeys, m *entities.Membership) membershipItem {
	return membershipItem{
		itemKeys:     keys,
		MembershipID: m.ID().String(),
		ClubID:       m.ClubID().String(),
		UserID:       m.UserID(),
		Role:         string(m.Role()),
		Status:       string(m.Status()),
		JoinedAt:     utils.FormatTimestamp(m.JoinedAt()),
		UpdatedAt:    utils.FormatTimestamp(m.UpdatedAt()),
		JoinMessage:  m.JoinMessage(),
		InvitedBy:    m.InvitedBy(),
		ProcessedBy:  m.ProcessedBy(),
		ProcessedAt:  formatOptionalTime(m.ProcessedAt()),
		Reason:       m.Reason(),
	}
}

func membershipCanonicalItem(m *entities.Membership) membershipItem {
	return newMembershipItem(canonicalKeys(membershipKey(m.ClubID(), m.UserID()), ItemTypeMembership), m)
}

func membershipUserIndexItem(m *entities.Membership) membershipItem {
	return newMembershipItem(gsi1Keys(userMembershipKey(m.UserID(), m.ClubID()), ItemTypeMembershipUserIndex), m)
}

func membershipClubIndexItem(m *entities.Membership) membershipItem {
	return newMembershipItem(gsi2Keys(clubMemberKey(m.ClubID(), m.Role(), m.UserID()), ItemTypeMembershipClubIndex), m)
}

func (i membershipItem) toEntity() (*entities.Membership, error) {
	joinedAt, err := parseTime(i.JoinedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	processedAt, err := parseOptionalTime(i.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructMembership(entities.MembershipSnapshot{
		ID:          i.MembershipID,
		ClubID:      i.ClubID,
		UserID:      i.UserID,
		Role:        entities.MembershipRole(i.Role),
		Status:      entities.MembershipStatus(i.Status),
		JoinedAt:    joinedAt,
		UpdatedAt:   updatedAt,
		JoinMessage: i.JoinMessage,
		InvitedBy:   i.InvitedBy,
		ProcessedBy: i.ProcessedBy,
		ProcessedAt: processedAt,
		Reason:      i.Reason,
	})
}

// invitationItem is the canonical invitation row and its invitee, club and pending projections
type invitationItem struct {
	itemKeys
	InvitationID   string `dynamodbav:"InvitationID"`
	Type           string `dynamodbav:"Type"`
	ClubID         string `dynamodbav:"ClubID"`
	Email          string `dynamodbav:"Email,omitempty"`
	UserID         string `dynamodbav:"UserID,omitempty"`
	Role           string `dynamodbav:"Role"`
	Status         string `dynamodbav:"Status"`
	InvitedBy      string `dynamodbav:"InvitedBy"`
	InvitedAt      string `dynamodbav:"InvitedAt"`
	ExpiresAt      string `dynamodbav:"ExpiresAt"`
	ProcessedAt    string `dynamodbav:"ProcessedAt,omitempty"`
	Message        string `dynamodbav:"Message,omitempty"`
	Token          string `dynamodbav:"Token,omitempty"`
	DeliveryMethod string `dynamodbav:"DeliveryMethod"`
}

func newInvitationItem(keys itemKeys, inv *entities.Invitation) invitationItem {
	return invitationItem{
		itemKeys:       keys,
		InvitationID:   inv.ID().String(),
		Type:           string(inv.Type()),
		ClubID:         inv.ClubID().String(),
		Email:          inv.Email(),
		UserID:         inv.UserID(),
		Role:           string(inv.Role()),
		Status:         string(inv.Status()),
		InvitedBy:      inv.InvitedBy(),
		InvitedAt:      utils.FormatTimestamp(inv.InvitedAt()),
		ExpiresAt:      utils.FormatTimestamp(inv.ExpiresAt()),
		ProcessedAt:    formatOptionalTime(inv.ProcessedAt()),
		Message:        inv.Message(),
		Token:          inv.Token(),
		DeliveryMethod: string(inv.DeliveryMethod()),
	}
}

func invitationCanonicalItem(inv *entities.Invitation) invitationItem {
	return newInvitationItem(canonicalKeys(invitationKey(inv.ID()), ItemTypeInvitation), inv)
}

func invitationInviteeIndexItem(inv *entities.Invitation) invitationItem {
	return newInvitationItem(gsi1Keys(inviteeInvitationKey(inv), ItemTypeInvitationInviteeIndex), inv)
}

func invitationClubIndexItem(inv *entities.Invitation) invitationItem {
	return newInvitationItem(gsi1Keys(clubInvitationKey(inv.ClubID(), inv.Status(), inv.ID()), ItemTypeInvitationClubIndex), inv)
}

func invitationPendingIndexItem(inv *entities.Invitation) invitationItem {
	return newInvitationItem(gsi2Keys(pendingInvitationKey(inv.ExpiresAt(), inv.ID()), ItemTypeInvitationPendingIndex), inv)
}

func (i invitationItem) toEntity() (*entities.Invitation, error) {
	invitedAt, err := parseTime(i.InvitedAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseTime(i.ExpiresAt)
	if err != nil {
		return nil, err
	}
	processedAt, err := parseOptionalTime(i.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructInvitation(entities.InvitationSnapshot{
		ID:             i.InvitationID,
		Type:           entities.InvitationType(i.Type),
		ClubID:         i.ClubID,
		Email:          i.Email,
		UserID:         i.UserID,
		Role:           entities.MembershipRole(i.Role),
		Status:         entities.InvitationStatus(i.Status),
		InvitedBy:      i.InvitedBy,
		InvitedAt:      invitedAt,
		ExpiresAt:      expiresAt,
		ProcessedAt:    processedAt,
		Message:        i.Message,
		Token:          i.Token,
		DeliveryMethod: entities.DeliveryMethod(i.DeliveryMethod),
	})
}

func marshalItem(v interface{}) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return av, nil
}

// decodeItems unmarshals raw items into variant T and converts each to its entity
func decodeItems[T any, E any](raw []map[string]types.AttributeValue, convert func(T) (E, error)) ([]E, error) {
	out := make([]E, 0, len(raw))
	for _, av := range raw {
		var item T
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		entity, err := convert(item)
		if err != nil {
			return nil, fmt.Errorf("failed to convert item: %w", err)
		}
		out = append(out, entity)
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := utils.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return utils.FormatTimestamp(*t)
}
