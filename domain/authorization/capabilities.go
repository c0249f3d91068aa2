// Package authorization holds the static role to capability matrix and the
// process-wide cache of system-level capabilities.
package authorization

import (
	"collective-rides/domain/core/entities"
)

// Capability is a named permission checked against a club role
type Capability string

const (
	CapViewClubDetails   Capability = "view_club_details"
	CapViewMembers       Capability = "view_members"
	CapLeaveClub         Capability = "leave_club"
	CapViewInvitations   Capability = "view_invitations"
	CapInviteMembers     Capability = "invite_members"
	CapManageMembers     Capability = "manage_members"
	CapRemoveMembers     Capability = "remove_members"
	CapEditClubDetails   Capability = "edit_club_details"
	CapManageAdmins      Capability = "manage_admins"
	CapChangeClubStatus  Capability = "change_club_status"
	CapTransferOwnership Capability = "transfer_ownership"
)

// SystemCapability is a platform-wide permission derived from the system role
type SystemCapability string

const (
	SysManageAllClubs SystemCapability = "manage_all_clubs"
	SysCreateClubs    SystemCapability = "create_clubs"
	SysViewAllUsers   SystemCapability = "view_all_users"
)

// SystemRole is the platform role resolved from the identity provider
type SystemRole string

const (
	SystemRoleUser      SystemRole = "User"
	SystemRoleSiteAdmin SystemRole = "SiteAdmin"
)

// IsValid reports whether r is a known system role
func (r SystemRole) IsValid() bool {
	return r == SystemRoleUser || r == SystemRoleSiteAdmin
}

var memberCapabilities = []Capability{
	CapViewClubDetails,
	CapViewMembers,
	CapLeaveClub,
}

var adminCapabilities = append(append([]Capability{}, memberCapabilities...),
	CapViewInvitations,
	CapInviteMembers,
	CapManageMembers,
	CapRemoveMembers,
	CapEditClubDetails,
)

var ownerCapabilities = append(append([]Capability{}, adminCapabilities...),
	CapManageAdmins,
	CapChangeClubStatus,
	CapTransferOwnership,
)

var roleCapabilities = map[entities.MembershipRole][]Capability{
	entities.RoleMember: memberCapabilities,
	entities.RoleAdmin:  adminCapabilities,
	entities.RoleOwner:  ownerCapabilities,
}

var systemCapabilities = map[SystemRole][]SystemCapability{
	SystemRoleUser:      {},
	SystemRoleSiteAdmin: {SysManageAllClubs, SysCreateClubs, SysViewAllUsers},
}

var roleRanks = map[entities.MembershipRole]int{
	entities.RoleMember: 1,
	entities.RoleAdmin:  2,
	entities.RoleOwner:  3,
}

// GetCapabilitiesForRole returns a copy of the capabilities granted to a club role
func GetCapabilitiesForRole(role entities.MembershipRole) []Capability {
	caps := roleCapabilities[role]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// RoleHasCapability reports whether role grants capability
func RoleHasCapability(role entities.MembershipRole, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// RoleRank orders roles for management checks; unknown roles rank 0
func RoleRank(role entities.MembershipRole) int {
	return roleRanks[role]
}

// GetSystemCapabilities returns a copy of the capabilities of a system role
func GetSystemCapabilities(role SystemRole) []SystemCapability {
	caps := systemCapabilities[role]
	out := make([]SystemCapability, len(caps))
	copy(out, caps)
	return out
}
