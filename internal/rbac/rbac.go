// Package rbac holds the static role permission matrix.
//
// Roles form a strict total order: user < moderator < admin < superadmin.
// Every (Resource, Action) pair maps to the lowest role allowed to perform it and
// higher roles inherit it. Admin is the ceiling of every entry, so admins and
// superadmins hold all permissions.
package rbac

import (
	"fmt"

	"github.com/aimd54/forum-progression/internal/models"
)

// Role is a position in the role hierarchy.
type Role int

// Roles in ascending order of privilege.
const (
	RoleUnknown Role = iota
	RoleUser
	RoleModerator
	RoleAdmin
	RoleSuperadmin
)

// AllRoles lists every valid role in ascending order.
var AllRoles = []Role{RoleUser, RoleModerator, RoleAdmin, RoleSuperadmin}

var roleNames = map[Role]string{
	RoleUser:       models.RoleUser,
	RoleModerator:  models.RoleModerator,
	RoleAdmin:      models.RoleAdmin,
	RoleSuperadmin: models.RoleSuperadmin,
}

// ParseRole converts a stored role name.
func ParseRole(name string) (Role, error) {
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", name)
}

// MustRole converts a stored role name, treating unknown names as RoleUnknown.
func MustRole(name string) Role {
	r, _ := ParseRole(name)
	return r
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "unknown"
}

// AtLeast reports whether r is at or above required in the hierarchy.
func (r Role) AtLeast(required Role) bool {
	return r != RoleUnknown && r >= required
}

// Resource is something a permission applies to.
type Resource int

// Resources.
const (
	ResourceForumPost Resource = iota
	ResourceComment
	ResourceGroup
	ResourceMessage
	ResourceReport
	ResourceUser
	ResourceRole
	ResourceDonationRank
	ResourceXP
	ResourceAchievement
	ResourceSettings
	numResources
)

var resourceNames = [numResources]string{
	"forum_post", "comment", "group", "message", "report",
	"user", "role", "donation_rank", "xp", "achievement", "settings",
}

func (r Resource) String() string {
	if r >= 0 && r < numResources {
		return resourceNames[r]
	}
	return "unknown"
}

// Action is an operation on a resource.
type Action int

// Actions.
const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
	ActionModerate
	ActionManage
	numActions
)

var actionNames = [numActions]string{"read", "create", "update", "delete", "moderate", "manage"}

func (a Action) String() string {
	if a >= 0 && a < numActions {
		return actionNames[a]
	}
	return "unknown"
}

// minimumRole[resource][action] is the lowest role holding the permission.
// RoleUnknown marks a pair nobody below admin holds; admin is applied as the ceiling.
var minimumRole = [numResources][numActions]Role{
	ResourceForumPost: {
		ActionRead: RoleUser, ActionCreate: RoleUser, ActionUpdate: RoleUser,
		ActionDelete: RoleModerator, ActionModerate: RoleModerator,
	},
	ResourceComment: {
		ActionRead: RoleUser, ActionCreate: RoleUser, ActionUpdate: RoleUser,
		ActionDelete: RoleModerator, ActionModerate: RoleModerator,
	},
	ResourceGroup: {
		ActionRead: RoleUser, ActionCreate: RoleUser, ActionUpdate: RoleModerator,
		ActionDelete: RoleModerator, ActionModerate: RoleModerator,
	},
	ResourceMessage: {
		ActionRead: RoleUser, ActionCreate: RoleUser, ActionDelete: RoleModerator,
	},
	ResourceReport: {
		ActionCreate: RoleUser, ActionRead: RoleModerator, ActionUpdate: RoleModerator,
		ActionModerate: RoleModerator,
	},
	ResourceUser: {
		ActionRead: RoleUser, ActionModerate: RoleModerator,
	},
	ResourceXP: {
		ActionRead: RoleUser,
	},
	ResourceAchievement: {
		ActionRead: RoleUser,
	},
	ResourceDonationRank: {
		ActionRead: RoleUser,
	},
}

// HasPermission reports whether role may perform action on resource.
func HasPermission(role Role, resource Resource, action Action) bool {
	if role == RoleUnknown || resource < 0 || resource >= numResources || action < 0 || action >= numActions {
		return false
	}
	required := minimumRole[resource][action]
	if required == RoleUnknown || required > RoleAdmin {
		required = RoleAdmin
	}
	return role.AtLeast(required)
}

// HasPermissionByName is HasPermission for stored role names.
func HasPermissionByName(role string, resource Resource, action Action) bool {
	return HasPermission(MustRole(role), resource, action)
}

// CanAccessAdmin reports whether role may use the admin area.
func CanAccessAdmin(role Role) bool {
	return role.AtLeast(RoleAdmin)
}

// CanAccessModeration reports whether role may use moderation tooling.
func CanAccessModeration(role Role) bool {
	return role.AtLeast(RoleModerator)
}

// CanModifyUser reports whether modifier may change target's account.
// A superadmin can only be modified by another superadmin. Admins may modify
// other admins; moderators only users below them.
func CanModifyUser(modifier, target Role) bool {
	if modifier == RoleUnknown || target == RoleUnknown {
		return false
	}
	if target == RoleSuperadmin {
		return modifier == RoleSuperadmin
	}
	if modifier.AtLeast(RoleAdmin) {
		return true
	}
	return modifier == RoleModerator && target < RoleModerator
}

// CanAssignRole reports whether assigner may grant role to someone.
// Superadmin is never assignable, not even by a superadmin.
func CanAssignRole(assigner, role Role) bool {
	if role == RoleSuperadmin || role == RoleUnknown {
		return false
	}
	if !assigner.AtLeast(RoleAdmin) {
		return false
	}
	return assigner >= role
}
