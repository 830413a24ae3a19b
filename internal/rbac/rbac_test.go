package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRole("owner")
	assert.Error(t, err)
	assert.Equal(t, RoleUnknown, MustRole("owner"))
}

func TestCanAssignRole_NeverSuperadmin(t *testing.T) {
	for _, assigner := range append([]Role{RoleUnknown}, AllRoles...) {
		assert.False(t, CanAssignRole(assigner, RoleSuperadmin), "assigner %s", assigner)
	}
}

func TestCanAssignRole(t *testing.T) {
	tests := []struct {
		assigner Role
		role     Role
		expected bool
	}{
		{RoleUser, RoleUser, false},
		{RoleModerator, RoleUser, false},
		{RoleAdmin, RoleUser, true},
		{RoleAdmin, RoleModerator, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleSuperadmin, RoleAdmin, true},
		{RoleAdmin, RoleUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.assigner.String()+"->"+tt.role.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, CanAssignRole(tt.assigner, tt.role))
		})
	}
}

func TestCanModifyUser(t *testing.T) {
	tests := []struct {
		modifier Role
		target   Role
		expected bool
	}{
		{RoleSuperadmin, RoleSuperadmin, true},
		{RoleAdmin, RoleSuperadmin, false},
		{RoleModerator, RoleSuperadmin, false},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleModerator, true},
		{RoleAdmin, RoleUser, true},
		{RoleModerator, RoleUser, true},
		{RoleModerator, RoleModerator, false},
		{RoleModerator, RoleAdmin, false},
		{RoleUser, RoleUser, false},
		{RoleUnknown, RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.modifier.String()+"->"+tt.target.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, CanModifyUser(tt.modifier, tt.target))
		})
	}
}

func TestHasPermission_Inheritance(t *testing.T) {
	// Anything a role can do, every higher role can do too.
	for res := Resource(0); res < numResources; res++ {
		for act := Action(0); act < numActions; act++ {
			for i := 1; i < len(AllRoles); i++ {
				lower, higher := AllRoles[i-1], AllRoles[i]
				if HasPermission(lower, res, act) {
					assert.True(t, HasPermission(higher, res, act),
						"%s inherits %s:%s from %s", higher, res, act, lower)
				}
			}
		}
	}
}

func TestHasPermission_AdminsHoldEverything(t *testing.T) {
	for res := Resource(0); res < numResources; res++ {
		for act := Action(0); act < numActions; act++ {
			assert.True(t, HasPermission(RoleAdmin, res, act))
			assert.True(t, HasPermission(RoleSuperadmin, res, act))
		}
	}
}

func TestHasPermission_Matrix(t *testing.T) {
	assert.True(t, HasPermission(RoleUser, ResourceForumPost, ActionCreate))
	assert.False(t, HasPermission(RoleUser, ResourceForumPost, ActionDelete))
	assert.True(t, HasPermission(RoleModerator, ResourceForumPost, ActionDelete))
	assert.False(t, HasPermission(RoleModerator, ResourceDonationRank, ActionManage))
	assert.False(t, HasPermission(RoleModerator, ResourceRole, ActionUpdate))
	assert.True(t, HasPermission(RoleUser, ResourceReport, ActionCreate))
	assert.False(t, HasPermission(RoleUser, ResourceReport, ActionRead))
	assert.False(t, HasPermission(RoleUnknown, ResourceXP, ActionRead))
	assert.False(t, HasPermission(RoleAdmin, numResources, ActionRead))
	assert.True(t, HasPermissionByName("moderator", ResourceReport, ActionModerate))
}

func TestAreaAccess(t *testing.T) {
	assert.False(t, CanAccessAdmin(RoleModerator))
	assert.True(t, CanAccessAdmin(RoleAdmin))
	assert.True(t, CanAccessAdmin(RoleSuperadmin))
	assert.False(t, CanAccessModeration(RoleUser))
	assert.True(t, CanAccessModeration(RoleModerator))
}
