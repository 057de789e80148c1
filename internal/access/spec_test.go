package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/erezmus/crewdesk/internal/identity"
)

var (
	adminUser   = identity.User{ID: "1", Role: identity.RoleAdmin}
	managerUser = identity.User{ID: "2", Role: identity.RoleManager}
	plainUser   = identity.User{ID: "3", Role: identity.RoleUser}
)

func TestSpec_Allows_All(t *testing.T) {
	spec := All()
	assert.True(t, spec.Allows(adminUser))
	assert.True(t, spec.Allows(managerUser))
	assert.True(t, spec.Allows(plainUser))
}

func TestSpec_Allows_AdminOnly(t *testing.T) {
	spec := AdminOnly()
	assert.True(t, spec.Allows(adminUser))
	assert.False(t, spec.Allows(managerUser))
	assert.False(t, spec.Allows(plainUser))
}

func TestSpec_Allows_Managers(t *testing.T) {
	spec := Managers()
	assert.True(t, spec.Allows(adminUser))
	assert.True(t, spec.Allows(managerUser))
	assert.False(t, spec.Allows(plainUser))
}

func TestSpec_Allows_ExplicitList(t *testing.T) {
	spec := Users("3", "7")
	assert.True(t, spec.Allows(plainUser))
	assert.False(t, spec.Allows(managerUser))
	// Membership is by id, not role: an admin outside the list is denied.
	assert.False(t, spec.Allows(adminUser))
}

func TestSpec_ZeroValueDenies(t *testing.T) {
	var spec Spec
	assert.False(t, spec.Allows(adminUser))
	assert.False(t, spec.Allows(plainUser))
}

func TestSpec_UnknownLiteralDenies(t *testing.T) {
	var spec Spec
	require.NoError(t, json.Unmarshal([]byte(`"everyone"`), &spec))
	assert.Equal(t, KindInvalid, spec.Kind())
	assert.False(t, spec.Allows(adminUser))
}

func TestSpec_JSONRoundTrip(t *testing.T) {
	cases := map[string]Spec{
		`"all"`:     All(),
		`"admin"`:   AdminOnly(),
		`"manager"`: Managers(),
		`["3","7"]`: Users("3", "7"),
	}
	for wire, spec := range cases {
		out, err := json.Marshal(spec)
		require.NoError(t, err)
		assert.JSONEq(t, wire, string(out))

		var back Spec
		require.NoError(t, json.Unmarshal([]byte(wire), &back))
		assert.Equal(t, spec.Kind(), back.Kind())
		assert.Equal(t, spec.UserIDs(), back.UserIDs())
	}
}

func TestSpec_UnmarshalYAML(t *testing.T) {
	var doc struct {
		View Spec `yaml:"view"`
		Edit Spec `yaml:"edit"`
	}
	src := "view: all\nedit:\n  - \"2\"\n  - \"5\"\n"
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	assert.Equal(t, KindAll, doc.View.Kind())
	assert.Equal(t, []string{"2", "5"}, doc.Edit.UserIDs())
}

func TestCanEdit_AdminAndOwnerBypass(t *testing.T) {
	// Spec names nobody, yet admin and owner still edit.
	spec := Users()
	assert.True(t, CanEdit(adminUser, "someone-else", spec))
	assert.True(t, CanEdit(plainUser, plainUser.ID, spec))
	assert.False(t, CanEdit(managerUser, "someone-else", spec))
}

func TestCanEdit_SpecGrant(t *testing.T) {
	assert.True(t, CanEdit(managerUser, "owner-x", Managers()))
	assert.False(t, CanEdit(plainUser, "owner-x", Managers()))
	assert.True(t, CanEdit(plainUser, "owner-x", Users("3")))
}

func TestViewAndEditResolveIndependently(t *testing.T) {
	// View restricted to u3, edit restricted to managers: u3 can view
	// but not edit, the manager can edit but not view.
	view := Users("3")
	edit := Managers()

	assert.True(t, CanView(plainUser, view))
	assert.False(t, CanEdit(plainUser, "owner-x", edit))

	assert.False(t, CanView(managerUser, view))
	assert.True(t, CanEdit(managerUser, "owner-x", edit))
}

func TestCanComment(t *testing.T) {
	assert.True(t, CanComment(plainUser, All()))
	assert.False(t, CanComment(plainUser, Managers()))
	assert.True(t, CanComment(managerUser, Managers()))
}
