package resource

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erezmus/crewdesk/internal/apperr"
	"github.com/erezmus/crewdesk/internal/identity"
)

var (
	admin  = identity.User{ID: "u-admin", Role: identity.RoleAdmin}
	worker = identity.User{ID: "u-worker", Role: identity.RoleUser}
)

func TestCreateResourceAdminOnly(t *testing.T) {
	s := NewStore(zerolog.Nop())

	_, err := s.CreateResource(Resource{Title: "Safety form", URL: "https://example.com/f", Kind: KindForm}, worker)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	r, err := s.CreateResource(Resource{Title: "Safety form", URL: "https://example.com/f", Kind: KindForm}, admin)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Len(t, s.Resources(), 1)
}

func TestCreateResourceValidates(t *testing.T) {
	s := NewStore(zerolog.Nop())

	_, err := s.CreateResource(Resource{URL: "https://example.com", Kind: KindDoc}, admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.CreateResource(Resource{Title: "t", Kind: KindDoc}, admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.CreateResource(Resource{Title: "t", URL: "https://example.com", Kind: Kind("wiki")}, admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteResource(t *testing.T) {
	s := NewStore(zerolog.Nop())
	r, err := s.CreateResource(Resource{Title: "t", URL: "https://example.com", Kind: KindOther}, admin)
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteResource(r.ID, worker), apperr.ErrPermissionDenied)
	require.NoError(t, s.DeleteResource(r.ID, admin))
	assert.ErrorIs(t, s.DeleteResource(r.ID, admin), apperr.ErrNotFound)
}

func TestShortcutsFilteredByRole(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.LoadShortcuts([]Shortcut{
		{ID: "board", Title: "Board", Roles: []identity.Role{identity.RoleAdmin, identity.RoleManager, identity.RoleUser}},
		{ID: "admin", Title: "Management", Roles: []identity.Role{identity.RoleAdmin}},
	})

	got := s.ShortcutsFor(worker)
	require.Len(t, got, 1)
	assert.Equal(t, "board", got[0].ID)

	assert.Len(t, s.ShortcutsFor(admin), 2)
}
