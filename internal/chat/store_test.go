package chat

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erezmus/crewdesk/internal/apperr"
	"github.com/erezmus/crewdesk/internal/identity"
)

var (
	admin   = identity.User{ID: "u-admin", Username: "root", Name: "Root", Role: identity.RoleAdmin}
	manager = identity.User{ID: "u-mgr", Username: "mgr", Name: "Morgan", Role: identity.RoleManager}
	worker  = identity.User{ID: "u-worker", Username: "worker", Name: "Willa", Role: identity.RoleUser}
	other   = identity.User{ID: "u-other", Username: "other", Name: "Omar", Role: identity.RoleUser}
)

func newTestStore() *Store {
	return NewStore(zerolog.Nop())
}

func mustCreate(t *testing.T, s *Store, in CreateInput, creator identity.User) Session {
	t.Helper()
	session, err := s.Create(in, creator)
	require.NoError(t, err)
	return session
}

func TestCreateAddsCreatorAsParticipant(t *testing.T) {
	s := newTestStore()

	session := mustCreate(t, s, CreateInput{
		Type:         TypePrivate,
		Participants: []string{other.ID},
	}, worker)

	assert.ElementsMatch(t, []string{other.ID, worker.ID}, session.Participants)
	assert.False(t, session.IsFrozen)
	assert.Empty(t, session.Messages)
	assert.False(t, session.LastMessageAt.IsZero())
}

func TestCreateRejectsSoloPrivateChat(t *testing.T) {
	s := newTestStore()

	_, err := s.Create(CreateInput{Type: TypePrivate}, worker)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateContextChatNeedsItem(t *testing.T) {
	s := newTestStore()

	_, err := s.Create(CreateInput{Type: TypeContext}, manager)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	session := mustCreate(t, s, CreateInput{Type: TypeContext, ContextItemID: "item-1"}, manager)
	assert.Equal(t, "item-1", session.ContextItemID)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	s := newTestStore()

	_, err := s.Create(CreateInput{Type: Type("broadcast")}, admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestVisibilityByType(t *testing.T) {
	s := newTestStore()
	general := mustCreate(t, s, CreateInput{Type: TypeGeneral}, admin)
	coordinator := mustCreate(t, s, CreateInput{Type: TypeCoordinator}, admin)
	private := mustCreate(t, s, CreateInput{Type: TypePrivate, Participants: []string{worker.ID}}, manager)

	ids := func(u identity.User) []string {
		var out []string
		for _, c := range s.ListVisible(u) {
			out = append(out, c.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{general.ID}, ids(other))
	assert.ElementsMatch(t, []string{general.ID, private.ID}, ids(worker))
	assert.ElementsMatch(t, []string{general.ID, coordinator.ID, private.ID}, ids(manager))
	// admin super-view: every non-self-hidden session
	assert.ElementsMatch(t, []string{general.ID, coordinator.ID, private.ID}, ids(admin))
}

func TestAdminSuperViewSeesForeignPrivateChats(t *testing.T) {
	s := newTestStore()
	private := mustCreate(t, s, CreateInput{Type: TypePrivate, Participants: []string{other.ID}}, worker)

	got := s.ListVisible(admin)
	require.Len(t, got, 1)
	assert.Equal(t, private.ID, got[0].ID)
}

func TestListVisibleOrdersByActivity(t *testing.T) {
	s := newTestStore()
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	clock := base
	s.SetClock(func() time.Time { return clock })

	first := mustCreate(t, s, CreateInput{Type: TypeGeneral, Title: "a"}, admin)
	clock = base.Add(time.Minute)
	second := mustCreate(t, s, CreateInput{Type: TypeGeneral, Title: "b"}, admin)

	got := s.ListVisible(worker)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)

	clock = base.Add(2 * time.Minute)
	_, err := s.PostMessage(first.ID, worker, "bump", MessageText)
	require.NoError(t, err)

	got = s.ListVisible(worker)
	assert.Equal(t, first.ID, got[0].ID)
}

func TestPostMessageAppendsAndBumps(t *testing.T) {
	s := newTestStore()
	session := mustCreate(t, s, CreateInput{Type: TypeGeneral}, admin)

	msg, err := s.PostMessage(session.ID, worker, "shift swap anyone?", "")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, worker.ID, msg.SenderID)
	assert.Equal(t, worker.Name, msg.SenderName)
	assert.Equal(t, MessageText, msg.Kind)

	got, ok := s.Get(session.ID)
	require.True(t, ok)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, msg.Timestamp, got.LastMessageAt)
}

func TestPostMessageFrozenBlocksNonAdmins(t *testing.T) {
	s := newTestStore()
	session := mustCreate(t, s, CreateInput{Type: TypeGeneral}, admin)

	_, err := s.ToggleFreeze(session.ID, admin)
	require.NoError(t, err)

	_, err = s.PostMessage(session.ID, manager, "anyone there?", MessageText)
	assert.ErrorIs(t, err, apperr.ErrChatFrozen)

	got, _ := s.Get(session.ID)
	assert.Empty(t, got.Messages)

	// admins may always post
	_, err = s.PostMessage(session.ID, admin, "read only for now", MessageText)
	assert.NoError(t, err)
}

func TestToggleFreezeAdminOnly(t *testing.T) {
	s := newTestStore()
	session := mustCreate(t, s, CreateInput{Type: TypeGeneral}, admin)

	_, err := s.ToggleFreeze(session.ID, manager)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	frozen, err := s.ToggleFreeze(session.ID, admin)
	require.NoError(t, err)
	assert.True(t, frozen.IsFrozen)

	thawed, err := s.ToggleFreeze(session.ID, admin)
	require.NoError(t, err)
	assert.False(t, thawed.IsFrozen)
}

func TestHideForSelfOnlyAffectsHider(t *testing.T) {
	s := newTestStore()
	session := mustCreate(t, s, CreateInput{Type: TypePrivate, Participants: []string{other.ID}}, worker)

	_, err := s.PostMessage(session.ID, worker, "hi", MessageText)
	require.NoError(t, err)
	require.NoError(t, s.HideForSelf(session.ID, worker.ID))

	assert.Empty(t, s.ListVisible(worker))

	got := s.ListVisible(other)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Messages, 1)
}

func TestHideForSelfTrumpsAdminSuperView(t *testing.T) {
	s := newTestStore()
	session := mustCreate(t, s, CreateInput{Type: TypeGeneral}, admin)

	require.NoError(t, s.HideForSelf(session.ID, admin.ID))
	assert.Empty(t, s.ListVisible(admin))
}

func TestUnhideRestoresSession(t *testing.T) {
	s := newTestStore()
	session := mustCreate(t, s, CreateInput{Type: TypeGeneral}, admin)

	require.NoError(t, s.HideForSelf(session.ID, worker.ID))
	require.NoError(t, s.Unhide(session.ID, worker.ID))
	require.NoError(t, s.Unhide(session.ID, worker.ID)) // idempotent

	got := s.ListVisible(worker)
	require.Len(t, got, 1)
	assert.Equal(t, session.ID, got[0].ID)
}

func TestDeleteAdminOnlyAndPermanent(t *testing.T) {
	s := newTestStore()
	session := mustCreate(t, s, CreateInput{Type: TypePrivate, Participants: []string{other.ID}}, worker)

	assert.ErrorIs(t, s.Delete(session.ID, worker), apperr.ErrPermissionDenied)

	require.NoError(t, s.Delete(session.ID, admin))
	_, ok := s.Get(session.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Delete(session.ID, admin), apperr.ErrNotFound)
}

func TestLoadReplacesCollection(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, CreateInput{Type: TypeGeneral}, admin)

	s.Load([]Session{{ID: "restored", Type: TypeGeneral}})

	assert.Equal(t, 1, s.Count())
	got, ok := s.Get("restored")
	require.True(t, ok)
	assert.Equal(t, TypeGeneral, got.Type)
}
