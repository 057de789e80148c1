package board

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erezmus/crewdesk/internal/access"
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

func mustCreate(t *testing.T, s *Store, in CreateInput, author identity.User) WorkItem {
	t.Helper()
	item, err := s.Create(in, author)
	require.NoError(t, err)
	return item
}

func TestCreateDefaults(t *testing.T) {
	s := newTestStore()

	item := mustCreate(t, s, CreateInput{Title: "Restock shelves", Content: "Aisle 4 first"}, manager)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, TypeTask, item.Type)
	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, PriorityNormal, item.Priority)
	assert.Equal(t, manager.ID, item.OwnerID)
	assert.Equal(t, manager.ID, item.CreatedBy)
	assert.False(t, item.CreatedAt.IsZero())
	assert.Equal(t, access.KindAll, item.ViewPermission.Kind())
	assert.Equal(t, access.KindManager, item.EditPermission.Kind())
	assert.Equal(t, access.KindAll, item.CommentPermission.Kind())
	assert.Empty(t, item.ReadBy)
	assert.Empty(t, item.CompletedBy)
}

func TestCreateRequiresTitleAndContent(t *testing.T) {
	s := newTestStore()

	_, err := s.Create(CreateInput{Content: "no title"}, manager)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.Create(CreateInput{Title: "no content"}, manager)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateRejectsRuleWithoutTriggerDate(t *testing.T) {
	s := newTestStore()

	_, err := s.Create(CreateInput{
		Title:   "t",
		Content: "c",
		AutomationRules: []AutomationRule{
			{ActionType: ActionArchive},
		},
	}, manager)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateAssignsRuleIDs(t *testing.T) {
	s := newTestStore()

	item := mustCreate(t, s, CreateInput{
		Title:   "t",
		Content: "c",
		AutomationRules: []AutomationRule{
			{TriggerDate: "2026-09-01", ActionType: ActionArchive},
		},
	}, manager)

	require.Len(t, item.AutomationRules, 1)
	assert.NotEmpty(t, item.AutomationRules[0].ID)
}

func TestUpdatePreservesIdentityFields(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "before", Content: "c"}, manager)

	updated, err := s.Update(item.ID, UpdateInput{
		CreateInput: CreateInput{Title: "after", Content: "c2", OwnerID: worker.ID},
	}, manager)
	require.NoError(t, err)

	assert.Equal(t, item.ID, updated.ID)
	assert.Equal(t, item.CreatedBy, updated.CreatedBy)
	assert.Equal(t, item.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, worker.ID, updated.OwnerID)
}

func TestUpdatePreservesReadReceipts(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c"}, manager)

	_, err := s.MarkRead(item.ID, worker.ID)
	require.NoError(t, err)

	updated, err := s.Update(item.ID, UpdateInput{
		CreateInput: CreateInput{Title: "t2", Content: "c2"},
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, []string{worker.ID}, updated.ReadBy)

	updated, err = s.Update(item.ID, UpdateInput{
		CreateInput: CreateInput{Title: "t3", Content: "c3"},
		ReadBy:      []string{},
	}, manager)
	require.NoError(t, err)
	assert.Empty(t, updated.ReadBy)
}

func TestUpdateEnforcesEditPermission(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c"}, manager)

	_, err := s.Update(item.ID, UpdateInput{
		CreateInput: CreateInput{Title: "hacked", Content: "c"},
	}, worker)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	got, ok := s.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, "t", got.Title)
}

func TestUpdateOwnerBypassesEditSpec(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{
		Title:          "t",
		Content:        "c",
		OwnerID:        worker.ID,
		EditPermission: access.Users(),
	}, admin)

	_, err := s.Update(item.ID, UpdateInput{
		CreateInput: CreateInput{Title: "mine now", Content: "c"},
	}, worker)
	assert.NoError(t, err)
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestStore()
	_, err := s.Update("absent", UpdateInput{
		CreateInput: CreateInput{Title: "t", Content: "c"},
	}, admin)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestToggleStatus(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c"}, manager)

	got, err := s.ToggleStatus(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)

	got, err = s.ToggleStatus(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestToggleStatusLeavesOtherStatesAlone(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c", Status: StatusInProgress}, manager)

	got, err := s.ToggleStatus(item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
}

func TestMarkReadIdempotent(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c"}, manager)

	for i := 0; i < 3; i++ {
		_, err := s.MarkRead(item.ID, worker.ID)
		require.NoError(t, err)
	}

	got, ok := s.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, []string{worker.ID}, got.ReadBy)
}

func TestMarkCompletedIndependentOfStatus(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c"}, manager)

	got, err := s.MarkCompleted(item.ID, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{worker.ID}, got.CompletedBy)
	assert.Equal(t, StatusPending, got.Status)
}

func TestDeleteAdminOnly(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c"}, manager)

	err := s.Delete(item.ID, manager)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	err = s.Delete(item.ID, admin)
	require.NoError(t, err)

	_, ok := s.Get(item.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Delete(item.ID, admin), apperr.ErrNotFound)
}

func TestListVisibleExcludesArchivedAndHidden(t *testing.T) {
	s := newTestStore()

	visible := mustCreate(t, s, CreateInput{Title: "open", Content: "c"}, manager)
	mustCreate(t, s, CreateInput{Title: "gone", Content: "c", Status: StatusArchived}, manager)
	mustCreate(t, s, CreateInput{
		Title:          "managers only",
		Content:        "c",
		ViewPermission: access.Managers(),
	}, manager)

	got := s.ListVisible(worker, FilterAll)
	require.Len(t, got, 1)
	assert.Equal(t, visible.ID, got[0].ID)

	got = s.ListVisible(manager, FilterAll)
	assert.Len(t, got, 2)
}

func TestListVisibleNewestFirst(t *testing.T) {
	s := newTestStore()
	first := mustCreate(t, s, CreateInput{Title: "first", Content: "c"}, manager)
	second := mustCreate(t, s, CreateInput{Title: "second", Content: "c"}, manager)

	got := s.ListVisible(worker, FilterAll)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestListVisibleMineFilter(t *testing.T) {
	s := newTestStore()
	mine := mustCreate(t, s, CreateInput{Title: "mine", Content: "c", ExecutorIDs: []string{worker.ID}}, manager)
	mustCreate(t, s, CreateInput{Title: "not mine", Content: "c"}, manager)

	got := s.ListVisible(worker, FilterMine)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestListVisibleImportantFilter(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, CreateInput{Title: "low", Content: "c", Priority: PriorityLow}, manager)
	high := mustCreate(t, s, CreateInput{Title: "high", Content: "c", Priority: PriorityHigh}, manager)
	critical := mustCreate(t, s, CreateInput{Title: "critical", Content: "c", Priority: PriorityCritical}, manager)

	got := s.ListVisible(worker, FilterImportant)
	require.Len(t, got, 2)
	assert.Equal(t, critical.ID, got[0].ID)
	assert.Equal(t, high.ID, got[1].ID)
}

func TestListAllIncludesArchived(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, CreateInput{Title: "open", Content: "c"}, manager)
	mustCreate(t, s, CreateInput{Title: "archived", Content: "c", Status: StatusArchived}, manager)

	assert.Len(t, s.ListAll(), 2)
}

func TestAddCommentDefaultsContext(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c"}, manager)

	c, err := s.AddComment(item.ID, worker, "looks good", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCommentContext, c.Context)
	assert.Equal(t, worker.ID, c.UserID)
	assert.Equal(t, worker.Name, c.UserName)
	assert.NotEmpty(t, c.ID)

	got := s.Comments(item.ID)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
}

func TestAddCommentEnforcesPermission(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{
		Title:             "t",
		Content:           "c",
		CommentPermission: access.Managers(),
	}, manager)

	_, err := s.AddComment(item.ID, worker, "nope", "")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = s.AddComment(item.ID, manager, "fine", "")
	assert.NoError(t, err)
}

func TestGetReturnsDeepCopy(t *testing.T) {
	s := newTestStore()
	item := mustCreate(t, s, CreateInput{Title: "t", Content: "c", ExecutorIDs: []string{worker.ID}}, manager)

	got, ok := s.Get(item.ID)
	require.True(t, ok)
	got.ExecutorIDs[0] = "mutated"
	got.Title = "mutated"

	again, _ := s.Get(item.ID)
	assert.Equal(t, "t", again.Title)
	assert.Equal(t, []string{worker.ID}, again.ExecutorIDs)
}

func TestLoadReplacesCollection(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, CreateInput{Title: "old", Content: "c"}, manager)

	s.Load([]WorkItem{
		{ID: "a", Title: "restored", Content: "c", Status: StatusPending, Priority: PriorityNormal},
	})

	assert.Equal(t, 1, s.Count())
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "restored", got.Title)
}
