package board

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erezmus/crewdesk/internal/access"
	"github.com/erezmus/crewdesk/internal/apperr"
	"github.com/erezmus/crewdesk/internal/identity"
)

// Filter selects which slice of the board a list call returns.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterMine      Filter = "mine"
	FilterImportant Filter = "important"
)

// ParseFilter maps a raw query value to a Filter, defaulting to all.
func ParseFilter(raw string) Filter {
	switch Filter(raw) {
	case FilterMine, FilterImportant:
		return Filter(raw)
	}
	return FilterAll
}

// CreateInput is the payload for Store.Create. Zero-valued fields take
// the documented defaults.
type CreateInput struct {
	Title           string
	Content         string
	Type            ItemType
	BackgroundColor string
	Status          Status
	Priority        Priority
	PublishDate     time.Time
	ExpiryDate      string

	OwnerID     string
	ExecutorIDs []string

	ViewPermission    access.Spec
	EditPermission    access.Spec
	CommentPermission access.Spec

	Location    *LocationData
	CustomNotes string

	AutomationRules []AutomationRule
	UserOverrides   []UserOverride
}

// UpdateInput is the payload for Store.Update. It replaces the whole
// mutable payload of an item; ReadBy and CompletedBy are preserved from
// the stored item when nil.
type UpdateInput struct {
	CreateInput
	ArchiveDate string
	ReadBy      []string
	CompletedBy []string
}

// Store owns the work-item collection and every mutation on it, so the
// id/createdAt invariants are enforced at one boundary instead of at
// every call site. All reads hand out deep copies.
type Store struct {
	mu       sync.RWMutex
	items    map[string]*WorkItem
	order    []string // insertion order, oldest first
	comments map[string][]Comment
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStore creates an empty board store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		items:    make(map[string]*WorkItem),
		comments: make(map[string][]Comment),
		logger:   logger.With().Str("component", "board").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock (tests).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func validateRules(rules []AutomationRule) error {
	for _, r := range rules {
		if strings.TrimSpace(r.TriggerDate) == "" {
			return apperr.NewValidationError("automationRules.triggerDate", "is required")
		}
		switch r.ActionType {
		case ActionSetStatus, ActionSetPriority, ActionArchive:
		default:
			return apperr.NewValidationError("automationRules.actionType", fmt.Sprintf("unknown action %q", r.ActionType))
		}
	}
	return nil
}

func normalizeRules(rules []AutomationRule) []AutomationRule {
	out := append([]AutomationRule(nil), rules...)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.New().String()
		}
	}
	return out
}

// Create adds a new item authored by author. Title and content are
// required; everything else defaults. The author owns the item unless
// the payload reassigns ownership.
func (s *Store) Create(in CreateInput, author identity.User) (WorkItem, error) {
	if strings.TrimSpace(in.Title) == "" {
		return WorkItem{}, apperr.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return WorkItem{}, apperr.NewValidationError("content", "is required")
	}
	if err := validateRules(in.AutomationRules); err != nil {
		return WorkItem{}, err
	}

	now := s.now()
	item := &WorkItem{
		ID:              uuid.New().String(),
		Title:           in.Title,
		Content:         in.Content,
		Type:            in.Type,
		BackgroundColor: in.BackgroundColor,
		Status:          in.Status,
		Priority:        in.Priority,
		PublishDate:     in.PublishDate,
		ExpiryDate:      in.ExpiryDate,
		OwnerID:         in.OwnerID,
		ExecutorIDs:     append([]string(nil), in.ExecutorIDs...),

		ViewPermission:    in.ViewPermission,
		EditPermission:    in.EditPermission,
		CommentPermission: in.CommentPermission,

		Location:    in.Location,
		CustomNotes: in.CustomNotes,

		AutomationRules: normalizeRules(in.AutomationRules),
		UserOverrides:   append([]UserOverride(nil), in.UserOverrides...),

		ReadBy:      []string{},
		CompletedBy: []string{},
		CreatedBy:   author.ID,
		CreatedAt:   now,
	}

	if item.Type == "" {
		item.Type = TypeTask
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.Priority == "" {
		item.Priority = PriorityNormal
	}
	if item.PublishDate.IsZero() {
		item.PublishDate = now
	}
	if item.OwnerID == "" {
		item.OwnerID = author.ID
	}
	if item.ViewPermission.Kind() == access.KindInvalid {
		item.ViewPermission = access.All()
	}
	if item.EditPermission.Kind() == access.KindInvalid {
		item.EditPermission = access.Managers()
	}
	if item.CommentPermission.Kind() == access.KindInvalid {
		item.CommentPermission = access.All()
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	s.mu.Unlock()

	s.logger.Info().
		Str("item_id", item.ID).
		Str("owner_id", item.OwnerID).
		Str("created_by", author.ID).
		Msg("work item created")

	return item.Clone(), nil
}

// Update replaces the mutable payload of an item. The actor must hold
// edit rights; id, createdBy and createdAt are preserved from the
// stored item, as are readBy/completedBy unless the patch carries them.
func (s *Store) Update(id string, patch UpdateInput, actor identity.User) (WorkItem, error) {
	if strings.TrimSpace(patch.Title) == "" {
		return WorkItem{}, apperr.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(patch.Content) == "" {
		return WorkItem{}, apperr.NewValidationError("content", "is required")
	}
	if err := validateRules(patch.AutomationRules); err != nil {
		return WorkItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok {
		return WorkItem{}, fmt.Errorf("work item %s: %w", id, apperr.ErrNotFound)
	}
	if !current.CanEdit(actor) {
		s.logger.Warn().
			Str("item_id", id).
			Str("actor_id", actor.ID).
			Msg("edit denied")
		return WorkItem{}, fmt.Errorf("edit work item %s: %w", id, apperr.ErrPermissionDenied)
	}

	next := &WorkItem{
		ID:              current.ID,
		Title:           patch.Title,
		Content:         patch.Content,
		Type:            patch.Type,
		BackgroundColor: patch.BackgroundColor,
		Status:          patch.Status,
		Priority:        patch.Priority,
		PublishDate:     patch.PublishDate,
		ExpiryDate:      patch.ExpiryDate,
		ArchiveDate:     patch.ArchiveDate,
		OwnerID:         patch.OwnerID,
		ExecutorIDs:     append([]string(nil), patch.ExecutorIDs...),

		ViewPermission:    patch.ViewPermission,
		EditPermission:    patch.EditPermission,
		CommentPermission: patch.CommentPermission,

		Location:    patch.Location,
		CustomNotes: patch.CustomNotes,

		AutomationRules: normalizeRules(patch.AutomationRules),
		UserOverrides:   append([]UserOverride(nil), patch.UserOverrides...),
		AppliedRuleIDs:  append([]string(nil), current.AppliedRuleIDs...),

		CreatedBy: current.CreatedBy,
		CreatedAt: current.CreatedAt,
	}

	if next.Type == "" {
		next.Type = current.Type
	}
	if next.Status == "" {
		next.Status = current.Status
	}
	if next.Priority == "" {
		next.Priority = current.Priority
	}
	if next.PublishDate.IsZero() {
		next.PublishDate = current.PublishDate
	}
	if next.OwnerID == "" {
		next.OwnerID = current.OwnerID
	}
	if next.ViewPermission.Kind() == access.KindInvalid {
		next.ViewPermission = current.ViewPermission
	}
	if next.EditPermission.Kind() == access.KindInvalid {
		next.EditPermission = current.EditPermission
	}
	if next.CommentPermission.Kind() == access.KindInvalid {
		next.CommentPermission = current.CommentPermission
	}

	next.ReadBy = append([]string(nil), current.ReadBy...)
	if patch.ReadBy != nil {
		next.ReadBy = append([]string(nil), patch.ReadBy...)
	}
	next.CompletedBy = append([]string(nil), current.CompletedBy...)
	if patch.CompletedBy != nil {
		next.CompletedBy = append([]string(nil), patch.CompletedBy...)
	}

	s.items[id] = next

	s.logger.Info().
		Str("item_id", id).
		Str("actor_id", actor.ID).
		Msg("work item updated")

	return next.Clone(), nil
}

// ToggleStatus flips an item between pending and done. It is a two-state
// shortcut: in_progress and archived items are left untouched.
func (s *Store) ToggleStatus(id string) (WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return WorkItem{}, fmt.Errorf("work item %s: %w", id, apperr.ErrNotFound)
	}

	switch item.Status {
	case StatusPending:
		item.Status = StatusDone
	case StatusDone:
		item.Status = StatusPending
	}

	return item.Clone(), nil
}

// MarkRead records that userID acknowledged the item. Idempotent.
func (s *Store) MarkRead(id, userID string) (WorkItem, error) {
	return s.appendMember(id, userID, func(w *WorkItem) *[]string { return &w.ReadBy })
}

// MarkCompleted records per-user completion, independent of the shared
// status field. Idempotent.
func (s *Store) MarkCompleted(id, userID string) (WorkItem, error) {
	return s.appendMember(id, userID, func(w *WorkItem) *[]string { return &w.CompletedBy })
}

func (s *Store) appendMember(id, userID string, field func(*WorkItem) *[]string) (WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return WorkItem{}, fmt.Errorf("work item %s: %w", id, apperr.ErrNotFound)
	}
	set := field(item)
	if !contains(*set, userID) {
		*set = append(*set, userID)
	}
	return item.Clone(), nil
}

// Delete removes an item permanently. Only admins may delete; there is
// no tombstone and no undo.
func (s *Store) Delete(id string, actor identity.User) error {
	if actor.Role != identity.RoleAdmin {
		return fmt.Errorf("delete work item %s: %w", id, apperr.ErrPermissionDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("work item %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.items, id)
	delete(s.comments, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Info().
		Str("item_id", id).
		Str("actor_id", actor.ID).
		Msg("work item deleted")
	return nil
}

// Get returns a copy of the item with the given id.
func (s *Store) Get(id string) (WorkItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return WorkItem{}, false
	}
	return item.Clone(), true
}

// ListVisible returns the items user may see, newest first: archived
// items are excluded, then the view permission applies, then the filter.
func (s *Store) ListVisible(user identity.User, filter Filter) []WorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []WorkItem
	for i := len(s.order) - 1; i >= 0; i-- {
		item := s.items[s.order[i]]
		if item.Status == StatusArchived {
			continue
		}
		if !item.CanView(user) {
			continue
		}
		switch filter {
		case FilterMine:
			if !item.IsAssignedTo(user.ID) {
				continue
			}
		case FilterImportant:
			if !item.Priority.IsImportant() {
				continue
			}
		}
		out = append(out, item.Clone())
	}
	return out
}

// ListAll returns every item including archived ones, newest first.
// Intended for the admin management view.
func (s *Store) ListAll() []WorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WorkItem, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.items[s.order[i]].Clone())
	}
	return out
}

// Count returns the number of stored items.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// AddComment appends a comment to the item's thread. The author must
// hold comment rights; the display name is snapshotted at write time.
func (s *Store) AddComment(itemID string, author identity.User, content, context string) (Comment, error) {
	if strings.TrimSpace(content) == "" {
		return Comment{}, apperr.NewValidationError("content", "is required")
	}
	if context == "" {
		context = DefaultCommentContext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return Comment{}, fmt.Errorf("work item %s: %w", itemID, apperr.ErrNotFound)
	}
	if !item.CanComment(author) {
		return Comment{}, fmt.Errorf("comment on work item %s: %w", itemID, apperr.ErrPermissionDenied)
	}

	c := Comment{
		ID:         uuid.New().String(),
		WorkItemID: itemID,
		UserID:     author.ID,
		UserName:   author.Name,
		Content:    content,
		Context:    context,
		Timestamp:  s.now(),
	}
	s.comments[itemID] = append(s.comments[itemID], c)
	return c, nil
}

// Comments returns the item's thread in insertion order.
func (s *Store) Comments(itemID string) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Comment(nil), s.comments[itemID]...)
}

// AllComments returns every thread, keyed by item id. Used by the
// persistence collaborator.
func (s *Store) AllComments() map[string][]Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Comment, len(s.comments))
	for id, cs := range s.comments {
		out[id] = append([]Comment(nil), cs...)
	}
	return out
}

// LoadComments replaces every thread. Used by the persistence
// collaborator at startup.
func (s *Store) LoadComments(threads map[string][]Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = make(map[string][]Comment, len(threads))
	for id, cs := range threads {
		s.comments[id] = append([]Comment(nil), cs...)
	}
}

// Load replaces the whole collection, preserving the given order. Used
// by the persistence collaborator at startup.
func (s *Store) Load(items []WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*WorkItem, len(items))
	s.order = s.order[:0]
	for i := range items {
		item := items[i].Clone()
		if _, exists := s.items[item.ID]; exists {
			s.logger.Warn().Str("item_id", item.ID).Msg("duplicate item id in snapshot, keeping first")
			continue
		}
		s.items[item.ID] = &item
		s.order = append(s.order, item.ID)
	}
}
