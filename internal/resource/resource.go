// Package resource holds the link catalog and the role-filtered
// dashboard shortcuts.
package resource

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/erezmus/crewdesk/internal/apperr"
	"github.com/erezmus/crewdesk/internal/identity"
)

// Kind classifies a catalog entry by what its URL points at.
type Kind string

const (
	KindForm   Kind = "form"
	KindSheet  Kind = "sheet"
	KindDoc    Kind = "doc"
	KindVideo  Kind = "video"
	KindNative Kind = "native"
	KindOther  Kind = "other"
)

// ParseKind validates a raw resource kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case KindForm, KindSheet, KindDoc, KindVideo, KindNative, KindOther:
		return Kind(raw), true
	}
	return "", false
}

// Resource is one entry in the shared link catalog.
type Resource struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string    `json:"url" yaml:"url"`
	Kind        Kind      `json:"type" yaml:"type"`
	IconName    string    `json:"iconName,omitempty" yaml:"iconName,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

// Shortcut is a dashboard tile gated by role.
type Shortcut struct {
	ID         string          `json:"id" yaml:"id"`
	Title      string          `json:"title" yaml:"title"`
	Subtitle   string          `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	IconName   string          `json:"iconName" yaml:"iconName"`
	Path       string          `json:"path" yaml:"path"`
	Roles      []identity.Role `json:"roles" yaml:"roles"`
	ColorTheme string          `json:"colorTheme" yaml:"colorTheme"`
}

// VisibleTo reports whether the shortcut's role list admits u.
func (s Shortcut) VisibleTo(u identity.User) bool {
	for _, r := range s.Roles {
		if r == u.Role {
			return true
		}
	}
	return false
}

// LoadShortcutsFile reads a YAML file with a top-level "shortcuts" list.
func LoadShortcutsFile(path string) ([]Shortcut, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: reading shortcuts file: %w", err)
	}
	var doc struct {
		Shortcuts []Shortcut `yaml:"shortcuts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("resource: parsing shortcuts file: %w", err)
	}
	return doc.Shortcuts, nil
}

// Store owns the catalog and shortcuts. Mutations are admin-only.
type Store struct {
	mu        sync.RWMutex
	resources map[string]*Resource
	order     []string
	shortcuts []Shortcut
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStore creates an empty catalog.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		resources: make(map[string]*Resource),
		logger:    logger.With().Str("component", "resource").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateResource adds a catalog entry. Admin only.
func (s *Store) CreateResource(in Resource, actor identity.User) (Resource, error) {
	if actor.Role != identity.RoleAdmin {
		return Resource{}, fmt.Errorf("create resource: %w", apperr.ErrPermissionDenied)
	}
	if strings.TrimSpace(in.Title) == "" {
		return Resource{}, apperr.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(in.URL) == "" {
		return Resource{}, apperr.NewValidationError("url", "is required")
	}
	if _, ok := ParseKind(string(in.Kind)); !ok {
		return Resource{}, apperr.NewValidationError("type", fmt.Sprintf("unknown resource type %q", in.Kind))
	}

	r := in
	r.ID = uuid.New().String()
	r.CreatedAt = s.now()

	s.mu.Lock()
	s.resources[r.ID] = &r
	s.order = append(s.order, r.ID)
	s.mu.Unlock()

	s.logger.Info().Str("resource_id", r.ID).Str("actor_id", actor.ID).Msg("resource created")
	return r, nil
}

// DeleteResource removes a catalog entry. Admin only.
func (s *Store) DeleteResource(id string, actor identity.User) error {
	if actor.Role != identity.RoleAdmin {
		return fmt.Errorf("delete resource %s: %w", id, apperr.ErrPermissionDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return fmt.Errorf("resource %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.resources, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Resources returns the catalog in insertion order. The catalog itself
// is visible to every signed-in user.
func (s *Store) Resources() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Resource, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.resources[id])
	}
	return out
}

// ShortcutsFor returns the dashboard tiles u's role admits, in the
// configured order.
func (s *Store) ShortcutsFor(u identity.User) []Shortcut {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Shortcut
	for _, sc := range s.shortcuts {
		if sc.VisibleTo(u) {
			out = append(out, sc)
		}
	}
	return out
}

// LoadShortcuts replaces the shortcut configuration.
func (s *Store) LoadShortcuts(shortcuts []Shortcut) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortcuts = append([]Shortcut(nil), shortcuts...)
}

// Load replaces the catalog. Used by the persistence collaborator at
// startup.
func (s *Store) Load(resources []Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resources = make(map[string]*Resource, len(resources))
	s.order = s.order[:0]
	for i := range resources {
		r := resources[i]
		if _, exists := s.resources[r.ID]; exists {
			continue
		}
		s.resources[r.ID] = &r
		s.order = append(s.order, r.ID)
	}
}
