package chat

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erezmus/crewdesk/internal/apperr"
	"github.com/erezmus/crewdesk/internal/identity"
)

// CreateInput is the payload for Store.Create.
type CreateInput struct {
	Type          Type
	Title         string
	Participants  []string
	ContextItemID string
}

// Store owns the chat sessions and every mutation on them. All reads
// hand out deep copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStore creates an empty chat store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		logger:   logger.With().Str("component", "chat").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock (tests).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Create opens a new session. The creator always joins the participant
// list. A private session needs at least one other participant; a
// context session must name its work item.
func (s *Store) Create(in CreateInput, creator identity.User) (Session, error) {
	if _, ok := ParseType(string(in.Type)); !ok {
		return Session{}, apperr.NewValidationError("type", fmt.Sprintf("unknown chat type %q", in.Type))
	}

	participants := append([]string(nil), in.Participants...)
	if !containsID(participants, creator.ID) {
		participants = append(participants, creator.ID)
	}

	switch in.Type {
	case TypePrivate:
		if len(participants) < 2 {
			return Session{}, apperr.NewValidationError("participants", "private chat needs another participant")
		}
	case TypeContext:
		if strings.TrimSpace(in.ContextItemID) == "" {
			return Session{}, apperr.NewValidationError("contextItemId", "is required for context chats")
		}
	}

	now := s.now()
	session := &Session{
		ID:            uuid.New().String(),
		Type:          in.Type,
		Title:         in.Title,
		Participants:  participants,
		Messages:      []Message{},
		HiddenFor:     []string{},
		LastMessageAt: now,
		ContextItemID: in.ContextItemID,
		CreatedAt:     now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info().
		Str("chat_id", session.ID).
		Str("type", string(session.Type)).
		Str("creator_id", creator.ID).
		Msg("chat session created")

	return session.Clone(), nil
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return session.Clone(), true
}

// ListVisible returns the sessions user may see, most recent activity
// first.
func (s *Store) ListVisible(user identity.User) []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	for _, session := range s.sessions {
		if session.VisibleTo(user) {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// PostMessage appends a message to the session and bumps its activity
// timestamp. A frozen session rejects non-admin senders.
func (s *Store) PostMessage(chatID string, sender identity.User, content string, kind MessageKind) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, apperr.NewValidationError("content", "is required")
	}
	if kind == "" {
		kind = MessageText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return Message{}, fmt.Errorf("chat %s: %w", chatID, apperr.ErrNotFound)
	}
	if session.IsFrozen && sender.Role != identity.RoleAdmin {
		return Message{}, fmt.Errorf("chat %s: %w", chatID, apperr.ErrChatFrozen)
	}

	msg := Message{
		ID:         uuid.New().String(),
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
		Kind:       kind,
		Timestamp:  s.now(),
	}
	session.Messages = append(session.Messages, msg)
	session.LastMessageAt = msg.Timestamp
	return msg, nil
}

// ToggleFreeze flips the freeze flag. Admin only.
func (s *Store) ToggleFreeze(chatID string, actor identity.User) (Session, error) {
	if actor.Role != identity.RoleAdmin {
		return Session{}, fmt.Errorf("freeze chat %s: %w", chatID, apperr.ErrPermissionDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return Session{}, fmt.Errorf("chat %s: %w", chatID, apperr.ErrNotFound)
	}
	session.IsFrozen = !session.IsFrozen

	s.logger.Info().
		Str("chat_id", chatID).
		Str("actor_id", actor.ID).
		Bool("frozen", session.IsFrozen).
		Msg("chat freeze toggled")
	return session.Clone(), nil
}

// HideForSelf soft-removes the session from userID's own list. The
// session and its messages are untouched for everyone else. Idempotent.
func (s *Store) HideForSelf(chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return fmt.Errorf("chat %s: %w", chatID, apperr.ErrNotFound)
	}
	if !session.IsHiddenFor(userID) {
		session.HiddenFor = append(session.HiddenFor, userID)
	}
	return nil
}

// Unhide restores a session the user previously self-hid. Idempotent.
func (s *Store) Unhide(chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return fmt.Errorf("chat %s: %w", chatID, apperr.ErrNotFound)
	}
	for i, id := range session.HiddenFor {
		if id == userID {
			session.HiddenFor = append(session.HiddenFor[:i], session.HiddenFor[i+1:]...)
			break
		}
	}
	return nil
}

// Delete removes a session for all participants permanently. Admin
// only.
func (s *Store) Delete(chatID string, actor identity.User) error {
	if actor.Role != identity.RoleAdmin {
		return fmt.Errorf("delete chat %s: %w", chatID, apperr.ErrPermissionDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[chatID]; !ok {
		return fmt.Errorf("chat %s: %w", chatID, apperr.ErrNotFound)
	}
	delete(s.sessions, chatID)

	s.logger.Info().
		Str("chat_id", chatID).
		Str("actor_id", actor.ID).
		Msg("chat session deleted")
	return nil
}

// Count returns the number of sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// All returns every session regardless of visibility, most recent
// activity first. Used by the persistence collaborator.
func (s *Store) All() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// Load replaces the whole collection. Used by the persistence
// collaborator at startup.
func (s *Store) Load(sessions []Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*Session, len(sessions))
	for i := range sessions {
		session := sessions[i].Clone()
		if _, exists := s.sessions[session.ID]; exists {
			s.logger.Warn().Str("chat_id", session.ID).Msg("duplicate chat id in snapshot, keeping first")
			continue
		}
		s.sessions[session.ID] = &session
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
