// Package chat implements the session store: four visibility kinds,
// admin freeze, per-user self-hide and the message log.
package chat

import (
	"time"

	"github.com/erezmus/crewdesk/internal/identity"
)

// Type is the visibility kind of a session. Sessions never change type
// once created.
type Type string

const (
	TypeGeneral     Type = "general"
	TypeCoordinator Type = "coordinator"
	TypePrivate     Type = "private"
	TypeContext     Type = "context"
)

// ParseType validates a raw session type.
func ParseType(raw string) (Type, bool) {
	switch Type(raw) {
	case TypeGeneral, TypeCoordinator, TypePrivate, TypeContext:
		return Type(raw), true
	}
	return "", false
}

// MessageKind distinguishes message payloads.
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageAudio MessageKind = "audio"
)

// Message is one entry in a session log. SenderName is snapshotted at
// send time.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Session is a scoped message thread.
type Session struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Title         string    `json:"title,omitempty"`
	Participants  []string  `json:"participants"`
	Messages      []Message `json:"messages"`
	IsFrozen      bool      `json:"isFrozen"`
	HiddenFor     []string  `json:"hiddenFor"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	ContextItemID string    `json:"contextItemId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Clone returns a deep copy safe to hand outside the store.
func (s *Session) Clone() Session {
	out := *s
	out.Participants = append([]string(nil), s.Participants...)
	out.Messages = append([]Message(nil), s.Messages...)
	out.HiddenFor = append([]string(nil), s.HiddenFor...)
	return out
}

// IsParticipant reports membership in the explicit participant list.
func (s *Session) IsParticipant(userID string) bool {
	for _, id := range s.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// IsHiddenFor reports whether userID self-hid this session.
func (s *Session) IsHiddenFor(userID string) bool {
	for _, id := range s.HiddenFor {
		if id == userID {
			return true
		}
	}
	return false
}

// VisibleTo resolves session visibility for u. Self-hide trumps
// everything, including the admin super-view. Beyond that admins see
// every session; general is open to all; coordinator is managerial;
// private and context need explicit participation.
func (s *Session) VisibleTo(u identity.User) bool {
	if s.IsHiddenFor(u.ID) {
		return false
	}
	if u.Role == identity.RoleAdmin {
		return true
	}
	switch s.Type {
	case TypeGeneral:
		return true
	case TypeCoordinator:
		return u.Role.IsManagerial()
	case TypePrivate, TypeContext:
		return s.IsParticipant(u.ID)
	default:
		return false
	}
}
