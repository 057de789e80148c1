// Package board implements the shared work-item board: the item model,
// the owned store with its mutation API, the date-triggered automation
// engine, and the per-user override resolver.
package board

import (
	"time"

	"github.com/erezmus/crewdesk/internal/access"
	"github.com/erezmus/crewdesk/internal/identity"
)

// Status is the shared lifecycle state of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusInProgress, StatusDone, StatusArchived:
		return Status(raw), true
	}
	return "", false
}

// Priority ranks a work item's urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority validates a raw priority string.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(raw) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return Priority(raw), true
	}
	return "", false
}

// IsImportant reports whether the priority belongs in the important view.
func (p Priority) IsImportant() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// ItemType distinguishes board entries; it carries no access semantics.
type ItemType string

const (
	TypeMessage ItemType = "message"
	TypeTask    ItemType = "task"
	TypeUpdate  ItemType = "update"
)

// LocationData is an optional place attached to an item.
type LocationData struct {
	Address string `json:"address" yaml:"address"`
	Link    string `json:"link,omitempty" yaml:"link,omitempty"`
}

// ActionType names what an automation rule does when it fires.
type ActionType string

const (
	ActionSetStatus   ActionType = "setStatus"
	ActionSetPriority ActionType = "setPriority"
	ActionArchive     ActionType = "archive"
)

// AutomationRule is a date-triggered declarative mutation attached to a
// work item. TriggerDate is a calendar date string (2006-01-02).
type AutomationRule struct {
	ID          string     `json:"id" yaml:"id"`
	TriggerDate string     `json:"triggerDate" yaml:"triggerDate"`
	ActionType  ActionType `json:"actionType" yaml:"actionType"`
	NewValue    string     `json:"newValue" yaml:"newValue"`
}

// UserOverride alters the effective priority, due date or note of an
// item for a single user. Empty fields fall back to the base item.
type UserOverride struct {
	UserID     string   `json:"userId" yaml:"userId"`
	Priority   Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	DueDate    string   `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	CustomNote string   `json:"customNote,omitempty" yaml:"customNote,omitempty"`
}

// Comment is one entry in an item's flat discussion thread. UserName is
// a snapshot taken at write time and never re-resolved, so renaming a
// user does not rewrite history.
type Comment struct {
	ID         string    `json:"id"`
	WorkItemID string    `json:"workItemId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Content    string    `json:"content"`
	Context    string    `json:"context"`
	Timestamp  time.Time `json:"timestamp"`
}

// DefaultCommentContext tags comments that name no discussion thread.
const DefaultCommentContext = "general"

// WorkItem is the central board entity.
type WorkItem struct {
	ID              string   `json:"id" yaml:"id"`
	Title           string   `json:"title" yaml:"title"`
	Content         string   `json:"content" yaml:"content"` // inline markup, stored verbatim
	Type            ItemType `json:"type" yaml:"type"`
	BackgroundColor string   `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	Status          Status   `json:"status" yaml:"status"`
	Priority        Priority `json:"priority" yaml:"priority"`

	PublishDate time.Time `json:"publishDate" yaml:"publishDate"`
	ExpiryDate  string    `json:"expiryDate,omitempty" yaml:"expiryDate,omitempty"`
	ArchiveDate string    `json:"archiveDate,omitempty" yaml:"archiveDate,omitempty"`

	OwnerID     string   `json:"ownerId" yaml:"ownerId"`
	ExecutorIDs []string `json:"executorIds" yaml:"executorIds"`

	ViewPermission    access.Spec `json:"viewPermission" yaml:"viewPermission"`
	EditPermission    access.Spec `json:"editPermission" yaml:"editPermission"`
	CommentPermission access.Spec `json:"commentPermission" yaml:"commentPermission"`

	Location    *LocationData `json:"location,omitempty" yaml:"location,omitempty"`
	CustomNotes string        `json:"customNotes,omitempty" yaml:"customNotes,omitempty"`

	AutomationRules []AutomationRule `json:"automationRules" yaml:"automationRules"`
	UserOverrides   []UserOverride   `json:"userOverrides" yaml:"userOverrides"`

	// AppliedRuleIDs is the ledger of automation rules that already
	// fired on this item. Rule effects are plain assignments, but the
	// ledger keeps re-evaluation explicit rather than merely harmless.
	AppliedRuleIDs []string `json:"appliedRuleIds,omitempty" yaml:"appliedRuleIds,omitempty"`

	ReadBy      []string `json:"readBy" yaml:"readBy"`
	CompletedBy []string `json:"completedBy" yaml:"completedBy"`

	CreatedBy string    `json:"createdBy" yaml:"createdBy"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Clone returns a deep copy safe to hand outside the store.
func (w *WorkItem) Clone() WorkItem {
	out := *w
	out.ExecutorIDs = append([]string(nil), w.ExecutorIDs...)
	out.AutomationRules = append([]AutomationRule(nil), w.AutomationRules...)
	out.UserOverrides = append([]UserOverride(nil), w.UserOverrides...)
	out.AppliedRuleIDs = append([]string(nil), w.AppliedRuleIDs...)
	out.ReadBy = append([]string(nil), w.ReadBy...)
	out.CompletedBy = append([]string(nil), w.CompletedBy...)
	if w.Location != nil {
		loc := *w.Location
		out.Location = &loc
	}
	return out
}

// CanView reports whether u may see this item.
func (w *WorkItem) CanView(u identity.User) bool {
	return access.CanView(u, w.ViewPermission)
}

// CanEdit reports whether u may edit this item. Admins and the owner
// bypass the declared spec.
func (w *WorkItem) CanEdit(u identity.User) bool {
	return access.CanEdit(u, w.OwnerID, w.EditPermission)
}

// CanComment reports whether u may comment on this item.
func (w *WorkItem) CanComment(u identity.User) bool {
	return access.CanComment(u, w.CommentPermission)
}

// IsAssignedTo reports owner or executor membership for the "mine" view.
func (w *WorkItem) IsAssignedTo(userID string) bool {
	if w.OwnerID == userID {
		return true
	}
	for _, id := range w.ExecutorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
