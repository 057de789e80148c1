package httpapi

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/erezmus/crewdesk/internal/access"
	"github.com/erezmus/crewdesk/internal/board"
	"github.com/erezmus/crewdesk/internal/chat"
)

var validate = validator.New()

// --- Request DTOs ---

// LoginRequest is the payload for POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ItemRequest is the payload for creating or replacing a work item.
type ItemRequest struct {
	Title           string `json:"title" validate:"required"`
	Content         string `json:"content" validate:"required"`
	Type            string `json:"type,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Status          string `json:"status,omitempty"`
	Priority        string `json:"priority,omitempty"`
	PublishDate     string `json:"publishDate,omitempty"`
	ExpiryDate      string `json:"expiryDate,omitempty"`
	ArchiveDate     string `json:"archiveDate,omitempty"`

	OwnerID     string   `json:"ownerId,omitempty"`
	ExecutorIDs []string `json:"executorIds,omitempty"`

	ViewPermission    access.Spec `json:"viewPermission,omitempty"`
	EditPermission    access.Spec `json:"editPermission,omitempty"`
	CommentPermission access.Spec `json:"commentPermission,omitempty"`

	Location    *board.LocationData `json:"location,omitempty"`
	CustomNotes string              `json:"customNotes,omitempty"`

	AutomationRules []board.AutomationRule `json:"automationRules,omitempty"`
	UserOverrides   []board.UserOverride   `json:"userOverrides,omitempty"`

	ReadBy      []string `json:"readBy,omitempty"`
	CompletedBy []string `json:"completedBy,omitempty"`
}

// CommentRequest is the payload for POST /api/v1/items/:id/comments.
type CommentRequest struct {
	Content string `json:"content" validate:"required"`
	Context string `json:"context,omitempty"`
}

// ChatCreateRequest is the payload for POST /api/v1/chats.
type ChatCreateRequest struct {
	Type          string   `json:"type" validate:"required"`
	Title         string   `json:"title,omitempty"`
	Participants  []string `json:"participants,omitempty"`
	ContextItemID string   `json:"contextItemId,omitempty"`
}

// MessageRequest is the payload for POST /api/v1/chats/:id/messages.
type MessageRequest struct {
	Content string `json:"content" validate:"required"`
	Kind    string `json:"type,omitempty"`
}

// --- Response DTOs ---

// LoginResponse carries the signed token and the resolved user.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

// UserDTO is the public shape of a user record.
type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Avatar   string `json:"avatar,omitempty"`
}

// ItemResponse wraps a work item plus the caller's effective view.
type ItemResponse struct {
	Item          board.WorkItem      `json:"item"`
	EffectiveView board.EffectiveView `json:"effectiveView"`
	Comments      []board.Comment     `json:"comments,omitempty"`
}

// ItemListResponse wraps a filtered item listing.
type ItemListResponse struct {
	Items []board.WorkItem `json:"items"`
	Total int              `json:"total"`
}

// ChatListResponse wraps the caller's visible sessions.
type ChatListResponse struct {
	Chats []chat.Session `json:"chats"`
	Total int            `json:"total"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// parseBody parses and validates a JSON request body. On failure the
// problem response is already written and false is returned.
func parseBody(c *fiber.Ctx, out any) bool {
	if err := c.BodyParser(out); err != nil {
		_ = problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(out); err != nil {
		var reasons []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				reasons = append(reasons, strings.ToLower(ve.Field())+" failed "+ve.Tag())
			}
		} else {
			reasons = append(reasons, err.Error())
		}
		_ = problemResponse(c, fiber.StatusBadRequest,
			"validation_failed", "Bad Request",
			strings.Join(reasons, ", "))
		return false
	}
	return true
}
