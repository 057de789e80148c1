package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erezmus/crewdesk/internal/apperr"
	"github.com/erezmus/crewdesk/internal/audit"
	"github.com/erezmus/crewdesk/internal/board"
	"github.com/erezmus/crewdesk/internal/chat"
	"github.com/erezmus/crewdesk/internal/health"
	"github.com/erezmus/crewdesk/internal/identity"
	"github.com/erezmus/crewdesk/internal/metrics"
	"github.com/erezmus/crewdesk/internal/resource"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	items     *board.Store
	chats     *chat.Store
	resources *resource.Store
	directory *identity.Directory
	issuer    *TokenIssuer
	checker   *health.Checker
	auditLog  *audit.Log
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
	onMutate  func()
	sweeper   *board.Automation
}

// SetAutomation attaches the sweep engine so due rules apply before
// item reads, not only on the background ticker.
func (h *Handlers) SetAutomation(a *board.Automation) {
	h.sweeper = a
}

func (h *Handlers) sweep() {
	if h.sweeper == nil {
		return
	}
	if res := h.sweeper.RunAll(h.now()); res.RulesFired > 0 {
		h.onMutate()
	}
}

// NewHandlers creates a Handlers instance. onMutate is invoked after
// every successful state change so the caller can schedule a snapshot
// save; nil disables it.
func NewHandlers(
	items *board.Store,
	chats *chat.Store,
	resources *resource.Store,
	directory *identity.Directory,
	issuer *TokenIssuer,
	checker *health.Checker,
	auditLog *audit.Log,
	m *metrics.Metrics,
	logger zerolog.Logger,
	onMutate func(),
) *Handlers {
	if onMutate == nil {
		onMutate = func() {}
	}
	return &Handlers{
		items:     items,
		chats:     chats,
		resources: resources,
		directory: directory,
		issuer:    issuer,
		checker:   checker,
		auditLog:  auditLog,
		metrics:   m,
		logger:    logger.With().Str("component", "handlers").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		onMutate:  onMutate,
	}
}

// errorResponse maps store errors onto problem responses.
func (h *Handlers) errorResponse(c *fiber.Ctx, operation string, err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	case errors.Is(err, apperr.ErrPermissionDenied):
		h.metrics.RecordDenial(operation)
		h.auditLog.Record(audit.Entry{
			UserID:   currentUser(c).ID,
			Role:     string(currentUser(c).Role),
			Action:   operation,
			Resource: c.Path(),
			Result:   audit.ResultDenied,
		})
		return problemResponse(c, fiber.StatusForbidden,
			"permission_denied", "Forbidden", err.Error())
	case errors.Is(err, apperr.ErrChatFrozen):
		return problemResponse(c, fiber.StatusConflict,
			"chat_frozen", "Conflict", err.Error())
	case errors.Is(err, apperr.ErrValidation):
		return problemResponse(c, fiber.StatusBadRequest,
			"validation_failed", "Bad Request", err.Error())
	default:
		h.metrics.RecordError("api", operation)
		h.logger.Error().Err(err).Str("operation", operation).Msg("request failed")
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", "An internal error occurred")
	}
}

func (h *Handlers) recordMutation(c *fiber.Ctx, action, resourceID string) {
	user := currentUser(c)
	h.auditLog.Record(audit.Entry{
		UserID:   user.ID,
		Role:     string(user.Role),
		Action:   action,
		Resource: resourceID,
		Result:   audit.ResultOK,
	})
	h.onMutate()
}

// --- Auth ---

// Login handles POST /api/v1/login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if !parseBody(c, &req) {
		return nil
	}

	user, ok := h.directory.GetByUsername(req.Username)
	if !ok || !h.directory.CheckPassword(req.Username, req.Password) {
		h.logger.Warn().Str("username", req.Username).Msg("login rejected")
		return problemResponse(c, fiber.StatusUnauthorized,
			"invalid_credentials", "Unauthorized", "Unknown username or wrong password")
	}

	token, expires, err := h.issuer.Issue(user, h.now())
	if err != nil {
		return h.errorResponse(c, "login", err)
	}

	return c.JSON(LoginResponse{
		Token:     token,
		ExpiresAt: expires,
		User: UserDTO{
			ID:       user.ID,
			Username: user.Username,
			Name:     user.Name,
			Role:     string(user.Role),
			Avatar:   user.Avatar,
		},
	})
}

// Me handles GET /api/v1/me.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user := currentUser(c)
	return c.JSON(UserDTO{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     string(user.Role),
		Avatar:   user.Avatar,
	})
}

// --- Work items ---

func (h *Handlers) itemInputFromRequest(req ItemRequest, c *fiber.Ctx) (board.CreateInput, error) {
	in := board.CreateInput{
		Title:           req.Title,
		Content:         req.Content,
		BackgroundColor: req.BackgroundColor,
		ExpiryDate:      req.ExpiryDate,
		OwnerID:         req.OwnerID,
		ExecutorIDs:     req.ExecutorIDs,

		ViewPermission:    req.ViewPermission,
		EditPermission:    req.EditPermission,
		CommentPermission: req.CommentPermission,

		Location:    req.Location,
		CustomNotes: req.CustomNotes,

		AutomationRules: req.AutomationRules,
		UserOverrides:   req.UserOverrides,
	}

	if req.Type != "" {
		t := board.ItemType(req.Type)
		switch t {
		case board.TypeMessage, board.TypeTask, board.TypeUpdate:
			in.Type = t
		default:
			return in, apperr.NewValidationError("type", "unknown item type "+strconv.Quote(req.Type))
		}
	}
	if req.Status != "" {
		status, ok := board.ParseStatus(req.Status)
		if !ok {
			return in, apperr.NewValidationError("status", "unknown status "+strconv.Quote(req.Status))
		}
		in.Status = status
	}
	if req.Priority != "" {
		priority, ok := board.ParsePriority(req.Priority)
		if !ok {
			return in, apperr.NewValidationError("priority", "unknown priority "+strconv.Quote(req.Priority))
		}
		in.Priority = priority
	}
	if req.PublishDate != "" {
		t, err := time.Parse(time.RFC3339, req.PublishDate)
		if err != nil {
			return in, apperr.NewValidationError("publishDate", "must be RFC 3339")
		}
		in.PublishDate = t
	}
	return in, nil
}

// ListItems handles GET /api/v1/items.
func (h *Handlers) ListItems(c *fiber.Ctx) error {
	h.sweep()
	user := currentUser(c)
	filter := board.ParseFilter(c.Query("filter"))

	items := h.items.ListVisible(user, filter)
	return c.JSON(ItemListResponse{Items: items, Total: len(items)})
}

// ListAllItems handles GET /api/v1/admin/items. Admin management view,
// archived items included.
func (h *Handlers) ListAllItems(c *fiber.Ctx) error {
	h.sweep()
	items := h.items.ListAll()
	return c.JSON(ItemListResponse{Items: items, Total: len(items)})
}

// GetItem handles GET /api/v1/items/:id.
func (h *Handlers) GetItem(c *fiber.Ctx) error {
	h.sweep()
	user := currentUser(c)
	item, ok := h.items.Get(c.Params("id"))
	if !ok || !item.CanView(user) {
		// a hidden item is indistinguishable from a missing one
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", "work item not found")
	}

	return c.JSON(ItemResponse{
		Item:          item,
		EffectiveView: board.Resolve(item, user.ID),
		Comments:      h.items.Comments(item.ID),
	})
}

// CreateItem handles POST /api/v1/items.
func (h *Handlers) CreateItem(c *fiber.Ctx) error {
	var req ItemRequest
	if !parseBody(c, &req) {
		return nil
	}
	in, err := h.itemInputFromRequest(req, c)
	if err != nil {
		return h.errorResponse(c, "item.create", err)
	}

	item, err := h.items.Create(in, currentUser(c))
	if err != nil {
		return h.errorResponse(c, "item.create", err)
	}

	h.metrics.RecordItemCreated()
	h.metrics.SetItemsActive(float64(h.items.Count()))
	h.recordMutation(c, "item.create", item.ID)
	return c.Status(fiber.StatusCreated).JSON(ItemResponse{
		Item:          item,
		EffectiveView: board.Resolve(item, currentUser(c).ID),
	})
}

// UpdateItem handles PUT /api/v1/items/:id.
func (h *Handlers) UpdateItem(c *fiber.Ctx) error {
	var req ItemRequest
	if !parseBody(c, &req) {
		return nil
	}
	in, err := h.itemInputFromRequest(req, c)
	if err != nil {
		return h.errorResponse(c, "item.update", err)
	}

	patch := board.UpdateInput{
		CreateInput: in,
		ArchiveDate: req.ArchiveDate,
		ReadBy:      req.ReadBy,
		CompletedBy: req.CompletedBy,
	}

	item, err := h.items.Update(c.Params("id"), patch, currentUser(c))
	if err != nil {
		return h.errorResponse(c, "item.update", err)
	}

	h.recordMutation(c, "item.update", item.ID)
	return c.JSON(ItemResponse{
		Item:          item,
		EffectiveView: board.Resolve(item, currentUser(c).ID),
	})
}

// ToggleItem handles POST /api/v1/items/:id/toggle.
func (h *Handlers) ToggleItem(c *fiber.Ctx) error {
	item, err := h.items.ToggleStatus(c.Params("id"))
	if err != nil {
		return h.errorResponse(c, "item.toggle", err)
	}
	h.recordMutation(c, "item.toggle", item.ID)
	return c.JSON(ItemResponse{Item: item})
}

// MarkItemRead handles POST /api/v1/items/:id/read.
func (h *Handlers) MarkItemRead(c *fiber.Ctx) error {
	item, err := h.items.MarkRead(c.Params("id"), currentUser(c).ID)
	if err != nil {
		return h.errorResponse(c, "item.read", err)
	}
	h.onMutate()
	return c.JSON(ItemResponse{Item: item})
}

// MarkItemCompleted handles POST /api/v1/items/:id/complete.
func (h *Handlers) MarkItemCompleted(c *fiber.Ctx) error {
	item, err := h.items.MarkCompleted(c.Params("id"), currentUser(c).ID)
	if err != nil {
		return h.errorResponse(c, "item.complete", err)
	}
	h.onMutate()
	return c.JSON(ItemResponse{Item: item})
}

// DeleteItem handles DELETE /api/v1/items/:id.
func (h *Handlers) DeleteItem(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.items.Delete(id, currentUser(c)); err != nil {
		return h.errorResponse(c, "item.delete", err)
	}
	h.metrics.SetItemsActive(float64(h.items.Count()))
	h.recordMutation(c, "item.delete", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// AddComment handles POST /api/v1/items/:id/comments.
func (h *Handlers) AddComment(c *fiber.Ctx) error {
	var req CommentRequest
	if !parseBody(c, &req) {
		return nil
	}

	comment, err := h.items.AddComment(c.Params("id"), currentUser(c), req.Content, req.Context)
	if err != nil {
		return h.errorResponse(c, "comment.create", err)
	}

	h.recordMutation(c, "comment.create", comment.ID)
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// ListComments handles GET /api/v1/items/:id/comments.
func (h *Handlers) ListComments(c *fiber.Ctx) error {
	user := currentUser(c)
	item, ok := h.items.Get(c.Params("id"))
	if !ok || !item.CanView(user) {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", "work item not found")
	}
	return c.JSON(h.items.Comments(item.ID))
}

// --- Chats ---

// ListChats handles GET /api/v1/chats.
func (h *Handlers) ListChats(c *fiber.Ctx) error {
	sessions := h.chats.ListVisible(currentUser(c))
	return c.JSON(ChatListResponse{Chats: sessions, Total: len(sessions)})
}

// CreateChat handles POST /api/v1/chats.
func (h *Handlers) CreateChat(c *fiber.Ctx) error {
	var req ChatCreateRequest
	if !parseBody(c, &req) {
		return nil
	}

	session, err := h.chats.Create(chat.CreateInput{
		Type:          chat.Type(req.Type),
		Title:         req.Title,
		Participants:  req.Participants,
		ContextItemID: req.ContextItemID,
	}, currentUser(c))
	if err != nil {
		return h.errorResponse(c, "chat.create", err)
	}

	h.recordMutation(c, "chat.create", session.ID)
	return c.Status(fiber.StatusCreated).JSON(session)
}

// PostMessage handles POST /api/v1/chats/:id/messages.
func (h *Handlers) PostMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if !parseBody(c, &req) {
		return nil
	}

	user := currentUser(c)
	session, ok := h.chats.Get(c.Params("id"))
	if !ok || !session.VisibleTo(user) {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", "chat not found")
	}

	msg, err := h.chats.PostMessage(session.ID, user, req.Content, chat.MessageKind(req.Kind))
	if err != nil {
		return h.errorResponse(c, "chat.post", err)
	}

	h.metrics.RecordChatMessage(string(session.Type))
	h.onMutate()
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// ToggleFreeze handles POST /api/v1/chats/:id/freeze.
func (h *Handlers) ToggleFreeze(c *fiber.Ctx) error {
	session, err := h.chats.ToggleFreeze(c.Params("id"), currentUser(c))
	if err != nil {
		return h.errorResponse(c, "chat.freeze", err)
	}
	h.recordMutation(c, "chat.freeze", session.ID)
	return c.JSON(session)
}

// HideChat handles POST /api/v1/chats/:id/hide.
func (h *Handlers) HideChat(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.chats.HideForSelf(id, currentUser(c).ID); err != nil {
		return h.errorResponse(c, "chat.hide", err)
	}
	h.onMutate()
	return c.SendStatus(fiber.StatusNoContent)
}

// UnhideChat handles POST /api/v1/chats/:id/unhide.
func (h *Handlers) UnhideChat(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.chats.Unhide(id, currentUser(c).ID); err != nil {
		return h.errorResponse(c, "chat.unhide", err)
	}
	h.onMutate()
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteChat handles DELETE /api/v1/chats/:id.
func (h *Handlers) DeleteChat(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.chats.Delete(id, currentUser(c)); err != nil {
		return h.errorResponse(c, "chat.delete", err)
	}
	h.recordMutation(c, "chat.delete", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Resources & dashboard ---

// ListResources handles GET /api/v1/resources.
func (h *Handlers) ListResources(c *fiber.Ctx) error {
	return c.JSON(h.resources.Resources())
}

// CreateResource handles POST /api/v1/resources.
func (h *Handlers) CreateResource(c *fiber.Ctx) error {
	var req resource.Resource
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	r, err := h.resources.CreateResource(req, currentUser(c))
	if err != nil {
		return h.errorResponse(c, "resource.create", err)
	}
	h.recordMutation(c, "resource.create", r.ID)
	return c.Status(fiber.StatusCreated).JSON(r)
}

// DeleteResource handles DELETE /api/v1/resources/:id.
func (h *Handlers) DeleteResource(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.resources.DeleteResource(id, currentUser(c)); err != nil {
		return h.errorResponse(c, "resource.delete", err)
	}
	h.recordMutation(c, "resource.delete", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// ListShortcuts handles GET /api/v1/shortcuts.
func (h *Handlers) ListShortcuts(c *fiber.Ctx) error {
	return c.JSON(h.resources.ShortcutsFor(currentUser(c)))
}

// --- Audit & probes ---

// ListAudit handles GET /api/v1/admin/audit.
func (h *Handlers) ListAudit(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	return c.JSON(h.auditLog.Entries(c.Query("userId"), limit))
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())
	ready := true
	for _, s := range results {
		if s == health.StatusDown {
			ready = false
			break
		}
	}

	status := "ready"
	code := fiber.StatusOK
	if !ready {
		status = "not_ready"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"status": status, "checks": results})
}
