package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/auth"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/notify"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/store"
)

const defaultInboxLimit = 50

// NotificationHandlers owns the stored-inbox, device-token and
// delivery-metrics endpoints.
type NotificationHandlers struct {
	inbox   *store.Inbox
	tokens  *notify.TokenRegistry
	metrics *notify.Metrics
	log     *zap.Logger
}

func NewNotificationHandlers(inbox *store.Inbox, tokens *notify.TokenRegistry, metrics *notify.Metrics, log *zap.Logger) *NotificationHandlers {
	return &NotificationHandlers{inbox: inbox, tokens: tokens, metrics: metrics, log: log}
}

func (h *NotificationHandlers) List(c *fiber.Ctx) error {
	limit := int64(defaultInboxLimit)
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	list, err := h.inbox.List(c.UserContext(), auth.UserID(c), limit)
	if err != nil {
		return fail(c, h.log, "list notifications", err)
	}
	return c.JSON(list)
}

func (h *NotificationHandlers) UnreadCount(c *fiber.Ctx) error {
	n, err := h.inbox.UnreadCount(c.UserContext(), auth.UserID(c))
	if err != nil {
		return fail(c, h.log, "unread count", err)
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *NotificationHandlers) MarkRead(c *fiber.Ctx) error {
	if err := h.inbox.MarkRead(c.UserContext(), auth.UserID(c), c.Params("id")); err != nil {
		return fail(c, h.log, "mark notification read", err)
	}
	return c.JSON(fiber.Map{"message": "notification read"})
}

func (h *NotificationHandlers) MarkAllRead(c *fiber.Ctx) error {
	n, err := h.inbox.MarkAllRead(c.UserContext(), auth.UserID(c))
	if err != nil {
		return fail(c, h.log, "mark all read", err)
	}
	return c.JSON(fiber.Map{"marked": n})
}

func (h *NotificationHandlers) Clear(c *fiber.Ctx) error {
	n, err := h.inbox.Clear(c.UserContext(), auth.UserID(c))
	if err != nil {
		return fail(c, h.log, "clear notifications", err)
	}
	return c.JSON(fiber.Map{"cleared": n})
}

func (h *NotificationHandlers) RegisterToken(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return fail(c, h.log, "register token", apperr.Validation("token is required"))
	}
	if err := h.tokens.Register(c.UserContext(), auth.UserID(c), req.Token, req.Platform); err != nil {
		return fail(c, h.log, "register token", err)
	}
	return c.JSON(fiber.Map{"message": "device registered"})
}

func (h *NotificationHandlers) UnregisterToken(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return fail(c, h.log, "unregister token", apperr.Validation("token is required"))
	}
	if err := h.tokens.Unregister(c.UserContext(), auth.UserID(c), req.Token); err != nil {
		return fail(c, h.log, "unregister token", err)
	}
	return c.JSON(fiber.Map{"message": "device unregistered"})
}

// DeliveryMetrics exposes the resettable in-process counters.
func (h *NotificationHandlers) DeliveryMetrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}

func (h *NotificationHandlers) ResetDeliveryMetrics(c *fiber.Ctx) error {
	h.metrics.Reset()
	return c.JSON(fiber.Map{"message": "metrics reset"})
}
