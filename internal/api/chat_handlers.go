package api

import (
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/auth"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/chat"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/media"
)

const defaultHistoryLimit = 50

// ChatHandlers owns the direct-message endpoints.
type ChatHandlers struct {
	svc      *chat.Service
	uploader *media.Uploader
	log      *zap.Logger
}

func NewChatHandlers(svc *chat.Service, uploader *media.Uploader, log *zap.Logger) *ChatHandlers {
	return &ChatHandlers{svc: svc, uploader: uploader, log: log}
}

// Send accepts JSON for text-only messages and multipart when an image
// rides along.
func (h *ChatHandlers) Send(c *fiber.Ctx) error {
	senderID := auth.UserID(c)
	receiverID := c.Params("id")

	var text, imageURL string
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return fail(c, h.log, "send message", apperr.Validation("unreadable upload"))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fail(c, h.log, "send message", apperr.Validation("unreadable upload"))
		}
		imageURL, err = h.uploader.UploadMessageImage(c.UserContext(), senderID, data)
		if err != nil {
			return fail(c, h.log, "send message", err)
		}
		text = c.FormValue("text")
	} else {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fail(c, h.log, "send message", apperr.Validation("invalid request body"))
		}
		text = req.Text
	}

	msg, err := h.svc.Send(c.UserContext(), senderID, receiverID, text, imageURL)
	if err != nil {
		return fail(c, h.log, "send message", err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *ChatHandlers) History(c *fiber.Ctx) error {
	limit := int64(defaultHistoryLimit)
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fail(c, h.log, "message history", apperr.Validation("invalid before timestamp"))
		}
		before = t
	}
	msgs, err := h.svc.History(c.UserContext(), auth.UserID(c), c.Params("id"), limit, before)
	if err != nil {
		return fail(c, h.log, "message history", err)
	}
	return c.JSON(msgs)
}

func (h *ChatHandlers) MarkRead(c *fiber.Ctx) error {
	count, err := h.svc.MarkRead(c.UserContext(), auth.UserID(c), c.Params("id"))
	if err != nil {
		return fail(c, h.log, "mark read", err)
	}
	return c.JSON(fiber.Map{"marked": count})
}
