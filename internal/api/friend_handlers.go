package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/auth"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/friends"
)

// FriendHandlers owns the friendship and directory endpoints.
type FriendHandlers struct {
	svc *friends.Service
	log *zap.Logger
}

func NewFriendHandlers(svc *friends.Service, log *zap.Logger) *FriendHandlers {
	return &FriendHandlers{svc: svc, log: log}
}

func (h *FriendHandlers) SendRequest(c *fiber.Ctx) error {
	var req struct {
		ReceiverID string `json:"receiverId"`
		Message    string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, h.log, "send friend request", apperr.Validation("invalid request body"))
	}
	edge, err := h.svc.SendRequest(c.UserContext(), auth.UserID(c), req.ReceiverID, req.Message)
	if err != nil {
		return fail(c, h.log, "send friend request", err)
	}
	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *FriendHandlers) AcceptRequest(c *fiber.Ctx) error {
	if err := h.svc.AcceptRequest(c.UserContext(), c.Params("id"), auth.UserID(c)); err != nil {
		return fail(c, h.log, "accept friend request", err)
	}
	return c.JSON(fiber.Map{"message": "friend request accepted"})
}

func (h *FriendHandlers) RejectRequest(c *fiber.Ctx) error {
	if err := h.svc.RejectRequest(c.UserContext(), c.Params("id"), auth.UserID(c)); err != nil {
		return fail(c, h.log, "reject friend request", err)
	}
	return c.JSON(fiber.Map{"message": "friend request rejected"})
}

func (h *FriendHandlers) CancelRequest(c *fiber.Ctx) error {
	if err := h.svc.CancelRequest(c.UserContext(), c.Params("id"), auth.UserID(c)); err != nil {
		return fail(c, h.log, "cancel friend request", err)
	}
	return c.JSON(fiber.Map{"message": "friend request cancelled"})
}

func (h *FriendHandlers) RemoveFriend(c *fiber.Ctx) error {
	purged, err := h.svc.RemoveFriend(c.UserContext(), auth.UserID(c), c.Params("id"))
	if err != nil {
		return fail(c, h.log, "remove friend", err)
	}
	return c.JSON(fiber.Map{"message": "friend removed", "messagesDeleted": purged})
}

func (h *FriendHandlers) Incoming(c *fiber.Ctx) error {
	list, err := h.svc.IncomingRequests(c.UserContext(), auth.UserID(c))
	if err != nil {
		return fail(c, h.log, "incoming requests", err)
	}
	return c.JSON(list)
}

func (h *FriendHandlers) Outgoing(c *fiber.Ctx) error {
	list, err := h.svc.OutgoingRequests(c.UserContext(), auth.UserID(c))
	if err != nil {
		return fail(c, h.log, "outgoing requests", err)
	}
	return c.JSON(list)
}

func (h *FriendHandlers) List(c *fiber.Ctx) error {
	list, err := h.svc.Sidebar(c.UserContext(), auth.UserID(c))
	if err != nil {
		return fail(c, h.log, "list friends", err)
	}
	return c.JSON(list)
}

func (h *FriendHandlers) Search(c *fiber.Ctx) error {
	results, err := h.svc.Search(c.UserContext(), auth.UserID(c), c.Query("q"))
	if err != nil {
		return fail(c, h.log, "search users", err)
	}
	return c.JSON(results)
}

func (h *FriendHandlers) Profile(c *fiber.Ctx) error {
	profile, err := h.svc.FriendProfile(c.UserContext(), auth.UserID(c), c.Params("id"))
	if err != nil {
		return fail(c, h.log, "friend profile", err)
	}
	return c.JSON(profile)
}

func (h *FriendHandlers) Block(c *fiber.Ctx) error {
	if err := h.svc.Block(c.UserContext(), auth.UserID(c), c.Params("id")); err != nil {
		return fail(c, h.log, "block user", err)
	}
	return c.JSON(fiber.Map{"message": "user blocked"})
}

func (h *FriendHandlers) Unblock(c *fiber.Ctx) error {
	if err := h.svc.Unblock(c.UserContext(), auth.UserID(c), c.Params("id")); err != nil {
		return fail(c, h.log, "unblock user", err)
	}
	return c.JSON(fiber.Map{"message": "user unblocked"})
}
