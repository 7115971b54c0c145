// Package ws is the websocket transport adapter: upgrade authentication,
// the per-connection read and write pumps, and the small set of client
// events handled at transport level (typing relay, snapshot sync,
// active-chat tagging).
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/auth"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/presence"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxMsgSize = 4096
)

// Handler upgrades authenticated connections and runs the pumps.
type Handler struct {
	tokens  *auth.TokenManager
	reg     *registry.Registry
	tracker *presence.Tracker
	log     *zap.Logger
}

func NewHandler(tokens *auth.TokenManager, reg *registry.Registry, tracker *presence.Tracker, log *zap.Logger) *Handler {
	return &Handler{tokens: tokens, reg: reg, tracker: tracker, log: log}
}

// UpgradeGate authenticates before the protocol switch. The session cookie
// works for browsers; a token query parameter covers clients that cannot
// attach cookies to the upgrade request.
func (h *Handler) UpgradeGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Cookies(auth.CookieName)
		if token == "" {
			token = c.Query("token")
		}
		userID, err := h.tokens.Verify(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}

// Serve runs one connection to completion.
func (h *Handler) Serve(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(string)
	if userID == "" {
		_ = c.Close()
		return
	}

	handle := registry.NewHandle(uuid.NewString(), userID)
	ctx := context.Background()
	h.tracker.OnConnect(ctx, handle)
	h.log.Info("socket connected",
		zap.String("user_id", userID), zap.String("handle_id", handle.ID))

	done := make(chan struct{})
	go h.writePump(c, handle, done)
	h.readPump(c, handle)

	handle.Close()
	close(done)
	h.tracker.OnDisconnect(ctx, handle.ID)
	h.log.Info("socket disconnected",
		zap.String("user_id", userID), zap.String("handle_id", handle.ID))
}

func (h *Handler) writePump(c *websocket.Conn, handle *registry.Handle, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-handle.Send:
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) readPump(c *websocket.Conn, handle *registry.Handle) {
	c.SetReadLimit(maxMsgSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		h.dispatch(handle, env)
	}
}

type typingPayload struct {
	ReceiverID string `json:"receiverId"`
}

type activeChatPayload struct {
	ConversationID string `json:"conversationId"`
}

func (h *Handler) dispatch(handle *registry.Handle, env events.Envelope) {
	raw, err := json.Marshal(env.Payload)
	if err != nil {
		return
	}
	switch env.Event {
	case events.EvtTyping, events.EvtStopTyping:
		var p typingPayload
		if json.Unmarshal(raw, &p) != nil || p.ReceiverID == "" {
			return
		}
		out := events.EvtUserTyping
		if env.Event == events.EvtStopTyping {
			out = events.EvtUserStoppedTyping
		}
		h.reg.DeliverToUser(p.ReceiverID, out, map[string]string{"senderId": handle.UserID})
	case events.EvtRequestOnlineUsers:
		h.tracker.SendSnapshot(handle)
	case events.EvtSetActiveChat:
		var p activeChatPayload
		if json.Unmarshal(raw, &p) != nil {
			return
		}
		// empty clears the tag when the user leaves the conversation
		handle.SetActiveChat(p.ConversationID)
	}
}
