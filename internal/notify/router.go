package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

// Method is the delivery tier an attempt resolved to.
type Method string

const (
	MethodSocket   Method = "socket"
	MethodPush     Method = "push"
	MethodStored   Method = "stored"
	MethodDisabled Method = "disabled"
	MethodNone     Method = "none"
)

// Outcome describes how a notification attempt ended. Send never returns
// an error for delivery problems; the outcome carries them.
type Outcome struct {
	Delivered bool   `json:"delivered"`
	Method    Method `json:"method"`
	Reason    string `json:"reason,omitempty"`
}

// TokenStore lists a user's registered device push tokens.
type TokenStore interface {
	TokensFor(ctx context.Context, userID string) ([]string, error)
}

// InboxStore appends undelivered notifications to the user's unread list.
type InboxStore interface {
	Append(ctx context.Context, n models.InboxNotification) error
}

// Router walks the delivery tiers in strict order: live socket fan-out,
// then push service, then persisted inbox. First success wins.
type Router struct {
	cfg     config.NotificationCfg
	reg     *registry.Registry
	tokens  TokenStore
	inbox   InboxStore
	push    PushClient
	metrics *Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewRouter(cfg config.NotificationCfg, reg *registry.Registry, tokens TokenStore, inbox InboxStore, push PushClient, metrics *Metrics, log *zap.Logger) *Router {
	return &Router{
		cfg:     cfg,
		reg:     reg,
		tokens:  tokens,
		inbox:   inbox,
		push:    push,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

func (r *Router) typeEnabled(t Type) bool {
	switch t {
	case TypeNewMessage:
		return r.cfg.NewMessageEnabled
	case TypeFriendRequest:
		return r.cfg.FriendRequestEnabled
	case TypeFriendAccepted:
		return r.cfg.FriendAcceptEnabled
	case TypeAccountActivity:
		return r.cfg.AccountActivityEnabled
	default:
		return true
	}
}

// Send attempts delivery of one notification. Only a malformed payload is
// an error; every delivery failure degrades through the tiers and lands
// in the returned outcome.
func (r *Router) Send(ctx context.Context, n Notification) (Outcome, error) {
	if err := n.Payload.Validate(); err != nil {
		return Outcome{}, err
	}
	typ := n.Payload.Type()

	outcome := r.route(ctx, n, typ)
	r.metrics.record(typ, outcome.Method)
	return outcome, nil
}

func (r *Router) route(ctx context.Context, n Notification, typ Type) Outcome {
	if !r.typeEnabled(typ) {
		return Outcome{Method: MethodDisabled, Reason: "type_disabled"}
	}

	// Tier 1: live socket fan-out to every device.
	if r.cfg.SocketEnabled && r.reg.IsOnline(n.UserID) {
		r.deliverLive(n, typ)
		return Outcome{Delivered: true, Method: MethodSocket}
	}

	// Tier 2: push service, gated, requires at least one device token.
	if r.cfg.PushEnabled && r.cfg.OfflinePushEnabled {
		if outcome, ok := r.deliverPush(ctx, n, typ); ok {
			return outcome
		}
	}

	// Tier 3: persisted inbox.
	if r.cfg.StoreUndelivered {
		if err := r.inbox.Append(ctx, models.InboxNotification{
			UserID:    n.UserID,
			Type:      string(typ),
			Title:     n.Title,
			Body:      n.Body,
			Data:      n.Payload.Data(),
			Read:      false,
			CreatedAt: r.now(),
		}); err != nil {
			r.log.Error("notification inbox store failed",
				zap.String("user_id", n.UserID), zap.String("type", string(typ)), zap.Error(err))
			return Outcome{Method: MethodNone, Reason: "store_failed"}
		}
		return Outcome{Method: MethodStored}
	}

	return Outcome{Method: MethodNone, Reason: "all_methods_disabled"}
}

type wireNotification struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func (r *Router) deliverLive(n Notification, typ Type) {
	frame := wireNotification{
		Type:      string(typ),
		Title:     n.Title,
		Body:      n.Body,
		Data:      n.Payload.Data(),
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}

	// A handle whose client is already looking at this conversation gets
	// no extra notification frame; the chat event itself is enough.
	conv := ""
	if c, ok := n.Payload.(interface{ Conversation() string }); ok {
		conv = c.Conversation()
	}
	for _, h := range r.reg.HandlesFor(n.UserID) {
		if conv != "" && h.ActiveChat() == conv {
			continue
		}
		h.Deliver(events.EvtNotification, frame)
	}
}

// deliverPush returns ok=false when the tier does not apply (no tokens or
// token lookup failed); a dispatch failure also falls through so tier 3
// can catch the notification.
func (r *Router) deliverPush(ctx context.Context, n Notification, typ Type) (Outcome, bool) {
	tokens, err := r.tokens.TokensFor(ctx, n.UserID)
	if err != nil {
		r.log.Warn("device token lookup failed",
			zap.String("user_id", n.UserID), zap.Error(err))
		return Outcome{}, false
	}
	if len(tokens) == 0 {
		return Outcome{}, false
	}
	msg := PushMessage{
		Title:    n.Title,
		Body:     n.Body,
		Data:     n.Payload.Data(),
		Priority: n.Priority,
	}
	if err := r.push.Send(ctx, tokens, msg); err != nil {
		r.log.Warn("push dispatch failed, storing notification",
			zap.String("user_id", n.UserID), zap.String("type", string(typ)), zap.Error(err))
		return Outcome{}, false
	}
	return Outcome{Delivered: true, Method: MethodPush}, true
}

// Metrics exposes the router's counters for the admin endpoint.
func (r *Router) Metrics() *Metrics { return r.metrics }
