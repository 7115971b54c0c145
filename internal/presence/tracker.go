package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

// State is the persisted presence record for one user.
type State struct {
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// Store persists presence transitions. Failures are tolerated: a slow or
// unreachable store must never wedge live connections.
type Store interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	Get(ctx context.Context, userID string) (State, error)
}

// Publisher mirrors presence transitions onto the event bus.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

type statusUpdate struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// Tracker drives the per-user OFFLINE -> ONLINE -> OFFLINE state machine
// from connection registry transitions.
type Tracker struct {
	reg   *registry.Registry
	store Store
	pub   Publisher
	log   *zap.Logger
	now   func() time.Time

	syncInterval time.Duration
}

func NewTracker(reg *registry.Registry, store Store, pub Publisher, log *zap.Logger) *Tracker {
	return &Tracker{
		reg:          reg,
		store:        store,
		pub:          pub,
		log:          log,
		now:          time.Now,
		syncInterval: 5 * time.Second,
	}
}

// OnConnect registers the handle. The connecting client always receives a
// full online snapshot; only the user's first handle triggers the online
// transition and its broadcast.
func (t *Tracker) OnConnect(ctx context.Context, h *registry.Handle) {
	_, first := t.reg.Register(h)

	h.Deliver(events.EvtOnlineUsers, t.reg.OnlineUserIDs())

	if !first {
		return
	}
	if err := t.store.SetOnline(ctx, h.UserID); err != nil {
		t.log.Warn("presence persist failed on connect",
			zap.String("user_id", h.UserID), zap.Error(err))
	}
	t.broadcast(ctx, h.UserID, true)
}

// OnDisconnect deregisters by handle id. The offline transition fires only
// when the user's last handle is gone.
func (t *Tracker) OnDisconnect(ctx context.Context, handleID string) {
	userID, _, last := t.reg.Deregister(handleID)
	if userID == "" || !last {
		return
	}
	if err := t.store.SetOffline(ctx, userID, t.now()); err != nil {
		t.log.Warn("presence persist failed on disconnect",
			zap.String("user_id", userID), zap.Error(err))
	}
	t.broadcast(ctx, userID, false)
}

func (t *Tracker) broadcast(ctx context.Context, userID string, online bool) {
	update := statusUpdate{UserID: userID, IsOnline: online}
	t.reg.DeliverToAll(events.EvtUserStatusUpdate, update)
	t.reg.DeliverToAll(events.EvtOnlineUsers, t.reg.OnlineUserIDs())
	if t.pub != nil {
		if err := t.pub.Publish(ctx, events.EvtUserStatusUpdate, update); err != nil {
			t.log.Warn("presence event publish failed", zap.Error(err))
		}
	}
}

// SendSnapshot answers an explicit client sync request.
func (t *Tracker) SendSnapshot(h *registry.Handle) {
	h.Deliver(events.EvtOnlineUsers, t.reg.OnlineUserIDs())
}

// Run broadcasts the full online snapshot on a fixed interval until the
// context is cancelled. The snapshot is idempotent, so replaying it
// repairs any missed incremental broadcast.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := t.reg.OnlineUserIDs()
			if len(ids) > 0 {
				t.reg.DeliverToAll(events.EvtOnlineUsers, ids)
			}
		}
	}
}

// Status reads the persisted presence state, preferring the live registry
// for the online bit.
func (t *Tracker) Status(ctx context.Context, userID string) State {
	if t.reg.IsOnline(userID) {
		return State{IsOnline: true}
	}
	st, err := t.store.Get(ctx, userID)
	if err != nil {
		t.log.Debug("presence read failed", zap.String("user_id", userID), zap.Error(err))
		return State{}
	}
	st.IsOnline = false
	return st
}
