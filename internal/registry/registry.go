package registry

import (
	"encoding/json"
	"sync"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
)

const sendBuffer = 256

// Handle is one live transport connection owned by a user. A user may hold
// several at once (multi-device).
type Handle struct {
	ID     string
	UserID string

	// Outbound frames for the transport write pump.
	Send chan []byte

	mu         sync.RWMutex
	activeChat string
	closed     bool
}

func NewHandle(id, userID string) *Handle {
	return &Handle{
		ID:     id,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

// SetActiveChat tags the handle with the conversation its client is
// currently viewing; used for duplicate-disruption suppression.
func (h *Handle) SetActiveChat(conversationID string) {
	h.mu.Lock()
	h.activeChat = conversationID
	h.mu.Unlock()
}

func (h *Handle) ActiveChat() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.activeChat
}

// Deliver queues a named event on the handle. Slow consumers are dropped
// rather than blocking the caller.
func (h *Handle) Deliver(event string, payload any) bool {
	data, err := json.Marshal(events.Envelope{Event: event, Payload: payload})
	if err != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return false
	}
	select {
	case h.Send <- data:
		return true
	default:
		return false
	}
}

// Close marks the handle dead and releases its write pump.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.Send)
}

// Registry maps user identities to their live connection handles. It is
// the one piece of shared mutable state in the process; every mutation
// happens under one lock and never spans a store round-trip. A user key
// exists iff its handle set is non-empty; that is the online predicate.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]map[*Handle]struct{}
	byHandle map[string]*Handle
}

func New() *Registry {
	return &Registry{
		byUser:   make(map[string]map[*Handle]struct{}),
		byHandle: make(map[string]*Handle),
	}
}

// Register adds the handle to its user's set. Idempotent for a handle
// already present. Returns the user's handle count after the add and
// whether this registration took the user from zero handles to one.
func (r *Registry) Register(h *Handle) (count int, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byUser[h.UserID]
	if !ok {
		set = make(map[*Handle]struct{})
		r.byUser[h.UserID] = set
	}
	first = len(set) == 0
	set[h] = struct{}{}
	r.byHandle[h.ID] = h
	return len(set), first
}

// Deregister removes the handle by reverse lookup. Returns the owning
// user, the remaining handle count, and whether this removal emptied the
// user's set (the offline transition). Unknown handles are a no-op.
func (r *Registry) Deregister(handleID string) (userID string, remaining int, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byHandle[handleID]
	if !ok {
		return "", 0, false
	}
	delete(r.byHandle, handleID)
	userID = h.UserID
	set := r.byUser[userID]
	delete(set, h)
	if len(set) == 0 {
		delete(r.byUser, userID)
		return userID, 0, true
	}
	return userID, len(set), false
}

// HandlesFor returns a snapshot of the user's live handles; empty slice,
// never nil, when the user is absent.
func (r *Registry) HandlesFor(userID string) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	out := make([]*Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineUserIDs snapshots every user with at least one live handle.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	return out
}

// DeliverToUser fans a named event out to every live handle of the user.
// Returns the number of handles that accepted the frame.
func (r *Registry) DeliverToUser(userID, event string, payload any) int {
	delivered := 0
	for _, h := range r.HandlesFor(userID) {
		if h.Deliver(event, payload) {
			delivered++
		}
	}
	return delivered
}

// DeliverToAll broadcasts a named event to every connected handle.
func (r *Registry) DeliverToAll(event string, payload any) {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.byHandle))
	for _, h := range r.byHandle {
		handles = append(handles, h)
	}
	r.mu.RUnlock()
	for _, h := range handles {
		h.Deliver(event, payload)
	}
}
