package friends

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/notify"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/presence"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

const maxRequestMessage = 200

// EdgeRepository is the full friendship edge store. Insert fails with a
// conflict when an edge for the unordered pair already exists; the unique
// pair-key index is the real guarantee, pre-checks only improve the error.
type EdgeRepository interface {
	EdgeStore
	ByID(ctx context.Context, id string) (*models.FriendEdge, error)
	Insert(ctx context.Context, e *models.FriendEdge) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	AcceptedFor(ctx context.Context, userID string) ([]models.FriendEdge, error)
	PendingTo(ctx context.Context, userID string) ([]models.FriendEdge, error)
	PendingFrom(ctx context.Context, userID string) ([]models.FriendEdge, error)
}

// BlockRepository writes directed block edges.
type BlockRepository interface {
	BlockStore
	Insert(ctx context.Context, blockerID, blockedID string) error
	Delete(ctx context.Context, blockerID, blockedID string) error
}

// UserDirectory resolves users for request targets and search.
type UserDirectory interface {
	ByID(ctx context.Context, id string) (*models.User, error)
	Search(ctx context.Context, query, excludeID string, limit int64) ([]models.User, error)
}

// MessagePurger removes a conversation when a friendship is removed and
// reads conversation tails for the sidebar preview.
type MessagePurger interface {
	DeleteConversation(ctx context.Context, conversationID string) (int64, error)
	ListConversation(ctx context.Context, conversationID string, limit int64, before time.Time) ([]models.Message, error)
}

// Service owns the friend-request lifecycle and the listings built on it.
type Service struct {
	edges    EdgeRepository
	blocks   BlockRepository
	users    UserDirectory
	messages MessagePurger
	gate     *Gate
	reg      *registry.Registry
	tracker  *presence.Tracker
	router   *notify.Router
	log      *zap.Logger
	now      func() time.Time
}

func NewService(edges EdgeRepository, blocks BlockRepository, users UserDirectory, messages MessagePurger, gate *Gate, reg *registry.Registry, tracker *presence.Tracker, router *notify.Router, log *zap.Logger) *Service {
	return &Service{
		edges:    edges,
		blocks:   blocks,
		users:    users,
		messages: messages,
		gate:     gate,
		reg:      reg,
		tracker:  tracker,
		router:   router,
		log:      log,
		now:      time.Now,
	}
}

// SendRequest creates a pending edge and notifies the receiver.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID, message string) (*models.FriendEdge, error) {
	if senderID == receiverID {
		return nil, apperr.Validation("cannot send request to yourself")
	}
	if len(message) > maxRequestMessage {
		return nil, apperr.Validation("request message too long")
	}

	receiver, err := s.users.ByID(ctx, receiverID)
	if err != nil {
		return nil, apperr.Internal("user lookup failed", err)
	}
	if receiver == nil || receiver.IsDeleted {
		return nil, apperr.NotFound("user not found")
	}

	// Friendly pre-check; the unique index still backstops races.
	existing, err := s.edges.EdgeBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, apperr.Internal("edge lookup failed", err)
	}
	if existing != nil {
		if existing.Status == models.FriendStatusAccepted {
			return nil, apperr.Conflict("already friends")
		}
		return nil, apperr.Conflict("request already exists")
	}

	edge := &models.FriendEdge{
		PairKey:    models.PairKey(senderID, receiverID),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.FriendStatusPending,
		Message:    strings.TrimSpace(message),
		CreatedAt:  s.now(),
	}
	if err := s.edges.Insert(ctx, edge); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			return nil, err
		}
		return nil, apperr.Internal("request persist failed", err)
	}

	s.reg.DeliverToUser(receiverID, events.EvtNewFriendRequest, edge)

	sender, _ := s.users.ByID(ctx, senderID)
	senderName := ""
	if sender != nil {
		senderName = sender.Fullname
	}
	if _, err := s.router.Send(ctx, notify.Notification{
		UserID:   receiverID,
		Title:    "New friend request",
		Body:     senderName + " sent you a friend request",
		Priority: notify.PriorityNormal,
		Payload: notify.FriendRequestPayload{
			RequestID:  edge.ID,
			SenderID:   senderID,
			SenderName: senderName,
		},
	}); err != nil {
		s.log.Warn("friend request notification failed",
			zap.String("request_id", edge.ID), zap.Error(err))
	}
	return edge, nil
}

// pendingEdgeFor loads a request and checks it is actionable by userID in
// the given role.
func (s *Service) pendingEdgeFor(ctx context.Context, requestID, userID string, asSender bool) (*models.FriendEdge, error) {
	edge, err := s.edges.ByID(ctx, requestID)
	if err != nil {
		return nil, apperr.Internal("request lookup failed", err)
	}
	if edge == nil {
		return nil, apperr.NotFound("friend request not found")
	}
	owner := edge.ReceiverID
	if asSender {
		owner = edge.SenderID
	}
	if owner != userID {
		return nil, apperr.Authorization("not your request")
	}
	if edge.Status != models.FriendStatusPending {
		return nil, apperr.Conflict("request already processed")
	}
	return edge, nil
}

// AcceptRequest flips the pending edge to accepted and tells both sides.
func (s *Service) AcceptRequest(ctx context.Context, requestID, userID string) error {
	edge, err := s.pendingEdgeFor(ctx, requestID, userID, false)
	if err != nil {
		return err
	}
	if err := s.edges.UpdateStatus(ctx, edge.ID, models.FriendStatusAccepted); err != nil {
		return apperr.Internal("request update failed", err)
	}

	receiver, _ := s.users.ByID(ctx, edge.ReceiverID)
	receiverName := ""
	if receiver != nil {
		receiverName = receiver.Fullname
	}

	s.reg.DeliverToUser(edge.SenderID, events.EvtFriendRequestAccepted, map[string]any{
		"friendId": edge.ReceiverID,
		"message":  receiverName + " accepted your friend request",
	})
	s.reg.DeliverToUser(edge.ReceiverID, events.EvtFriendRequestProcessed, map[string]any{
		"requestId": edge.ID,
		"action":    "accepted",
	})

	if _, err := s.router.Send(ctx, notify.Notification{
		UserID:   edge.SenderID,
		Title:    "Friend request accepted",
		Body:     receiverName + " accepted your friend request",
		Priority: notify.PriorityNormal,
		Payload: notify.FriendAcceptedPayload{
			FriendID:   edge.ReceiverID,
			FriendName: receiverName,
		},
	}); err != nil {
		s.log.Warn("friend accept notification failed",
			zap.String("request_id", edge.ID), zap.Error(err))
	}
	return nil
}

// RejectRequest deletes the pending edge so the pair may try again later.
func (s *Service) RejectRequest(ctx context.Context, requestID, userID string) error {
	edge, err := s.pendingEdgeFor(ctx, requestID, userID, false)
	if err != nil {
		return err
	}
	if err := s.edges.Delete(ctx, edge.ID); err != nil {
		return apperr.Internal("request delete failed", err)
	}
	s.reg.DeliverToUser(edge.SenderID, events.EvtFriendRequestRejected, map[string]any{
		"friendId": edge.ReceiverID,
	})
	s.reg.DeliverToUser(edge.ReceiverID, events.EvtFriendRequestProcessed, map[string]any{
		"requestId": edge.ID,
		"action":    "rejected",
	})
	return nil
}

// CancelRequest lets the sender withdraw a pending request.
func (s *Service) CancelRequest(ctx context.Context, requestID, userID string) error {
	edge, err := s.pendingEdgeFor(ctx, requestID, userID, true)
	if err != nil {
		return err
	}
	if err := s.edges.Delete(ctx, edge.ID); err != nil {
		return apperr.Internal("request delete failed", err)
	}
	s.reg.DeliverToUser(edge.ReceiverID, events.EvtFriendRequestCancelled, map[string]any{
		"requestId": edge.ID,
		"senderId":  edge.SenderID,
	})
	return nil
}

// RemoveFriend deletes the accepted edge and the pair's conversation.
func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) (int64, error) {
	edge, err := s.edges.EdgeBetween(ctx, userID, friendID)
	if err != nil {
		return 0, apperr.Internal("edge lookup failed", err)
	}
	if edge == nil || edge.Status != models.FriendStatusAccepted {
		return 0, apperr.NotFound("friendship not found")
	}
	if err := s.edges.Delete(ctx, edge.ID); err != nil {
		return 0, apperr.Internal("edge delete failed", err)
	}
	deleted, err := s.messages.DeleteConversation(ctx, models.PairKey(userID, friendID))
	if err != nil {
		s.log.Warn("conversation purge failed",
			zap.String("user_id", userID), zap.String("friend_id", friendID), zap.Error(err))
	}
	s.reg.DeliverToUser(friendID, events.EvtRefreshFriendsList, nil)
	return deleted, nil
}

// IncomingRequests lists pending requests addressed to the user.
func (s *Service) IncomingRequests(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	edges, err := s.edges.PendingTo(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("request listing failed", err)
	}
	return edges, nil
}

// OutgoingRequests lists pending requests the user has sent.
func (s *Service) OutgoingRequests(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	edges, err := s.edges.PendingFrom(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("request listing failed", err)
	}
	return edges, nil
}

// profileOf builds the outward view of a user with presence applied, then
// runs the block redaction for the viewer.
func (s *Service) profileOf(ctx context.Context, u *models.User, viewerID string) (models.Profile, error) {
	p := models.Profile{
		ID:         u.ID,
		Fullname:   u.Fullname,
		Username:   u.Username,
		ProfilePic: u.ProfilePic,
		About:      u.About,
		IsDeleted:  u.IsDeleted,
	}
	if u.IsDeleted {
		p.Fullname = models.DeletedDisplayName
		p.Username = ""
		p.ProfilePic = ""
		p.About = ""
		return p, nil
	}
	st := s.tracker.Status(ctx, u.ID)
	p.IsOnline = st.IsOnline
	p.LastSeen = presence.FormattedLastSeen(s.now(), st)
	return s.gate.RedactProfile(ctx, p, u.ID, viewerID)
}

// Friends lists the user's accepted friends as redacted profiles, the
// shape the sidebar renders.
func (s *Service) Friends(ctx context.Context, userID string) ([]models.Profile, error) {
	edges, err := s.edges.AcceptedFor(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("friend listing failed", err)
	}
	out := make([]models.Profile, 0, len(edges))
	for _, e := range edges {
		friendID := e.SenderID
		if friendID == userID {
			friendID = e.ReceiverID
		}
		friend, err := s.users.ByID(ctx, friendID)
		if err != nil || friend == nil {
			continue
		}
		p, err := s.profileOf(ctx, friend, userID)
		if err != nil {
			return nil, apperr.Internal("profile redaction failed", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// SidebarEntry is a friend row with the newest conversation message
// attached for the chat list preview.
type SidebarEntry struct {
	models.Profile
	LastMessage *models.Message `json:"lastMessage,omitempty"`
}

// Sidebar lists the user's friends with the last message of each
// conversation. A preview lookup failure leaves the row without one.
func (s *Service) Sidebar(ctx context.Context, userID string) ([]SidebarEntry, error) {
	profiles, err := s.Friends(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SidebarEntry, 0, len(profiles))
	for _, p := range profiles {
		entry := SidebarEntry{Profile: p}
		tail, err := s.messages.ListConversation(ctx, models.PairKey(userID, p.ID), 1, time.Time{})
		if err != nil {
			s.log.Warn("sidebar preview lookup failed", zap.String("user_id", userID), zap.Error(err))
		} else if len(tail) > 0 {
			m := tail[len(tail)-1]
			entry.LastMessage = &m
		}
		out = append(out, entry)
	}
	return out, nil
}

// SearchResult is a directory hit annotated with the relationship.
type SearchResult struct {
	models.Profile
	RelationshipStatus string `json:"relationshipStatus"`
}

// Search finds users by name fragment, annotated for the viewer.
func (s *Service) Search(ctx context.Context, viewerID, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, apperr.Validation("search query must be at least 2 characters")
	}
	users, err := s.users.Search(ctx, query, viewerID, 20)
	if err != nil {
		return nil, apperr.Internal("user search failed", err)
	}
	out := make([]SearchResult, 0, len(users))
	for i := range users {
		u := &users[i]
		p, err := s.profileOf(ctx, u, viewerID)
		if err != nil {
			return nil, apperr.Internal("profile redaction failed", err)
		}
		rel, err := s.gate.RelationshipStatus(ctx, viewerID, u.ID)
		if err != nil {
			return nil, apperr.Internal("relationship lookup failed", err)
		}
		out = append(out, SearchResult{Profile: p, RelationshipStatus: rel})
	}
	return out, nil
}

// FriendProfile returns one friend's profile; friendship is required.
func (s *Service) FriendProfile(ctx context.Context, viewerID, friendID string) (models.Profile, error) {
	ok, err := s.gate.AreFriends(ctx, viewerID, friendID)
	if err != nil {
		return models.Profile{}, apperr.Internal("friendship check failed", err)
	}
	if !ok {
		return models.Profile{}, apperr.Authorization("can only view profiles of your friends")
	}
	friend, err := s.users.ByID(ctx, friendID)
	if err != nil {
		return models.Profile{}, apperr.Internal("user lookup failed", err)
	}
	if friend == nil {
		return models.Profile{}, apperr.NotFound("user not found")
	}
	return s.profileOf(ctx, friend, viewerID)
}

// Block inserts a directed block edge.
func (s *Service) Block(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return apperr.Validation("cannot block yourself")
	}
	if err := s.blocks.Insert(ctx, blockerID, blockedID); err != nil {
		return apperr.Internal("block persist failed", err)
	}
	return nil
}

// Unblock removes a directed block edge.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID string) error {
	if err := s.blocks.Delete(ctx, blockerID, blockedID); err != nil {
		return apperr.Internal("block delete failed", err)
	}
	return nil
}
