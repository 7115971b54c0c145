package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/friends"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/notify"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

// MessageStore persists conversation messages. ListConversation returns
// ascending creation order; that ordering is the only guarantee the
// conversation needs, concurrent sends interleave by timestamp.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	ListConversation(ctx context.Context, conversationID string, limit int64, before time.Time) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error)
}

// UserStore resolves sender display fields stamped onto messages.
type UserStore interface {
	ByID(ctx context.Context, id string) (*models.User, error)
}

// Publisher mirrors chat activity onto the event bus.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Service is the direct-message data path: authorization through the
// friendship gate, persistence, live delivery, then the notification
// router for the offline path.
type Service struct {
	store  MessageStore
	users  UserStore
	gate   *friends.Gate
	reg    *registry.Registry
	router *notify.Router
	pub    Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store MessageStore, users UserStore, gate *friends.Gate, reg *registry.Registry, router *notify.Router, pub Publisher, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		users:  users,
		gate:   gate,
		reg:    reg,
		router: router,
		pub:    pub,
		log:    log,
		now:    time.Now,
	}
}

// ConversationID is the deterministic join key for a participant pair.
func ConversationID(a, b string) string {
	return models.PairKey(a, b)
}

type readReceipt struct {
	ConversationID string    `json:"conversationId"`
	ReaderID       string    `json:"readerId"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"readAt"`
}

// Send validates, authorizes and persists a message, then drives live
// delivery and the notification path. A sender blocked by the receiver
// gets the message back as if sent; nothing is persisted or delivered.
func (s *Service) Send(ctx context.Context, senderID, receiverID, text, imageURL string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && imageURL == "" {
		return nil, apperr.Validation("message content is required")
	}
	if senderID == receiverID {
		return nil, apperr.Validation("cannot message yourself")
	}

	decision, err := s.gate.CanMessage(ctx, senderID, receiverID)
	if err != nil {
		return nil, apperr.Internal("messaging authorization check failed", err)
	}

	msg := &models.Message{
		ConversationID: ConversationID(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Text:           text,
		Image:          imageURL,
		CreatedAt:      s.now(),
	}

	if decision.Silent {
		// Blocker privacy: the sender sees an ordinary success.
		s.log.Info("message silently discarded",
			zap.String("sender_id", senderID), zap.String("receiver_id", receiverID))
		return msg, nil
	}
	if !decision.Allow {
		return nil, apperr.Authorization("can only message friends")
	}

	if sender, err := s.users.ByID(ctx, senderID); err == nil && sender != nil {
		msg.SenderName = sender.Fullname
		msg.SenderPic = sender.ProfilePic
	}

	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, apperr.Internal("message persist failed", err)
	}

	// Direct chat event to the receiver, independent of the router's
	// push and inbox tiers.
	s.reg.DeliverToUser(receiverID, events.EvtNewMessage, msg)

	// Sender-side confirmation for any other connected device.
	s.reg.DeliverToUser(senderID, events.EvtMessageSent, msg)

	body := text
	if body == "" {
		body = "Sent you an image"
	}
	if _, err := s.router.Send(ctx, notify.Notification{
		UserID:   receiverID,
		Title:    msg.SenderName,
		Body:     body,
		Priority: notify.PriorityHigh,
		Payload: notify.NewMessagePayload{
			SenderID:       senderID,
			SenderName:     msg.SenderName,
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
		},
	}); err != nil {
		s.log.Warn("message notification failed",
			zap.String("message_id", msg.ID), zap.Error(err))
	}

	if s.pub != nil {
		if err := s.pub.Publish(ctx, events.EvtNewMessage, msg); err != nil {
			s.log.Warn("message event publish failed", zap.Error(err))
		}
	}
	return msg, nil
}

// MarkRead flags every unread message the sender addressed to the reader
// in their conversation, stamps readAt, and tells the sender's devices.
func (s *Service) MarkRead(ctx context.Context, readerID, senderID string) (int64, error) {
	at := s.now()
	convID := ConversationID(readerID, senderID)
	count, err := s.store.MarkConversationRead(ctx, convID, readerID, at)
	if err != nil {
		return 0, apperr.Internal("mark read failed", err)
	}
	if count > 0 {
		s.reg.DeliverToUser(senderID, events.EvtMessagesRead, readReceipt{
			ConversationID: convID,
			ReaderID:       readerID,
			Count:          count,
			ReadAt:         at,
		})
	}
	return count, nil
}

// History returns the conversation between the caller and another user in
// creation order. Friendship is required to read it.
func (s *Service) History(ctx context.Context, userID, otherID string, limit int64, before time.Time) ([]models.Message, error) {
	ok, err := s.gate.AreFriends(ctx, userID, otherID)
	if err != nil {
		return nil, apperr.Internal("friendship check failed", err)
	}
	if !ok {
		return nil, apperr.Authorization("can only view conversations with friends")
	}
	msgs, err := s.store.ListConversation(ctx, ConversationID(userID, otherID), limit, before)
	if err != nil {
		return nil, apperr.Internal("conversation query failed", err)
	}
	return msgs, nil
}
