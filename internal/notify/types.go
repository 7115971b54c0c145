package notify

import (
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
)

// Type is the closed set of notification kinds.
type Type string

const (
	TypeNewMessage      Type = "new_message"
	TypeFriendRequest   Type = "friend_request"
	TypeFriendAccepted  Type = "friend_request_accepted"
	TypeAccountActivity Type = "account_activity"
)

// Payload is one of the tagged variants below. Data is the JSON-facing
// shape stored in the inbox and attached to push dispatches.
type Payload interface {
	Type() Type
	Data() map[string]any
	Validate() error
}

type NewMessagePayload struct {
	SenderID       string
	SenderName     string
	MessageID      string
	ConversationID string
}

func (p NewMessagePayload) Type() Type { return TypeNewMessage }

func (p NewMessagePayload) Data() map[string]any {
	return map[string]any{
		"senderId":       p.SenderID,
		"senderName":     p.SenderName,
		"messageId":      p.MessageID,
		"conversationId": p.ConversationID,
	}
}

func (p NewMessagePayload) Validate() error {
	if p.SenderID == "" || p.ConversationID == "" {
		return apperr.Validation("new-message notification requires sender and conversation")
	}
	return nil
}

// Conversation exposes the chat this payload belongs to, used for
// duplicate-disruption suppression on handles viewing it.
func (p NewMessagePayload) Conversation() string { return p.ConversationID }

type FriendRequestPayload struct {
	RequestID  string
	SenderID   string
	SenderName string
}

func (p FriendRequestPayload) Type() Type { return TypeFriendRequest }

func (p FriendRequestPayload) Data() map[string]any {
	return map[string]any{
		"requestId":  p.RequestID,
		"senderId":   p.SenderID,
		"senderName": p.SenderName,
	}
}

func (p FriendRequestPayload) Validate() error {
	if p.RequestID == "" || p.SenderID == "" {
		return apperr.Validation("friend-request notification requires request and sender")
	}
	return nil
}

type FriendAcceptedPayload struct {
	FriendID   string
	FriendName string
}

func (p FriendAcceptedPayload) Type() Type { return TypeFriendAccepted }

func (p FriendAcceptedPayload) Data() map[string]any {
	return map[string]any{
		"friendId":   p.FriendID,
		"friendName": p.FriendName,
	}
}

func (p FriendAcceptedPayload) Validate() error {
	if p.FriendID == "" {
		return apperr.Validation("friend-accepted notification requires friend id")
	}
	return nil
}

type AccountActivityPayload struct {
	UserID string
	Event  string
}

func (p AccountActivityPayload) Type() Type { return TypeAccountActivity }

func (p AccountActivityPayload) Data() map[string]any {
	return map[string]any{
		"userId": p.UserID,
		"event":  p.Event,
	}
}

func (p AccountActivityPayload) Validate() error {
	if p.UserID == "" || p.Event == "" {
		return apperr.Validation("account-activity notification requires user and event")
	}
	return nil
}

// Priority of a push dispatch.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is one delivery request. Ephemeral: constructed per
// attempt, persisted only when every live tier is unavailable.
type Notification struct {
	UserID   string
	Title    string
	Body     string
	Priority Priority
	Payload  Payload
}
