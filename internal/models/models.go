package models

import "time"

// User is the account document. Password is stored hashed and excluded
// from JSON by default.
type User struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	Fullname      string    `bson:"fullname" json:"fullname"`
	Username      string    `bson:"username" json:"username"`
	Email         string    `bson:"email" json:"email"`
	Password      string    `bson:"password" json:"-"`
	ProfilePic    string    `bson:"profile_pic" json:"profilePic"`
	About         string    `bson:"about" json:"about"`
	IsVerified    bool      `bson:"is_verified" json:"isVerified"`
	VerifyToken   string    `bson:"verify_token,omitempty" json:"-"`
	VerifyExpires time.Time `bson:"verify_expires,omitempty" json:"-"`
	IsDeleted     bool      `bson:"is_deleted" json:"isDeleted"`
	DeletedAt     time.Time `bson:"deleted_at,omitempty" json:"-"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

// FriendEdge is the single document per unordered user pair. Sender and
// receiver record provenance; PairKey is the sorted-pair join key carrying
// the uniqueness constraint.
type FriendEdge struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	PairKey    string    `bson:"pair_key" json:"-"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id" json:"receiverId"`
	Status     string    `bson:"status" json:"status"`
	Message    string    `bson:"message,omitempty" json:"message,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
)

// BlockEdge is directed: blocker suppresses messaging and visibility from
// blocked. Never symmetric.
type BlockEdge struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	BlockerID string    `bson:"blocker_id" json:"blockerId"`
	BlockedID string    `bson:"blocked_id" json:"blockedId"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Message is one direct-chat message. CreatedAt never changes after
// insert; IsRead/ReadAt are the only post-creation mutations aside from
// the account-deletion anonymization flags.
type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	SenderID       string    `bson:"sender_id" json:"senderId"`
	ReceiverID     string    `bson:"receiver_id" json:"receiverId"`
	Text           string    `bson:"text,omitempty" json:"text,omitempty"`
	Image          string    `bson:"image,omitempty" json:"image,omitempty"`
	SenderName     string    `bson:"sender_name,omitempty" json:"senderName,omitempty"`
	SenderPic      string    `bson:"sender_pic,omitempty" json:"senderPic,omitempty"`
	IsRead         bool      `bson:"is_read" json:"isRead"`
	ReadAt         time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
	IsSystem       bool      `bson:"is_system" json:"isSystem"`
	IsDeleted      bool      `bson:"is_deleted" json:"isDeleted"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// InboxNotification is a stored (tier 3) notification awaiting the user.
type InboxNotification struct {
	ID        string         `bson:"_id,omitempty" json:"id"`
	UserID    string         `bson:"user_id" json:"userId"`
	Type      string         `bson:"type" json:"type"`
	Title     string         `bson:"title" json:"title"`
	Body      string         `bson:"body" json:"body"`
	Data      map[string]any `bson:"data,omitempty" json:"data,omitempty"`
	Read      bool           `bson:"read" json:"read"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
}

// DeviceToken registers one push target for a user.
type DeviceToken struct {
	UserID    string    `bson:"user_id" json:"userId"`
	Token     string    `bson:"token" json:"token"`
	Platform  string    `bson:"platform,omitempty" json:"platform,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Profile is the user shape returned to other users. Redaction rules in
// the friends package run on this struct in every path that exposes it.
type Profile struct {
	ID         string `json:"id"`
	Fullname   string `json:"fullname"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
	About      string `json:"about"`
	IsOnline   bool   `json:"isOnline"`
	LastSeen   string `json:"lastSeen,omitempty"`
	IsDeleted  bool   `json:"isDeleted,omitempty"`
}

// DisplayName for anonymized accounts and system messages.
const DeletedDisplayName = "Talko User"

// PairKey joins two user IDs into the deterministic unordered-pair key
// used both as the conversation ID and the friendship uniqueness key.
// Commutative: PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}
