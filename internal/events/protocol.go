package events

// Protocol version of the named transport events. Clients negotiate
// nothing; the table exists so event names live in one place instead of
// string literals scattered through handlers.
const ProtocolVersion = 1

// Server -> client events.
const (
	EvtOnlineUsers            = "getOnlineUsers"
	EvtNewMessage             = "newMessage"
	EvtMessageSent            = "messageSent"
	EvtMessagesRead           = "messagesRead"
	EvtUserTyping             = "userTyping"
	EvtUserStoppedTyping      = "userStoppedTyping"
	EvtNewFriendRequest       = "newFriendRequest"
	EvtFriendRequestAccepted  = "friendRequestAccepted"
	EvtFriendRequestRejected  = "friendRequestRejected"
	EvtFriendRequestProcessed = "friendRequestProcessed"
	EvtFriendRequestCancelled = "friendRequestCancelled"
	EvtRefreshFriendsList     = "refreshFriendsList"
	EvtUserAccountDeleted     = "userAccountDeleted"
	EvtUserStatusUpdate       = "userStatusUpdate"
	EvtNotification           = "notification"
)

// Client -> server events.
const (
	EvtTyping             = "typing"
	EvtStopTyping         = "stopTyping"
	EvtRequestOnlineUsers = "requestOnlineUsers"
	EvtSetActiveChat      = "setActiveChat"
)

// Envelope is the wire frame for every named event in both directions.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}
