package domain

import "time"

// EventKind names a change notification pushed to subscribers.
type EventKind string

const (
	EventConversationUpdated EventKind = "conversation_updated"
	EventMessageAdded        EventKind = "message_added"
	EventMessageUpdated      EventKind = "message_updated"
	EventTyping              EventKind = "typing"
	EventProfileUpdated      EventKind = "profile_updated"
)

// Event is a committed change fanned out on a topic. Typing events are
// best-effort and may be dropped or arrive out of order.
type Event struct {
	Kind           EventKind     `json:"kind"`
	Topic          string        `json:"topic"`
	ConversationID string        `json:"conversationId,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	Profile        *Profile      `json:"profile,omitempty"`
	UserID         string        `json:"userId,omitempty"`
	Typing         bool          `json:"typing,omitempty"`
	At             time.Time     `json:"at"`
}

// ConversationTopic carries the message log and record changes of one conversation.
func ConversationTopic(conversationID string) string {
	return "conv:" + conversationID
}

// UserTopic carries inbox-level changes for one user.
func UserTopic(uid string) string {
	return "user:" + uid
}

// ProfileTopic carries profile snapshots of one user.
func ProfileTopic(uid string) string {
	return "profile:" + uid
}
