package ws

import (
	"encoding/json"

	"dmcore/internal/domain"
)

// inbound is a client frame: {"type": "...", "requestId": "...", "payload": {...}}.
type inbound struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// outbound is a server frame of type ack, error, inbox or view.
type outbound struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func errorFrame(requestID string, err error) outbound {
	msg := err.Error()
	if domain.Code(err) == "internal" {
		msg = "internal error"
	}
	return outbound{
		Type:      "error",
		RequestID: requestID,
		Code:      domain.Code(err),
		Message:   msg,
		Retryable: domain.Retryable(err),
	}
}

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

type messageRef struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type reactPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Emoji          string `json:"emoji"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	Typing         bool   `json:"typing"`
}

type reactionResult struct {
	MessageID string                   `json:"messageId"`
	Reactions []domain.ReactionSummary `json:"reactions"`
}
