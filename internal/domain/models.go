package domain

import (
	"sort"
	"strings"
	"time"
)

// ParticipantDetail is the display snapshot of a participant cached on the
// conversation record at last write. The profile collaborator stays
// authoritative.
type ParticipantDetail struct {
	Name       string `json:"name"`
	PictureURL string `json:"pictureUrl"`
}

// LastMessage summarises the most recent non-deleted message of a conversation.
type LastMessage struct {
	MessageID string    `json:"messageId"`
	Text      string    `json:"text"`
	SenderID  string    `json:"senderId"`
	At        time.Time `json:"at"`
}

// Conversation is the durable record shared by exactly two participants.
type Conversation struct {
	ID                 string                       `json:"id"`
	Participants       [2]string                    `json:"participants"`
	ParticipantDetails map[string]ParticipantDetail `json:"participantDetails"`
	LastMessage        *LastMessage                 `json:"lastMessage,omitempty"`
	LastMessageAt      time.Time                    `json:"lastMessageTimestamp"`
	UnreadBy           UserSet                      `json:"unreadBy"`
	HiddenFor          UserSet                      `json:"hiddenFor"`
	// Typing is ephemeral. It is overlaid from the presence tracker when the
	// record is served and is never written to the store.
	Typing    map[string]bool `json:"typing,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// HasParticipant reports whether uid is one of the two participants.
func (c *Conversation) HasParticipant(uid string) bool {
	return uid != "" && (c.Participants[0] == uid || c.Participants[1] == uid)
}

// Counterparty returns the participant that is not uid.
func (c *Conversation) Counterparty(uid string) string {
	if c.Participants[0] == uid {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ParticipantDetails != nil {
		cp.ParticipantDetails = make(map[string]ParticipantDetail, len(c.ParticipantDetails))
		for k, v := range c.ParticipantDetails {
			cp.ParticipantDetails[k] = v
		}
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	cp.UnreadBy = c.UnreadBy.Clone()
	cp.HiddenFor = c.HiddenFor.Clone()
	if c.Typing != nil {
		cp.Typing = make(map[string]bool, len(c.Typing))
		for k, v := range c.Typing {
			cp.Typing[k] = v
		}
	}
	return &cp
}

// ReplySnapshot is a point-in-time copy of the message being replied to.
type ReplySnapshot struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
}

// Message is one entry of a conversation's append-only log.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	SenderName     string         `json:"senderName"`
	Text           string         `json:"text"`
	Timestamp      time.Time      `json:"timestamp"`
	IsDeleted      bool           `json:"isDeleted"`
	ReplyTo        *ReplySnapshot `json:"replyTo,omitempty"`
	Reactions      Reactions      `json:"reactions"`
}

// Snapshot captures the reply snapshot of m.
func (m *Message) Snapshot() *ReplySnapshot {
	return &ReplySnapshot{
		ID:         m.ID,
		Text:       m.Text,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
	}
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		cp.ReplyTo = &r
	}
	cp.Reactions = m.Reactions.Clone()
	return &cp
}

// Profile is the external user-profile snapshot consumed for display.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"name"`
	PictureURL  string    `json:"pictureUrl"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Detail converts the profile into the cached participant detail.
func (p *Profile) Detail() ParticipantDetail {
	return ParticipantDetail{Name: p.DisplayName, PictureURL: p.PictureURL}
}

// UserSet is an ordered, duplicate-free set of user ids.
type UserSet []string

// Contains reports whether uid is a member.
func (s UserSet) Contains(uid string) bool {
	for _, v := range s {
		if v == uid {
			return true
		}
	}
	return false
}

// Add inserts uid and reports whether membership changed.
func (s *UserSet) Add(uid string) bool {
	if s.Contains(uid) {
		return false
	}
	*s = append(*s, uid)
	return true
}

// Remove deletes uid and reports whether membership changed.
func (s *UserSet) Remove(uid string) bool {
	for i, v := range *s {
		if v == uid {
			*s = append((*s)[:i:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

func (s UserSet) Clone() UserSet {
	if s == nil {
		return UserSet{}
	}
	return append(UserSet{}, s...)
}

// PairKey identifies the conversation between a and b regardless of order.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
