// Package domain holds the conversation types: inbound activities, the
// per-user session and the serializable state of every dialog flow.
package domain

import (
	"strings"
	"time"
)

// ============================================================
// Activity: one inbound unit of conversation
// ============================================================

// ActivityType is the tagged kind of an inbound activity.
type ActivityType string

const (
	ActivityMessage               ActivityType = "message"
	ActivityConversationUpdate    ActivityType = "conversationUpdate"
	ActivityContactRelationUpdate ActivityType = "contactRelationUpdate"
	ActivityTyping                ActivityType = "typing"
	ActivityDeleteUserData        ActivityType = "deleteUserData"
	ActivityPing                  ActivityType = "ping"
	ActivityUnknown               ActivityType = "unknown"
)

// ParseActivityType maps the wire value onto a known kind.
// Matching is case-insensitive; anything else is ActivityUnknown.
func ParseActivityType(s string) ActivityType {
	for _, t := range []ActivityType{
		ActivityMessage,
		ActivityConversationUpdate,
		ActivityContactRelationUpdate,
		ActivityTyping,
		ActivityDeleteUserData,
		ActivityPing,
	} {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return ActivityUnknown
}

// DefaultLocale is the only language the bot speaks.
const DefaultLocale = "cs-CZ"

// ChannelAccount identifies a participant on a channel.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies a conversation on a channel.
type ConversationAccount struct {
	ID string `json:"id"`
}

// Activity is the body of POST /api/messages.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	ChannelID    string              `json:"channelId"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient,omitempty"`
	Conversation ConversationAccount `json:"conversation"`
	Text         string              `json:"text,omitempty"`
	Locale       string              `json:"locale,omitempty"`
	Timestamp    time.Time           `json:"timestamp,omitempty"`
}

// Kind returns the parsed activity type.
func (a *Activity) Kind() ActivityType {
	return ParseActivityType(a.Type)
}

// SessionKey is the identity the session store is keyed by.
func (a *Activity) SessionKey() string {
	return a.ChannelID + ":" + a.From.ID
}

// Reply is one outbound message produced during a turn.
type Reply struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	ReplyToID string `json:"replyToId,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// TurnResponse is what the transport returns for a message activity.
type TurnResponse struct {
	Replies []Reply `json:"replies"`
}
