package app

import (
	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"

	"github.com/google/uuid"
)

func newMessage(channel, user, text string) *chatdomain.Activity {
	return &chatdomain.Activity{
		Type:         string(chatdomain.ActivityMessage),
		ID:           uuid.NewString(),
		ChannelID:    channel,
		From:         chatdomain.ChannelAccount{ID: user},
		Conversation: chatdomain.ConversationAccount{ID: channel + "-" + user},
		Text:         text,
		Locale:       chatdomain.DefaultLocale,
	}
}
