package chat

import (
	"strings"

	"github.com/blinkchat/blink-backend/internal/models"
)

// Outbound event names pushed over the WebSocket connection.
const (
	EventNewMessage          = "newMessage"
	EventMessageSeen         = "messageSeen"
	EventMessageDeleted      = "messageDeleted"
	EventMessageEdited       = "messageEdited"
	EventMessageReaction     = "messageReaction"
	EventUserTyping          = "userTyping"
	EventUserStoppedTyping   = "userStoppedTyping"
	EventConversationDeleted = "conversationDeleted"
	EventOnlineUsers         = "getOnlineUsers"
)

// Event is the envelope for every server→client push.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// ReactionPayload is the data of a messageReaction event. It carries the
// reacting user's input; receivers replay the same toggle rule the router
// applied.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

// TypingPayload is the data of userTyping / userStoppedTyping events.
type TypingPayload struct {
	UserID string `json:"userId"`
}

func NewMessageEvent(m *models.Message) Event {
	return Event{Name: EventNewMessage, Data: m}
}

func MessageSeenEvent(messageID string) Event {
	return Event{Name: EventMessageSeen, Data: messageID}
}

func MessageDeletedEvent(messageID string) Event {
	return Event{Name: EventMessageDeleted, Data: messageID}
}

func MessageEditedEvent(m *models.Message) Event {
	return Event{Name: EventMessageEdited, Data: m}
}

func MessageReactionEvent(messageID, userID, emoji string) Event {
	return Event{Name: EventMessageReaction, Data: ReactionPayload{MessageID: messageID, UserID: userID, Emoji: emoji}}
}

func UserTypingEvent(userID string) Event {
	return Event{Name: EventUserTyping, Data: TypingPayload{UserID: userID}}
}

func UserStoppedTypingEvent(userID string) Event {
	return Event{Name: EventUserStoppedTyping, Data: TypingPayload{UserID: userID}}
}

func ConversationDeletedEvent(byUserID string) Event {
	return Event{Name: EventConversationDeleted, Data: byUserID}
}

func OnlineUsersEvent(userIDs []string) Event {
	if userIDs == nil {
		userIDs = []string{}
	}
	return Event{Name: EventOnlineUsers, Data: userIDs}
}

// Inbound signal types sent by clients over the WebSocket connection.
const (
	SignalTyping     = "typing"
	SignalStopTyping = "stopTyping"
	SignalPing       = "ping"
)

// ClientSignal is an inbound client→server message. The connection protocol
// has no error channel; malformed signals are dropped by the caller.
type ClientSignal struct {
	Type       string `json:"type"`
	ReceiverID string `json:"receiverId,omitempty"`
}

// Valid reports whether the signal is well formed for its type.
func (s ClientSignal) Valid() bool {
	switch s.Type {
	case SignalTyping, SignalStopTyping:
		return strings.TrimSpace(s.ReceiverID) != ""
	case SignalPing:
		return true
	default:
		return false
	}
}
