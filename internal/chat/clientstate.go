package chat

import (
	"github.com/blinkchat/blink-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientState is the per-client projection of conversation state kept in sync
// via push events. The server does not store it; its reconciliation rules are
// part of the protocol contract and are shared here so they can be tested
// against the router's pushes.
type ClientState struct {
	SelfID string
	// Open is the other user id of the currently open conversation, "" when
	// none is open.
	Open string

	Messages     []models.Message
	UnreadCounts map[string]int
	TypingUsers  map[string]bool
	OnlineUsers  []string
}

func NewClientState(selfID string) *ClientState {
	return &ClientState{
		SelfID:       selfID,
		UnreadCounts: make(map[string]int),
		TypingUsers:  make(map[string]bool),
		OnlineUsers:  []string{},
	}
}

// SelectConversation opens a conversation: the local message list is replaced
// with the fetched history, the unread counter for that user is cleared, and
// the typing display resets.
func (s *ClientState) SelectConversation(userID string, history []models.Message) {
	s.Open = userID
	s.Messages = append([]models.Message(nil), history...)
	delete(s.UnreadCounts, userID)
	s.TypingUsers = make(map[string]bool)
}

// Apply reconciles one push event into the local projection. Seen, delete and
// edit events are idempotent: re-applying an identical event is a no-op.
// Reaction events replay the router's toggle rule; delivery is per-connection
// ordered, so a reaction event is applied exactly once.
func (s *ClientState) Apply(evt Event) {
	switch evt.Name {
	case EventNewMessage:
		m, ok := evt.Data.(*models.Message)
		if !ok {
			return
		}
		s.applyNewMessage(m)
	case EventMessageSeen:
		if id, ok := evt.Data.(string); ok {
			if m := s.find(id); m != nil {
				m.Seen = true
			}
		}
	case EventMessageDeleted:
		if id, ok := evt.Data.(string); ok {
			if m := s.find(id); m != nil {
				m.IsDeleted = true
				m.Text = ""
				m.Image = ""
			}
		}
	case EventMessageEdited:
		m, ok := evt.Data.(*models.Message)
		if !ok {
			return
		}
		if local := s.find(m.ID.Hex()); local != nil {
			local.Text = m.Text
			local.LastEdited = m.LastEdited
			local.UpdatedAt = m.UpdatedAt
		}
	case EventMessageReaction:
		p, ok := evt.Data.(ReactionPayload)
		if !ok {
			return
		}
		s.applyReaction(p)
	case EventConversationDeleted:
		byUserID, ok := evt.Data.(string)
		if !ok || s.Open != byUserID {
			return
		}
		for i := range s.Messages {
			s.Messages[i].IsDeleted = true
			s.Messages[i].Text = ""
			s.Messages[i].Image = ""
		}
	case EventUserTyping:
		if p, ok := evt.Data.(TypingPayload); ok {
			s.TypingUsers[p.UserID] = true
		}
	case EventUserStoppedTyping:
		if p, ok := evt.Data.(TypingPayload); ok {
			delete(s.TypingUsers, p.UserID)
		}
	case EventOnlineUsers:
		if ids, ok := evt.Data.([]string); ok {
			s.OnlineUsers = append([]string(nil), ids...)
		}
	}
}

// applyNewMessage appends the message when it belongs to the open
// conversation; otherwise it bumps the sender's unread counter, unless we are
// the sender.
func (s *ClientState) applyNewMessage(m *models.Message) {
	if s.find(m.ID.Hex()) != nil {
		return
	}

	sender := m.SenderID.Hex()
	receiver := m.ReceiverID.Hex()
	inOpen := s.Open != "" && (sender == s.Open || receiver == s.Open)

	if inOpen {
		s.Messages = append(s.Messages, *m)
		return
	}
	if sender != s.SelfID {
		s.UnreadCounts[sender]++
	}
}

func (s *ClientState) applyReaction(p ReactionPayload) {
	m := s.find(p.MessageID)
	if m == nil {
		return
	}

	uid, err := primitive.ObjectIDFromHex(p.UserID)
	if err != nil {
		return
	}

	switch i := m.ReactionBy(uid); {
	case i < 0:
		m.Reactions = append(m.Reactions, models.Reaction{UserID: uid, Emoji: p.Emoji})
	case m.Reactions[i].Emoji == p.Emoji:
		m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
	default:
		m.Reactions[i].Emoji = p.Emoji
	}
}

func (s *ClientState) find(idHex string) *models.Message {
	for i := range s.Messages {
		if s.Messages[i].ID.Hex() == idHex {
			return &s.Messages[i]
		}
	}
	return nil
}
