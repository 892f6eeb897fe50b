package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/blinkchat/blink-backend/internal/models"
	"github.com/blinkchat/blink-backend/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// EditWindow is the wall-clock limit for editing a sent message.
	EditWindow = time.Hour
	// DeletedMessageText replaces the text of a soft-deleted reply target at
	// read time so retained content never leaks to the reader.
	DeletedMessageText = "This message was deleted"
)

// MessageStore is the durable message persistence the router mutates.
// Find methods return (nil, nil) when the document is absent.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	Between(ctx context.Context, a, b primitive.ObjectID) ([]models.Message, error)
	MarkConversationSeen(ctx context.Context, sender, receiver primitive.ObjectID) error
	SetSeen(ctx context.Context, id primitive.ObjectID) error
	SetText(ctx context.Context, id primitive.ObjectID, text string, editedAt time.Time) error
	SetReactions(ctx context.Context, id primitive.ObjectID, reactions []models.Reaction) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	SoftDeleteBetween(ctx context.Context, a, b primitive.ObjectID) (int64, error)
	CountUnseenBySender(ctx context.Context, receiver primitive.ObjectID) (map[string]int64, error)
}

// UserStore is the user persistence the router reads and the single place
// interaction edges are recorded.
type UserStore interface {
	VisibilityStore
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	AllExcept(ctx context.Context, id primitive.ObjectID) ([]models.User, error)
	Search(ctx context.Context, query string, exclude primitive.ObjectID) ([]models.User, error)
	RecordInteraction(ctx context.Context, a, b primitive.ObjectID) error
}

// Uploader stores an image payload and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, payload string) (string, error)
}

// Router is the authoritative state-transition function for messages plus the
// fan-out of resulting events. Every mutation is committed to the store before
// the corresponding push is emitted; pushes are best-effort and dropped for
// offline targets.
type Router struct {
	messages MessageStore
	users    UserStore
	presence *Registry
	typing   *Tracker
	uploads  Uploader

	// reactMu serializes reaction read-modify-write so concurrent reactions
	// on the same message cannot lose updates.
	reactMu sync.Mutex

	now func() time.Time
}

func NewRouter(messages MessageStore, users UserStore, presence *Registry, typing *Tracker, uploads Uploader) *Router {
	return &Router{
		messages: messages,
		users:    users,
		presence: presence,
		typing:   typing,
		uploads:  uploads,
		now:      time.Now,
	}
}

// Presence returns the router's presence registry.
func (r *Router) Presence() *Registry { return r.presence }

// SendInput is the payload of a Send command.
type SendInput struct {
	Text      string
	Image     string // base64 payload, uploaded before the message is stored
	ReplyToID string // hex id of the message being replied to, optional
}

// Send creates a message, marks all prior unseen messages in the reverse
// direction as seen, records the interaction edge, and pushes newMessage to
// the receiver if online.
func (r *Router) Send(ctx context.Context, sender, receiver primitive.ObjectID, in SendInput) (*models.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == "" {
		return nil, apperr.Validation("Message text or image is required")
	}

	rcv, err := r.users.FindByID(ctx, receiver)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rcv == nil {
		return nil, apperr.NotFound("User not found")
	}

	var imageURL string
	if in.Image != "" {
		if r.uploads == nil {
			return nil, apperr.Validation("Image uploads are not available")
		}
		imageURL, err = r.uploads.Upload(ctx, in.Image)
		if err != nil {
			return nil, apperr.Internal(err)
		}
	}

	var replyTo *primitive.ObjectID
	if in.ReplyToID != "" {
		id, err := primitive.ObjectIDFromHex(in.ReplyToID)
		if err != nil {
			return nil, apperr.Validation("Invalid reply message id")
		}
		replyTo = &id
	}

	now := r.now()
	msg := &models.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Image:      imageURL,
		ReplyToID:  replyTo,
		Seen:       false,
		Reactions:  []models.Reaction{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.messages.Insert(ctx, msg); err != nil {
		return nil, apperr.Internal(err)
	}

	// Not transactional with the insert above; a failure here surfaces as
	// Internal while the created message stays committed.
	if err := r.messages.MarkConversationSeen(ctx, receiver, sender); err != nil {
		return nil, apperr.Internal(err)
	}
	if err := r.users.RecordInteraction(ctx, sender, receiver); err != nil {
		return nil, apperr.Internal(err)
	}

	if err := r.populateReply(ctx, msg); err != nil {
		return nil, err
	}

	r.presence.Push(receiver.Hex(), NewMessageEvent(msg))
	return msg, nil
}

// MarkSeen flags a message as seen by its receiver and notifies the sender.
func (r *Router) MarkSeen(ctx context.Context, actor, messageID primitive.ObjectID) (*models.Message, error) {
	msg, err := r.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != actor {
		return nil, apperr.Forbidden("Unauthorized to mark this message as seen")
	}

	if err := r.messages.SetSeen(ctx, messageID); err != nil {
		return nil, apperr.Internal(err)
	}
	msg.Seen = true

	r.presence.Push(msg.SenderID.Hex(), MessageSeenEvent(messageID.Hex()))
	return msg, nil
}

// Delete soft-deletes a message: content is cleared and must not be
// recoverable from the record. Only the sender may delete.
func (r *Router) Delete(ctx context.Context, actor, messageID primitive.ObjectID) (*models.Message, error) {
	msg, err := r.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actor {
		return nil, apperr.Forbidden("Unauthorized to delete this message")
	}

	if err := r.messages.SoftDelete(ctx, messageID); err != nil {
		return nil, apperr.Internal(err)
	}
	msg.IsDeleted = true
	msg.Text = ""
	msg.Image = ""

	r.presence.Push(msg.ReceiverID.Hex(), MessageDeletedEvent(messageID.Hex()))
	return msg, nil
}

// Edit replaces a message's text within the edit window and notifies the
// receiver with the full updated message.
func (r *Router) Edit(ctx context.Context, actor, messageID primitive.ObjectID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("Text is required")
	}

	msg, err := r.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actor {
		return nil, apperr.Forbidden("Unauthorized to edit this message")
	}

	now := r.now()
	if now.Sub(msg.CreatedAt) > EditWindow {
		return nil, apperr.Conflict("Cannot edit messages older than 1 hour")
	}

	if err := r.messages.SetText(ctx, messageID, text, now); err != nil {
		return nil, apperr.Internal(err)
	}
	msg.Text = text
	msg.LastEdited = &now
	msg.UpdatedAt = now

	r.presence.Push(msg.ReceiverID.Hex(), MessageEditedEvent(msg))
	return msg, nil
}

// React applies the toggle rule: no existing reaction → append; same emoji →
// remove; different emoji → replace. The other conversation party is notified.
func (r *Router) React(ctx context.Context, actor, messageID primitive.ObjectID, emoji string) (*models.Message, error) {
	if emoji == "" {
		return nil, apperr.Validation("Emoji is required")
	}

	r.reactMu.Lock()
	defer r.reactMu.Unlock()

	msg, err := r.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	reactions := append([]models.Reaction(nil), msg.Reactions...)
	switch i := msg.ReactionBy(actor); {
	case i < 0:
		reactions = append(reactions, models.Reaction{UserID: actor, Emoji: emoji})
	case reactions[i].Emoji == emoji:
		reactions = append(reactions[:i], reactions[i+1:]...)
	default:
		reactions[i].Emoji = emoji
	}

	if err := r.messages.SetReactions(ctx, messageID, reactions); err != nil {
		return nil, apperr.Internal(err)
	}
	msg.Reactions = reactions

	other := msg.SenderID
	if msg.SenderID == actor {
		other = msg.ReceiverID
	}
	r.presence.Push(other.Hex(), MessageReactionEvent(messageID.Hex(), actor.Hex(), emoji))
	return msg, nil
}

// DeleteConversation soft-deletes every message between the two users and
// notifies the other party once. Either party may delete the conversation.
func (r *Router) DeleteConversation(ctx context.Context, actor, other primitive.ObjectID) (int64, error) {
	existing, err := r.messages.Between(ctx, actor, other)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if len(existing) == 0 {
		return 0, apperr.NotFound("No conversation found")
	}

	n, err := r.messages.SoftDeleteBetween(ctx, actor, other)
	if err != nil {
		return 0, apperr.Internal(err)
	}

	r.presence.Push(other.Hex(), ConversationDeletedEvent(actor.Hex()))
	return n, nil
}

// Messages returns the full history between actor and other, chronological,
// including soft-deleted records, with reply targets populated. Reading a
// conversation also registers the interaction edge.
func (r *Router) Messages(ctx context.Context, actor, other primitive.ObjectID) ([]models.Message, error) {
	msgs, err := r.messages.Between(ctx, actor, other)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := r.users.RecordInteraction(ctx, actor, other); err != nil {
		return nil, apperr.Internal(err)
	}

	for i := range msgs {
		if err := r.populateReply(ctx, &msgs[i]); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// SidebarUsers returns the actor's materialized contact list. Users with no
// interactions yet get the full user list as a fallback.
func (r *Router) SidebarUsers(ctx context.Context, actor primitive.ObjectID) ([]models.User, error) {
	u, err := r.users.FindByID(ctx, actor)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}

	if len(u.InteractedUserIDs) == 0 {
		all, err := r.users.AllExcept(ctx, actor)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		return all, nil
	}

	contacts, err := r.users.ByIDs(ctx, u.InteractedUserIDs)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return contacts, nil
}

// SearchUsers matches the query against username and fullName,
// case-insensitive, excluding the requester.
func (r *Router) SearchUsers(ctx context.Context, actor primitive.ObjectID, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("Search query is required")
	}

	users, err := r.users.Search(ctx, query, actor)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// UnreadCounts returns the authoritative unseen-message count per sender for
// the actor, computed server-side from seen=false queries.
func (r *Router) UnreadCounts(ctx context.Context, actor primitive.ObjectID) (map[string]int64, error) {
	counts, err := r.messages.CountUnseenBySender(ctx, actor)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return counts, nil
}

// Connect registers a live connection for the user and broadcasts the online
// set.
func (r *Router) Connect(ctx context.Context, userID string, c Conn) {
	r.presence.Connect(ctx, userID, c)
}

// Disconnect removes the user's connection (unless a newer one replaced it)
// and clears the user's outgoing typing entries without notifying receivers.
func (r *Router) Disconnect(ctx context.Context, userID string, c Conn) {
	if r.presence.Disconnect(ctx, userID, c) {
		r.typing.ClearSender(userID)
	}
}

// Typing records a typing signal; the receiver is notified only on the
// idle→typing transition, refreshes stay silent.
func (r *Router) Typing(senderID, receiverID string) {
	if r.typing.Start(senderID, receiverID) {
		r.presence.Push(receiverID, UserTypingEvent(senderID))
	}
}

// StopTyping clears a typing entry and notifies the receiver; a no-op when no
// entry exists.
func (r *Router) StopTyping(senderID, receiverID string) {
	if r.typing.Stop(senderID, receiverID) {
		r.presence.Push(receiverID, UserStoppedTypingEvent(senderID))
	}
}

// SweepTyping expires stale typing entries and pushes exactly one
// userStoppedTyping per expired pair.
func (r *Router) SweepTyping() {
	for _, p := range r.typing.Expire(TypingTimeout) {
		r.presence.Push(p.Receiver, UserStoppedTypingEvent(p.Sender))
	}
}

// RunTypingSweeper runs the expiry sweep on a fixed interval until ctx is
// cancelled.
func (r *Router) RunTypingSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepTyping()
		}
	}
}

func (r *Router) findMessage(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	msg, err := r.messages.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if msg == nil {
		return nil, apperr.NotFound("Message not found")
	}
	return msg, nil
}

// populateReply joins the reply target onto the message. A soft-deleted
// target is reported with the fixed deleted marker instead of its retained
// content; this is a read-time transform, not a storage mutation.
func (r *Router) populateReply(ctx context.Context, msg *models.Message) error {
	if msg.ReplyToID == nil {
		return nil
	}

	target, err := r.messages.FindByID(ctx, *msg.ReplyToID)
	if err != nil {
		return apperr.Internal(err)
	}
	if target == nil {
		return nil
	}

	if target.IsDeleted {
		redacted := *target
		redacted.Text = DeletedMessageText
		redacted.Image = ""
		target = &redacted
	}
	msg.ReplyTo = target
	return nil
}
