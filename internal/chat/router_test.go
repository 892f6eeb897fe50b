package chat

import (
	"context"
	"testing"
	"time"

	"github.com/blinkchat/blink-backend/internal/models"
	"github.com/blinkchat/blink-backend/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSendDeliversToOnlineReceiver(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	bobConn := rig.connect(bob)

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "hey"})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.False(t, msg.Seen)
	assert.Equal(t, "hey", msg.Text)

	pushed := bobConn.named(EventNewMessage)
	require.Len(t, pushed, 1)
	got, ok := pushed[0].Data.(*models.Message)
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.ID)
}

func TestSendToOfflineReceiverStillPersists(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "hello"})
	require.NoError(t, err)

	stored, err := rig.messages.FindByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Seen)
}

func TestSendMarksReverseDirectionSeen(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")

	first, err := rig.router.Send(context.Background(), bob, alice, SendInput{Text: "ping"})
	require.NoError(t, err)
	assert.False(t, first.Seen)

	_, err = rig.router.Send(context.Background(), alice, bob, SendInput{Text: "pong"})
	require.NoError(t, err)

	stored, err := rig.messages.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.True(t, stored.Seen, "replying marks the other direction seen")
}

func TestSendRecordsInteractionEdge(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")

	_, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "hi"})
	require.NoError(t, err)

	a, _ := rig.users.FindByID(context.Background(), alice)
	b, _ := rig.users.FindByID(context.Background(), bob)
	assert.Contains(t, a.InteractedUserIDs, bob)
	assert.Contains(t, b.InteractedUserIDs, alice)
}

func TestSendValidation(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")

	_, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "   "})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = rig.router.Send(context.Background(), alice, rig.users.add("ghost"), SendInput{Text: "ok"})
	assert.NoError(t, err)

	_, err = rig.router.Send(context.Background(), alice, primitive.NewObjectID(), SendInput{Text: "ok"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSendUploadsImageBeforeStoring(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Image: "cat"})
	require.NoError(t, err)
	assert.Equal(t, "https://images.example/cat", msg.Image)
	assert.Equal(t, []string{"cat"}, rig.uploads.payloads)
}

func TestMarkSeenReceiverOnly(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	aliceConn := rig.connect(alice)

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "hi"})
	require.NoError(t, err)

	_, err = rig.router.MarkSeen(context.Background(), alice, msg.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "sender cannot mark own message seen")

	seen, err := rig.router.MarkSeen(context.Background(), bob, msg.ID)
	require.NoError(t, err)
	assert.True(t, seen.Seen)

	pushed := aliceConn.named(EventMessageSeen)
	require.Len(t, pushed, 1)
	assert.Equal(t, msg.ID.Hex(), pushed[0].Data)
}

func TestDeleteClearsContent(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	bobConn := rig.connect(bob)

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "secret", Image: "pic"})
	require.NoError(t, err)

	_, err = rig.router.Delete(context.Background(), bob, msg.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "only the sender may delete")

	deleted, err := rig.router.Delete(context.Background(), alice, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Empty(t, deleted.Text)
	assert.Empty(t, deleted.Image)

	stored, _ := rig.messages.FindByID(context.Background(), msg.ID)
	assert.True(t, stored.IsDeleted)
	assert.Empty(t, stored.Text)
	assert.Empty(t, stored.Image)

	pushed := bobConn.named(EventMessageDeleted)
	require.Len(t, pushed, 1)
	assert.Equal(t, msg.ID.Hex(), pushed[0].Data)
}

func TestEditWithinWindow(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	bobConn := rig.connect(bob)

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "typo"})
	require.NoError(t, err)

	edited, err := rig.router.Edit(context.Background(), alice, msg.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Text)
	require.NotNil(t, edited.LastEdited)

	pushed := bobConn.named(EventMessageEdited)
	require.Len(t, pushed, 1)
	got := pushed[0].Data.(*models.Message)
	assert.Equal(t, "fixed", got.Text)
}

func TestEditWindowExpired(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "old"})
	require.NoError(t, err)

	rig.router.now = func() time.Time { return msg.CreatedAt.Add(61 * time.Minute) }

	_, err = rig.router.Edit(context.Background(), alice, msg.ID, "too late")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, "Cannot edit messages older than 1 hour", apperr.MessageOf(err))

	stored, _ := rig.messages.FindByID(context.Background(), msg.ID)
	assert.Equal(t, "old", stored.Text, "failed edit leaves the message unchanged")
}

func TestEditAuthorization(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")

	msg, err := rig.router.Send(context.Background(), alice, bob, SendInput{Text: "mine"})
	require.NoError(t, err)

	_, err = rig.router.Edit(context.Background(), bob, msg.ID, "hijack")
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = rig.router.Edit(context.Background(), alice, msg.ID, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReactToggle(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	ctx := context.Background()

	msg, err := rig.router.Send(ctx, alice, bob, SendInput{Text: "react to me"})
	require.NoError(t, err)

	// No existing reaction: append.
	m, err := rig.router.React(ctx, bob, msg.ID, "👍")
	require.NoError(t, err)
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, "👍", m.Reactions[0].Emoji)

	// Different emoji: replace, never two from the same user.
	m, err = rig.router.React(ctx, bob, msg.ID, "❤️")
	require.NoError(t, err)
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, "❤️", m.Reactions[0].Emoji)

	// Same emoji again: remove.
	m, err = rig.router.React(ctx, bob, msg.ID, "❤️")
	require.NoError(t, err)
	assert.Empty(t, m.Reactions)

	_, err = rig.router.React(ctx, bob, msg.ID, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReactNotifiesOtherParty(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	ctx := context.Background()

	msg, err := rig.router.Send(ctx, alice, bob, SendInput{Text: "hi"})
	require.NoError(t, err)

	aliceConn := rig.connect(alice)
	bobConn := rig.connect(bob)

	// Receiver reacts: sender is notified.
	_, err = rig.router.React(ctx, bob, msg.ID, "🔥")
	require.NoError(t, err)
	require.Len(t, aliceConn.named(EventMessageReaction), 1)
	assert.Empty(t, bobConn.named(EventMessageReaction))

	p := aliceConn.named(EventMessageReaction)[0].Data.(ReactionPayload)
	assert.Equal(t, msg.ID.Hex(), p.MessageID)
	assert.Equal(t, bob.Hex(), p.UserID)
	assert.Equal(t, "🔥", p.Emoji)

	// Sender reacts: receiver is notified.
	_, err = rig.router.React(ctx, alice, msg.ID, "🎉")
	require.NoError(t, err)
	require.Len(t, bobConn.named(EventMessageReaction), 1)
}

func TestDeleteConversation(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	ctx := context.Background()

	_, err := rig.router.DeleteConversation(ctx, alice, bob)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "empty conversation")

	for _, text := range []string{"one", "two", "three"} {
		_, err := rig.router.Send(ctx, alice, bob, SendInput{Text: text})
		require.NoError(t, err)
	}

	bobConn := rig.connect(bob)

	n, err := rig.router.DeleteConversation(ctx, alice, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	history, err := rig.messages.Between(ctx, alice, bob)
	require.NoError(t, err)
	for _, m := range history {
		assert.True(t, m.IsDeleted)
		assert.Empty(t, m.Text)
	}

	// One event for the whole conversation, not one per message.
	pushed := bobConn.named(EventConversationDeleted)
	require.Len(t, pushed, 1)
	assert.Equal(t, alice.Hex(), pushed[0].Data)
}

func TestMessagesPopulatesDeletedReplyTarget(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	ctx := context.Background()

	target, err := rig.router.Send(ctx, alice, bob, SendInput{Text: "original"})
	require.NoError(t, err)

	reply, err := rig.router.Send(ctx, bob, alice, SendInput{Text: "replying", ReplyToID: target.ID.Hex()})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, "original", reply.ReplyTo.Text)

	_, err = rig.router.Delete(ctx, alice, target.ID)
	require.NoError(t, err)

	history, err := rig.router.Messages(ctx, bob, alice)
	require.NoError(t, err)
	require.Len(t, history, 2)

	var got *models.Message
	for i := range history {
		if history[i].ID == reply.ID {
			got = &history[i]
		}
	}
	require.NotNil(t, got)
	require.NotNil(t, got.ReplyTo)
	assert.Equal(t, DeletedMessageText, got.ReplyTo.Text)
	assert.Empty(t, got.ReplyTo.Image)
}

func TestMessagesRecordsInteraction(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	ctx := context.Background()

	// Opening an empty conversation still records the edge.
	_, err := rig.router.Messages(ctx, alice, bob)
	require.NoError(t, err)

	a, _ := rig.users.FindByID(ctx, alice)
	assert.Contains(t, a.InteractedUserIDs, bob)
}

func TestSidebarUsers(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	rig.users.add("carol")
	ctx := context.Background()

	// No interactions yet: everyone except the caller.
	contacts, err := rig.router.SidebarUsers(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, contacts, 2)

	_, err = rig.router.Send(ctx, alice, bob, SendInput{Text: "hi"})
	require.NoError(t, err)

	contacts, err = rig.router.SidebarUsers(ctx, alice)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, bob, contacts[0].ID)
}

func TestSearchUsersExcludesRequester(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	rig.users.add("alicia")
	ctx := context.Background()

	results, err := rig.router.SearchUsers(ctx, alice, "ali")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alicia", results[0].Username)

	_, err = rig.router.SearchUsers(ctx, alice, "   ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestUnreadCounts(t *testing.T) {
	rig := newTestRig()
	alice := rig.users.add("alice")
	bob := rig.users.add("bob")
	carol := rig.users.add("carol")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := rig.router.Send(ctx, bob, alice, SendInput{Text: "hi"})
		require.NoError(t, err)
	}
	msg, err := rig.router.Send(ctx, carol, alice, SendInput{Text: "yo"})
	require.NoError(t, err)

	counts, err := rig.router.UnreadCounts(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[bob.Hex()])
	assert.EqualValues(t, 1, counts[carol.Hex()])

	_, err = rig.router.MarkSeen(ctx, alice, msg.ID)
	require.NoError(t, err)

	counts, err = rig.router.UnreadCounts(ctx, alice)
	require.NoError(t, err)
	assert.NotContains(t, counts, carol.Hex())
}
