package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/blinkchat/blink-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeMessageStore is an in-memory MessageStore keeping insertion order.
type fakeMessageStore struct {
	mu   sync.Mutex
	msgs []*models.Message
	err  error
}

func (s *fakeMessageStore) Insert(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	m.ID = primitive.NewObjectID()
	cp := *m
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *fakeMessageStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, m := range s.msgs {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeMessageStore) Between(_ context.Context, a, b primitive.ObjectID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Message
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) MarkConversationSeen(_ context.Context, sender, receiver primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, m := range s.msgs {
		if m.SenderID == sender && m.ReceiverID == receiver && !m.Seen {
			m.Seen = true
		}
	}
	return nil
}

func (s *fakeMessageStore) SetSeen(_ context.Context, id primitive.ObjectID) error {
	return s.update(id, func(m *models.Message) { m.Seen = true })
}

func (s *fakeMessageStore) SetText(_ context.Context, id primitive.ObjectID, text string, editedAt time.Time) error {
	return s.update(id, func(m *models.Message) {
		m.Text = text
		m.LastEdited = &editedAt
		m.UpdatedAt = editedAt
	})
}

func (s *fakeMessageStore) SetReactions(_ context.Context, id primitive.ObjectID, reactions []models.Reaction) error {
	return s.update(id, func(m *models.Message) {
		m.Reactions = append([]models.Reaction(nil), reactions...)
	})
}

func (s *fakeMessageStore) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	return s.update(id, softDelete)
}

func (s *fakeMessageStore) SoftDeleteBetween(_ context.Context, a, b primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			softDelete(m)
			n++
		}
	}
	return n, nil
}

func (s *fakeMessageStore) CountUnseenBySender(_ context.Context, receiver primitive.ObjectID) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	counts := make(map[string]int64)
	for _, m := range s.msgs {
		if m.ReceiverID == receiver && !m.Seen {
			counts[m.SenderID.Hex()]++
		}
	}
	return counts, nil
}

func (s *fakeMessageStore) update(id primitive.ObjectID, fn func(*models.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, m := range s.msgs {
		if m.ID == id {
			fn(m)
			return nil
		}
	}
	return errors.New("message not found")
}

func softDelete(m *models.Message) {
	m.IsDeleted = true
	m.Text = ""
	m.Image = ""
}

// fakeUserStore is an in-memory UserStore with addToSet interaction edges.
type fakeUserStore struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*models.User
	hiddenErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *fakeUserStore) add(username string) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	s.users[id] = &models.User{ID: id, Username: username, FullName: username}
	return id
}

func (s *fakeUserStore) hide(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].HideActiveStatus = true
}

func (s *fakeUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) ByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) AllExcept(_ context.Context, id primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for uid, u := range s.users {
		if uid != id {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) Search(_ context.Context, query string, exclude primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.User
	for uid, u := range s.users {
		if uid == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FullName), q) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) RecordInteraction(_ context.Context, a, b primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addInteraction(a, b)
	s.addInteraction(b, a)
	return nil
}

func (s *fakeUserStore) addInteraction(owner, other primitive.ObjectID) {
	u, ok := s.users[owner]
	if !ok {
		return
	}
	for _, id := range u.InteractedUserIDs {
		if id == other {
			return
		}
	}
	u.InteractedUserIDs = append(u.InteractedUserIDs, other)
}

func (s *fakeUserStore) HiddenUserIDs(_ context.Context, userIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hiddenErr != nil {
		return nil, s.hiddenErr
	}
	hidden := make(map[string]bool)
	for _, u := range s.users {
		if u.HideActiveStatus {
			hidden[u.ID.Hex()] = true
		}
	}
	return hidden, nil
}

// fakeUploader returns a deterministic URL for any payload.
type fakeUploader struct {
	err      error
	payloads []string
}

func (u *fakeUploader) Upload(_ context.Context, payload string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.payloads = append(u.payloads, payload)
	return "https://images.example/" + payload, nil
}

// fakeConn records every pushed event.
type fakeConn struct {
	mu         sync.Mutex
	events     []Event
	failWrites bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("write failed")
	}
	c.events = append(c.events, v.(Event))
	return nil
}

func (c *fakeConn) named(name string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) last() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return Event{}, false
	}
	return c.events[len(c.events)-1], true
}

// testRig bundles a router with its fakes.
type testRig struct {
	router   *Router
	messages *fakeMessageStore
	users    *fakeUserStore
	uploads  *fakeUploader
	presence *Registry
	typing   *Tracker
}

func newTestRig() *testRig {
	users := newFakeUserStore()
	messages := &fakeMessageStore{}
	uploads := &fakeUploader{}
	presence := NewRegistry(users)
	typing := NewTracker()
	return &testRig{
		router:   NewRouter(messages, users, presence, typing, uploads),
		messages: messages,
		users:    users,
		uploads:  uploads,
		presence: presence,
		typing:   typing,
	}
}

// connect registers a recording connection for the user.
func (r *testRig) connect(id primitive.ObjectID) *fakeConn {
	c := &fakeConn{}
	r.router.Connect(context.Background(), id.Hex(), c)
	return c
}
