package chat

import (
	"sync"
	"time"
)

const (
	// TypingTimeout is how long a typing entry lives without a refresh before
	// the sweep treats it as an implicit stopTyping.
	TypingTimeout = 10 * time.Second
	// TypingSweepInterval is how often expired typing entries are collected.
	TypingSweepInterval = time.Minute
)

// Pair is an ordered (sender, receiver) typing pair.
type Pair struct {
	Sender   string
	Receiver string
}

// Tracker holds ephemeral typing state: ordered (sender, receiver) pair →
// timestamp of the last typing signal. Entries auto-expire via Expire.
type Tracker struct {
	mu      sync.Mutex
	entries map[Pair]time.Time
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[Pair]time.Time),
		now:     time.Now,
	}
}

// Start sets or refreshes the typing timestamp for the pair. Returns true on
// an idle→typing transition; a refresh of an already-typing pair returns
// false so callers can keep refreshes silent.
func (t *Tracker) Start(sender, receiver string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Pair{Sender: sender, Receiver: receiver}
	_, existed := t.entries[p]
	t.entries[p] = t.now()
	return !existed
}

// Stop removes the typing entry for the pair. Returns whether an entry
// existed; absent entries are a silent no-op.
func (t *Tracker) Stop(sender, receiver string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Pair{Sender: sender, Receiver: receiver}
	if _, ok := t.entries[p]; !ok {
		return false
	}
	delete(t.entries, p)
	return true
}

// ClearSender drops every typing entry where sender is the typist. Called on
// disconnect; receivers are not notified.
func (t *Tracker) ClearSender(sender string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cleared := 0
	for p := range t.entries {
		if p.Sender == sender {
			delete(t.entries, p)
			cleared++
		}
	}
	return cleared
}

// Expire removes entries older than timeout and returns the affected pairs so
// the caller can push implicit stop-typing events.
func (t *Tracker) Expire(timeout time.Duration) []Pair {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var expired []Pair
	for p, stamp := range t.entries {
		if now.Sub(stamp) > timeout {
			delete(t.entries, p)
			expired = append(expired, p)
		}
	}
	return expired
}
