package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session history. It is never modified after
// being appended.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// History is the ordered message list of a single session.
type History struct {
	mu       sync.RWMutex
	messages []Message

	// turn serializes whole request turns on this session.
	turn sync.Mutex
}

// Messages returns a copy of the history in insertion order.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Append adds all msgs in one step, so readers never observe a partial turn.
func (h *History) Append(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for _, m := range msgs {
		if m.Time.IsZero() {
			m.Time = now
		}
		h.messages = append(h.messages, m)
	}
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Lock reserves the session for one turn. Callers snapshot, run the
// pipeline and append while holding it.
func (h *History) Lock() { h.turn.Lock() }

func (h *History) Unlock() { h.turn.Unlock() }

// Store owns the per-session histories.
type Store interface {
	// GetHistory returns the history for sessionID, registering an empty one
	// on first use. It never fails.
	GetHistory(sessionID string) *History
	// Lookup returns the history for sessionID without registering one.
	Lookup(sessionID string) (*History, bool)
	// Touch marks h as active again, restarting its idle expiry.
	Touch(sessionID string, h *History)
	Sessions() int
}

// MemoryStore keeps histories in process memory. Nothing survives a restart.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryStore creates a store. A ttl of zero disables expiry; a positive
// ttl drops sessions that were not touched for that long.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
	}
	return &MemoryStore{
		cache: cache.New(expiration, cleanup),
		ttl:   ttl,
	}
}

func (s *MemoryStore) GetHistory(sessionID string) *History {
	if x, found := s.cache.Get(sessionID); found {
		h := x.(*History)
		s.Touch(sessionID, h)
		return h
	}

	h := &History{}
	if err := s.cache.Add(sessionID, h, cache.DefaultExpiration); err != nil {
		// Lost the race against another first reference.
		if x, found := s.cache.Get(sessionID); found {
			return x.(*History)
		}
		s.cache.Set(sessionID, h, cache.DefaultExpiration)
	}
	return h
}

func (s *MemoryStore) Lookup(sessionID string) (*History, bool) {
	if x, found := s.cache.Get(sessionID); found {
		return x.(*History), true
	}
	return nil, false
}

func (s *MemoryStore) Touch(sessionID string, h *History) {
	if s.ttl > 0 {
		s.cache.Set(sessionID, h, cache.DefaultExpiration)
	}
}

func (s *MemoryStore) Sessions() int {
	return s.cache.ItemCount()
}
