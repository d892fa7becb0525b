package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHistoryCreatesEmpty(t *testing.T) {
	s := NewMemoryStore(0)

	h := s.GetHistory("never-seen")
	require.NotNil(t, h)
	assert.Empty(t, h.Messages())
	assert.Equal(t, 1, s.Sessions())
}

func TestGetHistoryReturnsSameObject(t *testing.T) {
	s := NewMemoryStore(0)

	h1 := s.GetHistory("s1")
	h1.Append(Message{Role: RoleUser, Content: "hi"})
	h2 := s.GetHistory("s1")

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, h2.Len())
	assert.Equal(t, 1, s.Sessions())
}

func TestSessionsAreIsolated(t *testing.T) {
	s := NewMemoryStore(0)

	s.GetHistory("a").Append(Message{Role: RoleUser, Content: "a"})
	assert.Equal(t, 0, s.GetHistory("b").Len())
}

func TestAppendKeepsOrderAndStampsTime(t *testing.T) {
	var h History
	h.Append(
		Message{Role: RoleUser, Content: "question"},
		Message{Role: RoleAssistant, Content: "answer"},
	)

	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "question", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.False(t, msgs[0].Time.IsZero())
}

func TestMessagesReturnsCopy(t *testing.T) {
	var h History
	h.Append(Message{Role: RoleUser, Content: "original"})

	msgs := h.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "original", h.Messages()[0].Content)
}

func TestConcurrentFirstReference(t *testing.T) {
	s := NewMemoryStore(0)

	const n = 50
	got := make([]*History, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.GetHistory("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i])
	}
}

func TestTTLExpiresIdleSessions(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	h := s.GetHistory("s1")

	time.Sleep(40 * time.Millisecond)

	assert.NotSame(t, h, s.GetHistory("s1"))
}

func TestLookupDoesNotRegister(t *testing.T) {
	s := NewMemoryStore(0)

	h, found := s.Lookup("unknown")
	assert.False(t, found)
	assert.Nil(t, h)
	assert.Equal(t, 0, s.Sessions())

	created := s.GetHistory("known")
	h, found = s.Lookup("known")
	require.True(t, found)
	assert.Same(t, created, h)
}

func TestTouchRestartsIdleExpiry(t *testing.T) {
	s := NewMemoryStore(80 * time.Millisecond)
	h := s.GetHistory("s1")

	time.Sleep(50 * time.Millisecond)
	s.Touch("s1", h)
	time.Sleep(50 * time.Millisecond)

	got, found := s.Lookup("s1")
	require.True(t, found)
	assert.Same(t, h, got)
}
