package core

import (
	"context"
	"errors"
	"strings"

	"gwi.com/product-recommender/internal/session"
	"gwi.com/product-recommender/internal/store"
)

var ErrEmptyInput = errors.New("input cannot be empty")

type UserStore interface {
	GetUserByExternalID(externalUserID string) (*store.User, error)
	CreateUser(externalUserID, passwordHash string) (*store.User, error)
}

// ChatService is what the HTTP layer talks to: account lookups plus
// recommendation turns.
type ChatService struct {
	users    UserStore
	chain    *Chain
	sessions session.Store
}

func NewChatService(users UserStore, chain *Chain, sessions session.Store) *ChatService {
	return &ChatService{
		users:    users,
		chain:    chain,
		sessions: sessions,
	}
}

func (s *ChatService) GetUserByExternalID(externalUserID string) (*store.User, error) {
	return s.users.GetUserByExternalID(externalUserID)
}

func (s *ChatService) CreateUser(externalUserID, passwordHash string) (*store.User, error) {
	return s.users.CreateUser(externalUserID, passwordHash)
}

// Recommend runs one turn of the conversation identified by sessionID.
func (s *ChatService) Recommend(ctx context.Context, sessionID, input string) (*Answer, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	return s.chain.Invoke(ctx, input, sessionID)
}

// History returns the turns recorded so far for sessionID. Unknown sessions
// read as empty and are not registered.
func (s *ChatService) History(sessionID string) []session.Message {
	h, found := s.sessions.Lookup(sessionID)
	if !found {
		return []session.Message{}
	}
	return h.Messages()
}
