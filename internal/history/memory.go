package history

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in process memory. This is the default
// driver: good for single-instance deployments and tests, gone on restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations []Conversation
	messages      map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]Message)}
}

func (s *MemoryStore) Conversations(_ context.Context) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out, nil
}

func (s *MemoryStore) SaveConversations(_ context.Context, conversations []Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make([]Conversation, len(conversations))
	copy(s.conversations, conversations)
	return nil
}

func (s *MemoryStore) Messages(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.messages[conversationID]
	out := make([]Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) SaveMessages(_ context.Context, conversationID string, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]Message, len(messages))
	copy(stored, messages)
	s.messages[conversationID] = stored
	return nil
}

func (s *MemoryStore) DeleteConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, conversationID)
	kept := s.conversations[:0]
	for _, c := range s.conversations {
		if c.ID != conversationID {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	return nil
}

func (s *MemoryStore) Close() error { return nil }
