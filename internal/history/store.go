// Package history is the conversation store collaborator: a best-effort
// key-value layer for conversation summaries and per-conversation message
// lists. The relay pipeline never calls it; clients persist around their
// /api/chat calls.
package history

import (
	"context"
	"time"

	"github.com/explorerhq/webhook-relay/internal/sanitize"
)

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Streaming bool      `json:"streaming,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type ConversationWithMessages struct {
	Conversation
	Messages []Message `json:"messages"`
}

// Export is the portable dump format.
type Export struct {
	Version       string                     `json:"version"`
	Conversations []ConversationWithMessages `json:"conversations"`
}

// Store persists conversation state. Saves replace whole values; there are
// no partial updates and no durability guarantee beyond the backend's own.
type Store interface {
	Conversations(ctx context.Context) ([]Conversation, error)
	SaveConversations(ctx context.Context, conversations []Conversation) error
	Messages(ctx context.Context, conversationID string) ([]Message, error)
	SaveMessages(ctx context.Context, conversationID string, messages []Message) error
	DeleteConversation(ctx context.Context, conversationID string) error
	Close() error
}

// ExportAll dumps every conversation with its messages.
func ExportAll(ctx context.Context, s Store, version string) (*Export, error) {
	conversations, err := s.Conversations(ctx)
	if err != nil {
		return nil, err
	}
	out := &Export{Version: version, Conversations: make([]ConversationWithMessages, 0, len(conversations))}
	for _, c := range conversations {
		messages, err := s.Messages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out.Conversations = append(out.Conversations, ConversationWithMessages{
			Conversation: c,
			Messages:     messages,
		})
	}
	return out, nil
}

// ImportAll replaces the store contents with the export. Titles and message
// content pass through the sanitizer; an export is untrusted input like any
// other.
func ImportAll(ctx context.Context, s Store, data *Export) error {
	conversations := make([]Conversation, 0, len(data.Conversations))
	for _, c := range data.Conversations {
		conv := c.Conversation
		conv.Title = sanitize.String(conv.Title)
		conversations = append(conversations, conv)
	}
	if err := s.SaveConversations(ctx, conversations); err != nil {
		return err
	}
	for _, c := range data.Conversations {
		messages := make([]Message, 0, len(c.Messages))
		for _, m := range c.Messages {
			m.Content = sanitize.String(m.Content)
			messages = append(messages, m)
		}
		if err := s.SaveMessages(ctx, c.ID, messages); err != nil {
			return err
		}
	}
	return nil
}
