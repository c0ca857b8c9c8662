package types

// Role is the author of a chat message. The relay only accepts user and
// assistant roles at the wire boundary.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatRequest is the canonical internal representation of an inbound relay
// request. Both the JSON and multipart wire formats decode into this type.
type ChatRequest struct {
	ConversationID string            `json:"conversationId"`
	Messages       []Message         `json:"messages"`
	UserWebhook    string            `json:"userWebhook,omitempty"`
	ExtraHeaders   map[string]string `json:"extraHeaders,omitempty"`
	Stream         *bool             `json:"stream,omitempty"`
}

// WantsStream reports whether the caller asked for an SSE reply.
func (r *ChatRequest) WantsStream() bool {
	return r.Stream != nil && *r.Stream
}

type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
