// Package chat is the chat-completion capability used by the conversation
// service. Two transports implement Model: a native client for the Ollama
// /api/chat endpoint and an adapter over any Eino chat model.
package chat

import "context"

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem carries instructions and grounding context.
	RoleSystem Role = "system"
	// RoleUser is a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant is a previous model reply.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Message is one entry of an ordered chat request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Model completes an ordered message list into a single reply. The reply
// may be empty; callers decide how to treat that.
type Model interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
