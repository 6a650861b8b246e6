package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options is the sampling policy sent with a request. Zero values are omitted
// so the provider default applies.
type Options struct {
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

// Provider produces one complete reply per call.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}
