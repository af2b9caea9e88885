// Package llmprovider declares the LLM capability the core consumes
// (spec §6) and an Anthropic-backed implementation of it.
package llmprovider

import "context"

// Role identifies the speaker of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// Options are the LLM call options spec §6 recognizes.
type Options struct {
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Provider is the LLM capability every component in this module consumes.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	Complete(ctx context.Context, prompt, system string, opts Options) (string, error)
}
