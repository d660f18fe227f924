package core

import "context"

type (
	// ChatMessage is one turn of a completion conversation.
	ChatMessage struct {
		Role    string `json:"role"` // "user" | "assistant"
		Content string `json:"content"`
	}

	// ChatCompleter generates a completion from a conversation.
	// The AI gateway is a black box: messages in, text out.
	ChatCompleter interface {
		Complete(ctx context.Context, system string, messages []ChatMessage) (string, error)
	}
)
