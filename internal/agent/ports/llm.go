package ports

import "context"

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// Chunk is one increment of model output. Err is set at most once, as the
// final chunk of a failed stream.
type Chunk struct {
	Delta string
	Err   error
}

// ModelStream is the opaque streaming completion source. The returned channel
// is closed when the turn is complete; the producer must honor ctx.
type ModelStream interface {
	Stream(ctx context.Context, systemPrompt string, messages []Message) (<-chan Chunk, error)
}
