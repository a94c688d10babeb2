package ports

import "context"

// HistoryStore is the persistence collaborator. The runtime reads prior
// conversation history at the start of a turn and writes back through the two
// save hooks; it never owns the storage itself.
type HistoryStore interface {
	// Load returns the ordered conversation history for this session.
	Load(ctx context.Context) ([]Message, error)

	// SaveExchange records one completed user/assistant exchange.
	SaveExchange(ctx context.Context, userText, responseText string) error

	// SaveFact pushes a user statement into long-term memory.
	SaveFact(ctx context.Context, text string) error
}
