package llm

import (
	"context"
	"fmt"
	"sync"

	"corax/internal/agent/ports"
)

// ScriptedClient replays a fixed sequence of assistant turns, one per Stream
// call, sliced into fixed-size deltas. It exists for tests and offline demos.
type ScriptedClient struct {
	mu        sync.Mutex
	turns     []string
	next      int
	calls     int
	chunkSize int

	// RepeatLast replays the final scripted turn once the script is
	// exhausted instead of failing, which lets tests exercise iteration
	// budgets without hanging.
	RepeatLast bool

	// Err, when set, fails every Stream call immediately.
	Err error
}

// NewScriptedClient builds a client that plays the given turns in order.
func NewScriptedClient(turns ...string) *ScriptedClient {
	return &ScriptedClient{turns: turns, chunkSize: 7}
}

// SetChunkSize overrides the delta size used when slicing turns.
func (s *ScriptedClient) SetChunkSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.chunkSize = n
	}
}

// Calls reports how many turns have been served.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Stream serves the next scripted turn as a chunked delta stream.
func (s *ScriptedClient) Stream(ctx context.Context, _ string, _ []ports.Message) (<-chan ports.Chunk, error) {
	s.mu.Lock()
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return nil, err
	}
	if s.next >= len(s.turns) {
		if !s.RepeatLast || len(s.turns) == 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("script exhausted after %d turn(s)", len(s.turns))
		}
		s.next = len(s.turns) - 1
	}
	turn := s.turns[s.next]
	s.next++
	s.calls++
	size := s.chunkSize
	s.mu.Unlock()

	out := make(chan ports.Chunk)
	go func() {
		defer close(out)
		for i := 0; i < len(turn); i += size {
			end := i + size
			if end > len(turn) {
				end = len(turn)
			}
			select {
			case out <- ports.Chunk{Delta: turn[i:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
