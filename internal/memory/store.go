// Package memory implements conversation history and durable fact storage.
// Exchanges live in memory for the session; facts go into a chromem-go vector
// collection so they can be recalled semantically in later turns.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/philippgille/chromem-go"

	"corax/internal/agent/ports"
)

const (
	factsCollection = "facts"
	dedupeWindow    = 256
	hashDimensions  = 128
)

// Options configures a Store. All fields are optional: without a Dir the
// vector store is in-memory, without an EmbeddingFunc a deterministic local
// hashing embedder is used so the store works offline.
type Options struct {
	Logger        ports.Logger
	EmbeddingFunc chromem.EmbeddingFunc
	Dir           string
}

// Store keeps the running exchange transcript and persisted facts.
type Store struct {
	logger ports.Logger

	mu        sync.Mutex
	exchanges []ports.Message

	facts  *chromem.Collection
	dedupe *lru.Cache[string, struct{}]
}

// NewStore builds a Store.
func NewStore(opts Options) (*Store, error) {
	logger := ports.OrNoop(opts.Logger)

	var db *chromem.DB
	var err error
	if opts.Dir != "" {
		db, err = chromem.NewPersistentDB(opts.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("open fact store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embed := opts.EmbeddingFunc
	if embed == nil {
		embed = hashEmbedding
	}
	facts, err := db.GetOrCreateCollection(factsCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open facts collection: %w", err)
	}

	dedupe, err := lru.New[string, struct{}](dedupeWindow)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		facts:  facts,
		dedupe: dedupe,
	}, nil
}

// Load returns the session transcript in chronological order.
func (s *Store) Load(context.Context) ([]ports.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Message, len(s.exchanges))
	copy(out, s.exchanges)
	return out, nil
}

// SaveExchange appends one completed user/assistant exchange.
func (s *Store) SaveExchange(_ context.Context, userText, responseText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges,
		ports.Message{Role: "user", Content: userText},
		ports.Message{Role: "assistant", Content: responseText},
	)
	return nil
}

// SaveFact persists one fact into the vector collection. Recently saved
// duplicates are skipped.
func (s *Store) SaveFact(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	key := strings.ToLower(text)
	s.mu.Lock()
	if _, seen := s.dedupe.Get(key); seen {
		s.mu.Unlock()
		s.logger.Debug("fact already stored, skipping")
		return nil
	}
	s.dedupe.Add(key, struct{}{})
	s.mu.Unlock()

	err := s.facts.AddDocument(ctx, chromem.Document{
		ID:      uuid.NewString(),
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("save fact: %w", err)
	}
	return nil
}

// RecallFacts returns up to n stored facts ranked by similarity to query.
func (s *Store) RecallFacts(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	if count := s.facts.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := s.facts.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("recall facts: %w", err)
	}
	out := make([]string, 0, len(results))
	for _, res := range results {
		out = append(out, res.Content)
	}
	return out, nil
}

// ClearExchanges drops the session transcript but keeps stored facts.
func (s *Store) ClearExchanges() {
	s.mu.Lock()
	s.exchanges = nil
	s.mu.Unlock()
}

// hashEmbedding maps text to a fixed-dimension unit vector by hashing its
// tokens. It carries no semantics beyond token overlap, which is enough for
// recall of literal facts without a network embedder.
func hashEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashDimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%hashDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors; give empty text a fixed direction.
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
