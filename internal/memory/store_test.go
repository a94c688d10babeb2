package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Options{})
	require.NoError(t, err)
	return store
}

func TestExchangesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	history, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, store.SaveExchange(ctx, "hello", "hi there"))
	require.NoError(t, store.SaveExchange(ctx, "how are you", "fine"))

	history, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "hi there", history[1].Content)
	assert.Equal(t, "fine", history[3].Content)
}

func TestClearExchangesKeepsFacts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveExchange(ctx, "q", "a"))
	require.NoError(t, store.SaveFact(ctx, "my name is Dana"))

	store.ClearExchanges()

	history, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	facts, err := store.RecallFacts(ctx, "what is my name", 3)
	require.NoError(t, err)
	assert.Contains(t, facts, "my name is Dana")
}

func TestRecallFactsRanksByOverlap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveFact(ctx, "my favorite color is green"))
	require.NoError(t, store.SaveFact(ctx, "I work at the harbor office"))
	require.NoError(t, store.SaveFact(ctx, "my dog is called Pixel"))

	facts, err := store.RecallFacts(ctx, "what is my favorite color", 1)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "my favorite color is green", facts[0])
}

func TestSaveFactDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveFact(ctx, "I live in Lisbon"))
	require.NoError(t, store.SaveFact(ctx, "I live in Lisbon"))
	require.NoError(t, store.SaveFact(ctx, "i live in lisbon"))

	facts, err := store.RecallFacts(ctx, "where do I live", 5)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestRecallFromEmptyStore(t *testing.T) {
	store := newTestStore(t)

	facts, err := store.RecallFacts(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestSaveFactIgnoresBlankText(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveFact(context.Background(), "   "))
	facts, err := store.RecallFacts(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, facts)
}
