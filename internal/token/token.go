// Package token provides token counting backed by tiktoken-go, with a
// character-based heuristic fallback when the encoding cannot be initialized.
package token

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"corax/internal/agent/ports"
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

func initEncoding() {
	once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
}

// Count returns the token count of text using the cl100k_base encoding,
// falling back to Estimate when tiktoken is unavailable.
func Count(text string) int {
	initEncoding()
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// CountMessages sums the token counts of a message slice, with a small fixed
// overhead per message for role framing.
func CountMessages(messages []ports.Message) int {
	total := 0
	for _, msg := range messages {
		total += Count(msg.Content) + 4
	}
	return total
}

// Estimate returns a heuristic count: max(runes/4, word count).
func Estimate(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
