package toolregistry

import "strings"

// Texts shorter than this are never worth remembering.
const minPersistLength = 10

// transientPrefixes mark questions and greetings: conversational traffic that
// carries no durable information about the user.
var transientPrefixes = []string{
	"what is", "what are", "what's",
	"how do", "how can", "how does",
	"why ", "when ", "where ", "who ",
	"can you", "could you", "please ",
	"hello", "hi ", "hey",
	"thanks", "thank you",
}

// disclosurePrefixes mark personal statements worth pushing to long-term
// memory.
var disclosurePrefixes = []string{
	"my name is", "call me",
	"i work at", "i work for", "i work as",
	"i live in", "i am from", "i'm from",
	"i am a", "i'm a",
	"my favorite", "my favourite",
	"i like", "i love", "i prefer", "i hate",
	"remember that", "note that",
}

// ShouldPersist classifies a literal user message: true when it reads like a
// personal disclosure, false for questions, greetings and short texts. A
// wrong call here is a quality bug, not a correctness bug.
func ShouldPersist(userText string) bool {
	text := strings.ToLower(strings.TrimSpace(userText))
	if len(text) < minPersistLength {
		return false
	}
	for _, prefix := range disclosurePrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	for _, prefix := range transientPrefixes {
		if strings.HasPrefix(text, prefix) {
			return false
		}
	}
	// Everything else stays out of long-term memory as well; the
	// disclosure lexicon is the only path in.
	return false
}
