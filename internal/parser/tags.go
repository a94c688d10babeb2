package parser

import (
	"regexp"
	"strings"
)

// Control tags the model is instructed to emit. The grammar is flat: tags
// never nest and markers are case-sensitive.
const (
	TagThought     = "thought"
	TagToolCall    = "tool_call"
	TagResponse    = "response"
	TagObservation = "observation"
	TagPlan        = "plan"
)

var knownTags = []string{TagThought, TagToolCall, TagResponse, TagObservation, TagPlan}

func openMarker(tag string) string  { return "<" + tag + ">" }
func closeMarker(tag string) string { return "</" + tag + ">" }

// ExtractTagContent returns the trimmed content between the first <tag> and
// its matching </tag>, or false if the pair is not present in full. This is
// the whole-buffer primitive for content already known to be complete.
func ExtractTagContent(buffer, tag string) (string, bool) {
	open := openMarker(tag)
	start := strings.Index(buffer, open)
	if start < 0 {
		return "", false
	}
	rest := buffer[start+len(open):]
	end := strings.Index(rest, closeMarker(tag))
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// HasTag reports whether a complete <tag>...</tag> pair exists in buffer.
func HasTag(buffer, tag string) bool {
	_, ok := ExtractTagContent(buffer, tag)
	return ok
}

var stripPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(knownTags))
	for _, tag := range knownTags {
		// A dangling open marker swallows the rest of the text: an
		// unterminated tag body is protocol debris, not answer content.
		patterns = append(patterns, regexp.MustCompile(`(?s)<`+tag+`>.*?(?:</`+tag+`>|$)`))
	}
	return patterns
}()

// StripTags removes every known control tag together with its body, leaving
// only untagged plain text. Used for the fallback path when a model answers
// without following the tag protocol.
func StripTags(text string) string {
	cleaned := text
	for _, re := range stripPatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}
