package parser

import "strings"

// TagEmission is one streamed piece of content attributed to a watched tag.
type TagEmission struct {
	Tag  string
	Text string
}

// StreamScanner incrementally extracts the content of watched tags from a
// token stream whose markers may straddle chunk boundaries. At most one tag
// is live at a time, matching the flat tag grammar. Text outside watched tags
// accumulates in the raw buffer and is never emitted.
//
// The scanner holds back the longest suffix of the pending text that could be
// the prefix of a marker; everything before that suffix is safe to emit (or,
// outside a tag, to discard from the pending window). No content character is
// delayed by more than one delta, and no partial marker is ever emitted as
// content.
type StreamScanner struct {
	watched []string
	raw     strings.Builder
	live    string // watched tag currently open, "" when outside
	pending string // unresolved text carried between deltas
	opened  map[string]bool
}

// NewStreamScanner watches the given tags. Content of unwatched tags is
// retained in the raw buffer only.
func NewStreamScanner(tags ...string) *StreamScanner {
	return &StreamScanner{
		watched: tags,
		opened:  make(map[string]bool, len(tags)),
	}
}

// Feed consumes the next delta and returns the content emissions it unlocks.
func (s *StreamScanner) Feed(delta string) []TagEmission {
	s.raw.WriteString(delta)

	var out []TagEmission
	work := s.pending + delta
	s.pending = ""

	for {
		if s.live == "" {
			tag, idx := s.earliestOpenMarker(work)
			if tag == "" {
				s.pending = s.openMarkerSuffix(work)
				return out
			}
			s.live = tag
			s.opened[tag] = true
			work = work[idx+len(openMarker(tag)):]
			continue
		}

		marker := closeMarker(s.live)
		if idx := strings.Index(work, marker); idx >= 0 {
			if idx > 0 {
				out = append(out, TagEmission{Tag: s.live, Text: work[:idx]})
			}
			work = work[idx+len(marker):]
			s.live = ""
			continue
		}

		hold := longestMarkerPrefixSuffix(work, marker)
		if emit := work[:len(work)-len(hold)]; emit != "" {
			out = append(out, TagEmission{Tag: s.live, Text: emit})
		}
		s.pending = hold
		return out
	}
}

// Flush releases any residual held-back text once the stream has ended. Text
// held inside a live tag is genuine content whose closing marker never
// arrived; text held outside a tag is a partial opening marker and is
// dropped.
func (s *StreamScanner) Flush() []TagEmission {
	if s.live == "" || s.pending == "" {
		s.pending = ""
		return nil
	}
	em := TagEmission{Tag: s.live, Text: s.pending}
	s.pending = ""
	return []TagEmission{em}
}

// Raw returns everything fed so far, markers included.
func (s *StreamScanner) Raw() string { return s.raw.String() }

// Opened reports whether the opening marker of tag has been seen.
func (s *StreamScanner) Opened(tag string) bool { return s.opened[tag] }

// InTag reports whether a watched tag is currently live.
func (s *StreamScanner) InTag() bool { return s.live != "" }

// earliestOpenMarker finds the first complete opening marker of any watched
// tag in work.
func (s *StreamScanner) earliestOpenMarker(work string) (string, int) {
	best := ""
	bestIdx := -1
	for _, tag := range s.watched {
		if idx := strings.Index(work, openMarker(tag)); idx >= 0 {
			if bestIdx < 0 || idx < bestIdx {
				best, bestIdx = tag, idx
			}
		}
	}
	return best, bestIdx
}

// openMarkerSuffix returns the longest suffix of work that is a prefix of any
// watched opening marker; only that much needs to be carried forward while
// outside a tag.
func (s *StreamScanner) openMarkerSuffix(work string) string {
	hold := ""
	for _, tag := range s.watched {
		if candidate := longestMarkerPrefixSuffix(work, openMarker(tag)); len(candidate) > len(hold) {
			hold = candidate
		}
	}
	return hold
}

// longestMarkerPrefixSuffix returns the longest proper suffix of text that is
// a prefix of marker, scanning from the longest candidate (marker length
// minus one) down to one character.
func longestMarkerPrefixSuffix(text, marker string) string {
	max := len(marker) - 1
	if max > len(text) {
		max = len(text)
	}
	for l := max; l >= 1; l-- {
		if text[len(text)-l:] == marker[:l] {
			return text[len(text)-l:]
		}
	}
	return ""
}
