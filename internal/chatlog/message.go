// Package chatlog parses raw two-person chat exports into a normalized
// sequence of timestamped messages.
package chatlog

import (
	"strings"
	"time"
)

// MediaMarker is the literal placeholder the export writes in place of an
// omitted attachment. Matched as a prefix-insensitive substring because some
// export variants close it with ">" and some with ".".
const MediaMarker = "<Media omitted"

// Message is one parsed chat message. Immutable once built.
type Message struct {
	Timestamp time.Time `json:"ts"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	HasMedia  bool      `json:"has_media"`
	IsSystem  bool      `json:"is_system"`
}

// WordCount returns the whitespace-token count of the message body.
func (m Message) WordCount() int {
	if m.Text == "" {
		return 0
	}
	return len(strings.Fields(m.Text))
}

// Participants returns the distinct non-empty sender names of non-system
// messages in first-seen order, capped at limit (0 means no cap).
func Participants(msgs []Message, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range msgs {
		if m.IsSystem || m.Sender == "" {
			continue
		}
		if _, ok := seen[m.Sender]; ok {
			continue
		}
		seen[m.Sender] = struct{}{}
		out = append(out, m.Sender)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
