package kpi

import (
	"regexp"
	"time"

	"github.com/duetlabs/duet/internal/chatlog"
)

// questionRE is the question heuristic: trailing "?" or a leading
// interrogative/modal word. Deliberately shallow; a message is only ever a
// question by this pattern, never by semantic content.
var questionRE = regexp.MustCompile(`(?i)\?\s*$|^\s*(?:who|what|when|where|why|how|can|do|did|are|is|should)\b`)

// answerWindow is how soon the other person must respond for a question to
// count as answered.
const answerWindow = 15 * time.Minute

// isQuestion applies the heuristic to one message body.
func isQuestion(text string) bool {
	return text != "" && questionRE.MatchString(text)
}

// answeredInWindow reports whether the question at index i is answered: the
// immediately next message must be from a different sender and arrive within
// the window. Only the next message is examined, so a same-sender follow-up
// leaves the question unanswered regardless of what comes later.
func answeredInWindow(msgs []chatlog.Message, i int) bool {
	if i+1 >= len(msgs) {
		return false
	}
	next := msgs[i+1]
	if next.Sender == msgs[i].Sender {
		return false
	}
	return next.Timestamp.Sub(msgs[i].Timestamp) <= answerWindow
}

// computeQuestions returns the chat-wide totals and the per-sender split.
func computeQuestions(msgs []chatlog.Message, senders []string) (QuestionTotals, []QuestionSplit) {
	var totals QuestionTotals
	perSender := make(map[string]*QuestionSplit, len(senders))
	for _, s := range senders {
		perSender[s] = &QuestionSplit{Sender: s}
	}

	for i, m := range msgs {
		if !isQuestion(m.Text) {
			continue
		}
		totals.Total++
		unanswered := !answeredInWindow(msgs, i)
		if unanswered {
			totals.UnansweredIn15m++
		}
		if sp, ok := perSender[m.Sender]; ok {
			sp.Questions++
			if unanswered {
				sp.UnansweredIn15m++
			}
		}
	}

	split := make([]QuestionSplit, 0, len(senders))
	for _, s := range senders {
		split = append(split, *perSender[s])
	}
	return totals, split
}
