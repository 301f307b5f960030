package kpi

import (
	"sort"

	"github.com/duetlabs/duet/internal/chatlog"
)

// replyPair is one latency sample: seconds from the start of one sender's
// turn to the start of the other sender's next turn.
type replyPair struct {
	From    string
	To      string
	Seconds float64
}

// replyPairs collapses consecutive same-sender messages into turns
// represented by their first message, then pairs each adjacent cross-sender
// turn boundary. Measuring from the start of a burst captures how quickly
// the other person began responding rather than rewarding rapid-fire
// senders. Messages without a sender are ignored so they cannot split runs.
func replyPairs(msgs []chatlog.Message) []replyPair {
	var starts []chatlog.Message
	for _, m := range msgs {
		if m.Sender == "" {
			continue
		}
		if len(starts) == 0 || starts[len(starts)-1].Sender != m.Sender {
			starts = append(starts, m)
		}
	}

	var pairs []replyPair
	for i := 0; i+1 < len(starts); i++ {
		cur, next := starts[i], starts[i+1]
		if cur.Sender == next.Sender {
			continue
		}
		sec := next.Timestamp.Sub(cur.Timestamp).Seconds()
		if sec < 0 {
			sec = 0
		}
		pairs = append(pairs, replyPair{From: cur.Sender, To: next.Sender, Seconds: sec})
	}
	return pairs
}

// runLengths walks the message sequence and records each maximal
// same-sender run with its length.
func runLengths(msgs []chatlog.Message) []struct {
	Sender string
	Len    int
} {
	type run struct {
		Sender string
		Len    int
	}
	var runs []run
	for _, m := range msgs {
		if len(runs) > 0 && runs[len(runs)-1].Sender == m.Sender {
			runs[len(runs)-1].Len++
			continue
		}
		runs = append(runs, run{Sender: m.Sender, Len: 1})
	}
	out := make([]struct {
		Sender string
		Len    int
	}, len(runs))
	for i, r := range runs {
		out[i] = struct {
			Sender string
			Len    int
		}{r.Sender, r.Len}
	}
	return out
}

// computeReplies builds the reply_times sample map and the reply_simple
// summaries. Every sender appears in both even with zero incoming replies.
func computeReplies(msgs []chatlog.Message, senders []string) (map[string][]float64, []ReplyStat) {
	times := make(map[string][]float64, len(senders))
	for _, s := range senders {
		times[s] = []float64{}
	}
	for _, p := range replyPairs(msgs) {
		times[p.To] = append(times[p.To], p.Seconds)
	}

	recipients := make([]string, 0, len(times))
	for s := range times {
		recipients = append(recipients, s)
	}
	sort.Strings(recipients)

	stats := make([]ReplyStat, 0, len(recipients))
	for _, s := range recipients {
		samples := times[s]
		stat := ReplyStat{Person: s}
		if len(samples) > 0 {
			var sum float64
			for _, v := range samples {
				sum += v
			}
			stat.Seconds = sum / float64(len(samples))
			stat.N = len(samples)
		}
		stats = append(stats, stat)
	}
	return times, stats
}

// computeInterruptions reports runs of length >= 2 aggregated per sender as
// run count and longest run.
func computeInterruptions(msgs []chatlog.Message) []InterruptionStat {
	agg := make(map[string]*InterruptionStat)
	for _, r := range runLengths(msgs) {
		if r.Len < 2 {
			continue
		}
		st, ok := agg[r.Sender]
		if !ok {
			st = &InterruptionStat{Sender: r.Sender}
			agg[r.Sender] = st
		}
		st.Count++
		if r.Len > st.Max {
			st.Max = r.Len
		}
	}

	names := make([]string, 0, len(agg))
	for s := range agg {
		names = append(names, s)
	}
	sort.Strings(names)

	out := make([]InterruptionStat, 0, len(names))
	for _, s := range names {
		out = append(out, *agg[s])
	}
	return out
}
