package kpi

import (
	"sort"

	"github.com/duetlabs/duet/internal/chatlog"
)

// maxParticipants caps the participants field; pairwise metrics assume a
// two-person chat. Per-sender aggregations still cover every sender.
const maxParticipants = 2

// Compute runs every aggregation pass over the message store and assembles
// the bundle. System messages are excluded, messages are re-sorted by
// timestamp first (export order is not guaranteed after edits), and an empty
// or all-system input yields an all-zero bundle, never an error.
func Compute(msgs []chatlog.Message, lex Lexicon) *Bundle {
	sorted := make([]chatlog.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSystem {
			continue
		}
		sorted = append(sorted, m)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	senders := chatlog.Participants(sorted, 0)

	b := &Bundle{
		Participants:    chatlog.Participants(sorted, maxParticipants),
		WordsPerMessage: map[string][]int{},
		WordCloud:       map[string][]CloudWord{},
	}
	if b.Participants == nil {
		b.Participants = []string{}
	}

	b.BySender, b.Totals, b.MediaTotal = computeTotals(sorted, senders)

	for _, s := range senders {
		b.WordsPerMessage[s] = []int{}
	}
	for _, m := range sorted {
		if m.Sender != "" {
			b.WordsPerMessage[m.Sender] = append(b.WordsPerMessage[m.Sender], m.WordCount())
		}
	}

	b.ReplyTimes, b.ReplySimple = computeReplies(sorted, senders)
	b.Interruptions = computeInterruptions(sorted)
	b.Questions, b.QuestionsSplit = computeQuestions(sorted, senders)

	b.ProfanityHits, b.AffectionHits, b.AffectionSplit = computeLexiconHits(sorted, senders, lex)
	b.WeNessRatio = computeWeNess(sorted, lex)

	computeTimelines(b, sorted, lex)
	b.Heatmap = computeHeatmap(sorted)
	b.WordCloud = computeWordCloud(sorted, senders, lex)

	return b
}

// computeTotals builds the by_sender table plus chat-wide totals.
func computeTotals(msgs []chatlog.Message, senders []string) ([]SenderTotals, Totals, int) {
	agg := make(map[string]*SenderTotals, len(senders))
	for _, s := range senders {
		agg[s] = &SenderTotals{Sender: s}
	}

	var totals Totals
	var mediaTotal int
	for _, m := range msgs {
		totals.Messages++
		totals.Words += m.WordCount()
		if m.HasMedia {
			mediaTotal++
		}
		st, ok := agg[m.Sender]
		if !ok {
			continue
		}
		st.Messages++
		st.Words += m.WordCount()
		if m.HasMedia {
			st.Media++
		}
	}

	rows := make([]SenderTotals, 0, len(senders))
	for _, s := range senders {
		rows = append(rows, *agg[s])
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Sender < rows[j].Sender })
	return rows, totals, mediaTotal
}

// computeLexiconHits counts messages containing affection and profanity
// tokens. Matching is case-insensitive and substring-based by design.
func computeLexiconHits(msgs []chatlog.Message, senders []string, lex Lexicon) (prof int, aff int, split []AffectionSplit) {
	perSender := make(map[string]int, len(senders))
	for _, m := range msgs {
		if matchesAny(m.Text, lex.Profanity) {
			prof++
		}
		if matchesAny(m.Text, lex.Affection) {
			aff++
			if m.Sender != "" {
				perSender[m.Sender]++
			}
		}
	}

	split = make([]AffectionSplit, 0, len(senders))
	for _, s := range senders {
		split = append(split, AffectionSplit{Sender: s, Affection: perSender[s]})
	}
	return prof, aff, split
}

// computeWeNess is the first-person-plural share of pronoun usage, with the
// denominator floored at 1 so a pronoun-free chat yields 0 rather than NaN.
func computeWeNess(msgs []chatlog.Message, lex Lexicon) float64 {
	var we, i int
	for _, m := range msgs {
		we += countPronouns(m.Text, lex.PronounsWe)
		i += countPronouns(m.Text, lex.PronounsI)
	}
	denom := we + i
	if denom < 1 {
		denom = 1
	}
	return float64(we) / float64(denom)
}

// dayKey is the calendar-day grouping key.
type dayKey struct {
	Day    string
	Sender string
}

// computeTimelines fills every per-day-per-sender series in one pass.
func computeTimelines(b *Bundle, msgs []chatlog.Message, lex Lexicon) {
	type cell struct {
		messages, words, questions, media, affection, profanity, we, i int
	}
	cells := make(map[dayKey]*cell)

	for _, m := range msgs {
		k := dayKey{Day: m.Timestamp.Format("2006-01-02"), Sender: m.Sender}
		c, ok := cells[k]
		if !ok {
			c = &cell{}
			cells[k] = c
		}
		c.messages++
		c.words += m.WordCount()
		if isQuestion(m.Text) {
			c.questions++
		}
		if m.HasMedia {
			c.media++
		}
		if matchesAny(m.Text, lex.Affection) {
			c.affection++
		}
		if matchesAny(m.Text, lex.Profanity) {
			c.profanity++
		}
		c.we += countPronouns(m.Text, lex.PronounsWe)
		c.i += countPronouns(m.Text, lex.PronounsI)
	}

	keys := make([]dayKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Day != keys[j].Day {
			return keys[i].Day < keys[j].Day
		}
		return keys[i].Sender < keys[j].Sender
	})

	b.TimelineMessages = make([]TimelinePoint, 0, len(keys))
	b.TimelineWords = make([]TimelinePoint, 0, len(keys))
	b.TimelineQuestions = make([]TimelinePoint, 0, len(keys))
	b.TimelineMedia = make([]TimelinePoint, 0, len(keys))
	b.TimelineAffection = make([]TimelinePoint, 0, len(keys))
	b.TimelineProfanity = make([]TimelinePoint, 0, len(keys))
	b.TimelineWeNess = make([]TimelineWePoint, 0, len(keys))
	for _, k := range keys {
		c := cells[k]
		b.TimelineMessages = append(b.TimelineMessages, TimelinePoint{k.Day, k.Sender, c.messages})
		b.TimelineWords = append(b.TimelineWords, TimelinePoint{k.Day, k.Sender, c.words})
		b.TimelineQuestions = append(b.TimelineQuestions, TimelinePoint{k.Day, k.Sender, c.questions})
		b.TimelineMedia = append(b.TimelineMedia, TimelinePoint{k.Day, k.Sender, c.media})
		b.TimelineAffection = append(b.TimelineAffection, TimelinePoint{k.Day, k.Sender, c.affection})
		b.TimelineProfanity = append(b.TimelineProfanity, TimelinePoint{k.Day, k.Sender, c.profanity})
		b.TimelineWeNess = append(b.TimelineWeNess, TimelineWePoint{Day: k.Day, Sender: k.Sender, We: c.we, I: c.i})
	}
}

// computeHeatmap counts messages per (Monday-based weekday, hour, sender).
func computeHeatmap(msgs []chatlog.Message) []HeatmapCell {
	type hk struct {
		Weekday, Hour int
		Sender        string
	}
	cells := make(map[hk]int)
	for _, m := range msgs {
		k := hk{
			Weekday: (int(m.Timestamp.Weekday()) + 6) % 7,
			Hour:    m.Timestamp.Hour(),
			Sender:  m.Sender,
		}
		cells[k]++
	}

	keys := make([]hk, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Weekday != keys[j].Weekday {
			return keys[i].Weekday < keys[j].Weekday
		}
		if keys[i].Hour != keys[j].Hour {
			return keys[i].Hour < keys[j].Hour
		}
		return keys[i].Sender < keys[j].Sender
	})

	out := make([]HeatmapCell, 0, len(keys))
	for _, k := range keys {
		out = append(out, HeatmapCell{Weekday: k.Weekday, Hour: k.Hour, Sender: k.Sender, Count: cells[k]})
	}
	return out
}
