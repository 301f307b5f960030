package kpi_test

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/duetlabs/duet/internal/chatlog"
	"github.com/duetlabs/duet/internal/kpi"
)

const sampleChat = `2024-01-01, 9:00 a.m. - Alice: hi
2024-01-01, 9:01 a.m. - Bob: hey there
2024-01-01, 9:02 a.m. - Alice: how are you?
2024-01-01, 9:05 a.m. - Bob: good`

func computeSample(t *testing.T, text string) *kpi.Bundle {
	t.Helper()
	return kpi.Compute(chatlog.ParseExport(text, nil), kpi.DefaultLexicon())
}

func TestComputeWordsAndReplies(t *testing.T) {
	t.Parallel()

	b := computeSample(t, sampleChat)

	if !reflect.DeepEqual(b.WordsPerMessage["Alice"], []int{1, 3}) {
		t.Errorf("Alice words_per_message = %v, want [1 3]", b.WordsPerMessage["Alice"])
	}
	if !reflect.DeepEqual(b.WordsPerMessage["Bob"], []int{2, 1}) {
		t.Errorf("Bob words_per_message = %v, want [2 1]", b.WordsPerMessage["Bob"])
	}

	// Turn starts: Alice@9:00, Bob@9:01, Alice@9:02, Bob@9:05.
	if !reflect.DeepEqual(b.ReplyTimes["Bob"], []float64{60, 180}) {
		t.Errorf("reply_times[Bob] = %v, want [60 180]", b.ReplyTimes["Bob"])
	}
	if !reflect.DeepEqual(b.ReplyTimes["Alice"], []float64{60}) {
		t.Errorf("reply_times[Alice] = %v, want [60]", b.ReplyTimes["Alice"])
	}

	for _, rs := range b.ReplySimple {
		switch rs.Person {
		case "Bob":
			if rs.Seconds != 120 || rs.N != 2 {
				t.Errorf("reply_simple[Bob] = %+v, want mean 120 n 2", rs)
			}
		case "Alice":
			if rs.Seconds != 60 || rs.N != 1 {
				t.Errorf("reply_simple[Alice] = %+v, want mean 60 n 1", rs)
			}
		}
	}

	if b.Totals.Messages != 4 || b.Totals.Words != 7 {
		t.Errorf("totals = %+v, want 4 messages / 7 words", b.Totals)
	}
	if !reflect.DeepEqual(b.Participants, []string{"Alice", "Bob"}) {
		t.Errorf("participants = %v", b.Participants)
	}
}

func TestComputeReplyStatZeroForUnreplied(t *testing.T) {
	t.Parallel()

	b := computeSample(t, "2024-01-01, 9:00 a.m. - Alice: hi\n2024-01-01, 9:01 a.m. - Bob: hey")

	var alice kpi.ReplyStat
	for _, rs := range b.ReplySimple {
		if rs.Person == "Alice" {
			alice = rs
		}
	}
	if alice.Person != "Alice" || alice.Seconds != 0 || alice.N != 0 {
		t.Errorf("Alice never received a reply, want zero stat, got %+v", alice)
	}
	if got := b.ReplyTimes["Alice"]; len(got) != 0 {
		t.Errorf("reply_times[Alice] = %v, want empty", got)
	}
}

func TestComputeQuestionWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		chat             string
		total, unanswered int
	}{
		{
			name:       "answered within window",
			chat:       "2024-01-01, 9:00 a.m. - Alice: you coming?\n2024-01-01, 9:10 a.m. - Bob: yes",
			total:      1,
			unanswered: 0,
		},
		{
			name:       "other sender too late",
			chat:       "2024-01-01, 9:00 a.m. - Alice: you coming?\n2024-01-01, 9:16 a.m. - Bob: yes",
			total:      1,
			unanswered: 1,
		},
		{
			// Same-sender follow-up blocks the window even though Bob
			// replies within a minute of the follow-up.
			name:       "same sender follow-up counts unanswered",
			chat:       "2024-01-01, 9:00 a.m. - Alice: you coming?\n2024-01-01, 9:01 a.m. - Alice: hello??\n2024-01-01, 9:02 a.m. - Bob: yes",
			total:      2,
			unanswered: 1,
		},
		{
			name:       "question at end of chat",
			chat:       "2024-01-01, 9:00 a.m. - Alice: hi\n2024-01-01, 9:01 a.m. - Bob: what now",
			total:      1,
			unanswered: 1,
		},
		{
			name:       "leading interrogative without question mark",
			chat:       "2024-01-01, 9:00 a.m. - Alice: where did you go\n2024-01-01, 9:01 a.m. - Bob: out",
			total:      1,
			unanswered: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := computeSample(t, tc.chat)
			if b.Questions.Total != tc.total || b.Questions.UnansweredIn15m != tc.unanswered {
				t.Errorf("questions = %+v, want total %d unanswered %d", b.Questions, tc.total, tc.unanswered)
			}
		})
	}
}

func TestComputeLexiconHitsSubstring(t *testing.T) {
	t.Parallel()

	chat := "2024-01-01, 9:00 a.m. - Alice: LOVE you so much\n" +
		"2024-01-01, 9:01 a.m. - Bob: loved that\n" +
		"2024-01-01, 9:02 a.m. - Alice: what the HELL\n" +
		"2024-01-01, 9:03 a.m. - Bob: nothing here"
	b := computeSample(t, chat)

	// "LOVE you" hits "love you"; "loved" does not contain "love you" but
	// "babe"/"baby" style single-word tokens behave the same way, so check
	// the documented substring property directly with a single-word token.
	if b.AffectionHits != 1 {
		t.Errorf("affection_hits = %d, want 1", b.AffectionHits)
	}
	if b.ProfanityHits != 1 {
		t.Errorf("profanity_hits = %d, want 1 (case-insensitive HELL)", b.ProfanityHits)
	}

	lex := kpi.DefaultLexicon()
	lex.Affection = []string{"love"}
	b2 := kpi.Compute(chatlog.ParseExport(chat, nil), lex)
	if b2.AffectionHits != 2 {
		t.Errorf("substring matching: got %d hits on token \"love\", want 2 (LOVE you, loved)", b2.AffectionHits)
	}
}

func TestComputeWeNess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		chat string
		want float64
	}{
		{
			name: "balanced pronouns",
			chat: "2024-01-01, 9:00 a.m. - Alice: we should go, I agree\n2024-01-01, 9:01 a.m. - Bob: us too, my plan",
			// we, us = 2 plural; I, my = 2 singular.
			want: 0.5,
		},
		{
			name: "no pronouns floors denominator",
			chat: "2024-01-01, 9:00 a.m. - Alice: ok\n2024-01-01, 9:01 a.m. - Bob: sure",
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := computeSample(t, tc.chat)
			if b.WeNessRatio != tc.want {
				t.Errorf("we_ness_ratio = %v, want %v", b.WeNessRatio, tc.want)
			}
		})
	}
}

func TestComputeInterruptions(t *testing.T) {
	t.Parallel()

	chat := "2024-01-01, 9:00 a.m. - Alice: one\n" +
		"2024-01-01, 9:01 a.m. - Alice: two\n" +
		"2024-01-01, 9:02 a.m. - Alice: three\n" +
		"2024-01-01, 9:03 a.m. - Bob: hey\n" +
		"2024-01-01, 9:04 a.m. - Alice: four\n" +
		"2024-01-01, 9:05 a.m. - Alice: five"
	b := computeSample(t, chat)

	want := []kpi.InterruptionStat{{Sender: "Alice", Count: 2, Max: 3}}
	if !reflect.DeepEqual(b.Interruptions, want) {
		t.Errorf("interruptions = %+v, want %+v", b.Interruptions, want)
	}
}

func TestComputeTimelineAndHeatmap(t *testing.T) {
	t.Parallel()

	// 2024-01-01 is a Monday.
	chat := "2024-01-01, 9:00 a.m. - Alice: hi there\n" +
		"2024-01-02, 10:30 p.m. - Bob: hello?"
	b := computeSample(t, chat)

	wantTimeline := []kpi.TimelinePoint{
		{Day: "2024-01-01", Sender: "Alice", Value: 1},
		{Day: "2024-01-02", Sender: "Bob", Value: 1},
	}
	if !reflect.DeepEqual(b.TimelineMessages, wantTimeline) {
		t.Errorf("timeline_messages = %+v", b.TimelineMessages)
	}
	wantWords := []kpi.TimelinePoint{
		{Day: "2024-01-01", Sender: "Alice", Value: 2},
		{Day: "2024-01-02", Sender: "Bob", Value: 1},
	}
	if !reflect.DeepEqual(b.TimelineWords, wantWords) {
		t.Errorf("timeline_words = %+v", b.TimelineWords)
	}

	wantHeat := []kpi.HeatmapCell{
		{Weekday: 0, Hour: 9, Sender: "Alice", Count: 1},
		{Weekday: 1, Hour: 22, Sender: "Bob", Count: 1},
	}
	if !reflect.DeepEqual(b.Heatmap, wantHeat) {
		t.Errorf("heatmap = %+v", b.Heatmap)
	}
}

func TestComputeWordCloud(t *testing.T) {
	t.Parallel()

	chat := "2024-01-01, 9:00 a.m. - Alice: rocket rocket launch 🚀\n" +
		"2024-01-01, 9:01 a.m. - Alice: the the the filler\n" +
		"2024-01-01, 9:02 a.m. - Bob: <Media omitted>"
	b := computeSample(t, chat)

	words := b.WordCloud["Alice"]
	if len(words) == 0 {
		t.Fatal("empty word cloud for Alice")
	}
	if words[0].Name != "rocket" || words[0].Value != 2 {
		t.Errorf("top word = %+v, want rocket x2", words[0])
	}
	byName := map[string]kpi.CloudWord{}
	for _, w := range words {
		byName[w.Name] = w
	}
	if w, ok := byName["rocket"]; !ok || !reflect.DeepEqual(w.Tags, []string{"space"}) {
		t.Errorf("rocket tags = %+v, want [space]", w.Tags)
	}
	if w, ok := byName["🚀"]; !ok || !reflect.DeepEqual(w.Tags, []string{"emoji"}) {
		t.Errorf("emoji token = %+v, want tags [emoji]", w)
	}
	if _, ok := byName["the"]; ok {
		t.Error("stopword \"the\" must be dropped")
	}
	if len(b.WordCloud["Bob"]) != 0 {
		t.Errorf("media-only sender cloud = %+v, want empty", b.WordCloud["Bob"])
	}
}

func TestComputeEmptyInput(t *testing.T) {
	t.Parallel()

	for _, msgs := range [][]chatlog.Message{
		nil,
		{},
		chatlog.ParseExport("2024-01-01, 9:00 a.m. - end-to-end encrypted notice", nil),
	} {
		b := kpi.Compute(msgs, kpi.DefaultLexicon())
		if len(b.Participants) != 0 || b.Totals.Messages != 0 || b.Questions.Total != 0 {
			t.Errorf("expected zero bundle, got %+v", b)
		}
		if b.WeNessRatio != 0 {
			t.Errorf("we_ness_ratio = %v, want 0", b.WeNessRatio)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	t.Parallel()

	chat := sampleChat + "\n2024-01-02, 8:00 p.m. - Alice: miss you ❤️\n2024-01-02, 8:05 p.m. - Bob: damn right"

	first, err := json.Marshal(computeSample(t, chat))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(computeSample(t, chat))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("run %d produced different output", i)
		}
	}
}
