// Package kpi derives deterministic relationship metrics from a parsed
// message sequence. Every computation reads only the in-memory messages,
// never errors on data shape, and degrades to empty structures when the
// input is empty or all-system.
package kpi

// Bundle is the full metric payload for one parse+compute cycle. It is
// recomputed wholesale on every upload and never updated incrementally.
type Bundle struct {
	Participants    []string             `json:"participants"`
	BySender        []SenderTotals       `json:"by_sender"`
	Totals          Totals               `json:"totals"`
	ReplySimple     []ReplyStat          `json:"reply_simple"`
	WordsPerMessage map[string][]int     `json:"words_per_message"`
	ReplyTimes      map[string][]float64 `json:"reply_times"`
	Interruptions   []InterruptionStat   `json:"interruptions"`
	Questions       QuestionTotals       `json:"questions"`
	QuestionsSplit  []QuestionSplit      `json:"questions_split"`
	MediaTotal      int                  `json:"media_total"`
	ProfanityHits   int                  `json:"profanity_hits"`
	WeNessRatio     float64              `json:"we_ness_ratio"`
	AffectionHits   int                  `json:"affection_hits"`
	AffectionSplit  []AffectionSplit     `json:"affection_split"`

	TimelineMessages  []TimelinePoint   `json:"timeline_messages"`
	TimelineWords     []TimelinePoint   `json:"timeline_words"`
	TimelineQuestions []TimelinePoint   `json:"timeline_questions"`
	TimelineMedia     []TimelinePoint   `json:"timeline_media"`
	TimelineAffection []TimelinePoint   `json:"timeline_affection"`
	TimelineProfanity []TimelinePoint   `json:"timeline_profanity"`
	TimelineWeNess    []TimelineWePoint `json:"timeline_we_ness"`

	Heatmap   []HeatmapCell          `json:"heatmap"`
	WordCloud map[string][]CloudWord `json:"word_cloud"`
}

// Totals are chat-wide message and word counts over non-system messages.
type Totals struct {
	Messages int `json:"messages"`
	Words    int `json:"words"`
}

// SenderTotals is the per-sender row of the by_sender table.
type SenderTotals struct {
	Sender   string `json:"sender"`
	Messages int    `json:"messages"`
	Words    int    `json:"words"`
	Media    int    `json:"media"`
}

// ReplyStat summarizes reply latency toward one person: the mean seconds
// they took to start replying and the number of samples. A participant who
// never received a reply still appears with zero values.
type ReplyStat struct {
	Person  string  `json:"person"`
	Seconds float64 `json:"seconds"`
	N       int     `json:"n"`
}

// InterruptionStat aggregates same-sender runs of length >= 2.
type InterruptionStat struct {
	Sender string `json:"sender"`
	Count  int    `json:"count"`
	Max    int    `json:"max"`
}

// QuestionTotals holds chat-wide question counts.
type QuestionTotals struct {
	Total           int `json:"total"`
	UnansweredIn15m int `json:"unanswered_15m"`
}

// QuestionSplit is the per-sender question breakdown.
type QuestionSplit struct {
	Sender          string `json:"sender"`
	Questions       int    `json:"questions"`
	UnansweredIn15m int    `json:"unanswered_15m"`
}

// AffectionSplit is the per-sender count of messages containing an
// affection token.
type AffectionSplit struct {
	Sender    string `json:"sender"`
	Affection int    `json:"affection"`
}

// TimelinePoint is one (day, sender) cell of a per-day series.
type TimelinePoint struct {
	Day    string `json:"day"`
	Sender string `json:"sender"`
	Value  int    `json:"value"`
}

// TimelineWePoint carries both pronoun counts for one (day, sender) cell.
type TimelineWePoint struct {
	Day    string `json:"day"`
	Sender string `json:"sender"`
	We     int    `json:"we"`
	I      int    `json:"i"`
}

// HeatmapCell is one (weekday, hour, sender) activity count. Weekday is
// Monday-based (0=Monday .. 6=Sunday).
type HeatmapCell struct {
	Weekday int    `json:"weekday"`
	Hour    int    `json:"hour"`
	Sender  string `json:"sender"`
	Count   int    `json:"count"`
}

// CloudWord is one word-cloud token with its raw frequency and tags.
type CloudWord struct {
	Name  string   `json:"name"`
	Value int      `json:"value"`
	Tags  []string `json:"tags"`
}
