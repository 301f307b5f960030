package kpi

import "strings"

// Tag labels attached to word-cloud tokens.
const (
	TagSwear  = "swear"
	TagSexual = "sexual"
	TagEmoji  = "emoji"
)

// Lexicon is the heuristic word-list configuration used by the engine.
// The lists are plain data so deployments can swap them without touching
// the algorithms; DefaultLexicon provides the stock sets.
type Lexicon struct {
	// Affection and Profanity are matched case-insensitively as substrings
	// of the message text. Substring matching is an accepted heuristic:
	// "loved" counts as a hit on "love".
	Affection []string
	Profanity []string

	// Sexual and Thematic tag word-cloud tokens; ThematicTag names the tag
	// emitted for Thematic hits.
	Sexual      []string
	Thematic    []string
	ThematicTag string

	// PronounsWe and PronounsI are matched as whole lowercase words.
	PronounsWe []string
	PronounsI  []string

	// Stopwords are dropped from the word cloud. TopN bounds the overall
	// and per-tag frequency cuts.
	Stopwords map[string]struct{}
	TopN      int
}

// DefaultLexicon returns the stock heuristic lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Affection: []string{
			"love you", "luv u", "miss you", "😘", "❤️", "❤", "💕", "💖",
			"babe", "baby", "hun", "honey", "cutie", "sweetheart", "proud of you",
		},
		Profanity: []string{
			"fuck", "shit", "bitch", "ass", "asshole", "dick", "cuck", "bastard",
			"damn", "crap", "hell", "piss", "motherfucker", "bullshit",
		},
		Sexual: []string{
			"sex", "sexy", "naked", "nude", "dick", "pussy", "boobs", "tits", "cock", "cum",
			"horny", "ass", "booty", "butt", "lingerie", "thighs", "kinky", "seduce",
		},
		Thematic: []string{
			"space", "rocket", "planet", "star", "galaxy", "universe", "moon",
			"mars", "astronaut", "cosmos", "nebula", "nasa",
		},
		ThematicTag: "space",
		PronounsWe:  []string{"we", "us", "our", "ours"},
		PronounsI:   []string{"i", "me", "my", "mine"},
		Stopwords:   defaultStopwords(),
		TopN:        50,
	}
}

// WithExtraStopwords returns a copy of the lexicon with words added to the
// stopword set (lowercased).
func (l Lexicon) WithExtraStopwords(words []string) Lexicon {
	stop := make(map[string]struct{}, len(l.Stopwords)+len(words))
	for w := range l.Stopwords {
		stop[w] = struct{}{}
	}
	for _, w := range words {
		stop[strings.ToLower(w)] = struct{}{}
	}
	l.Stopwords = stop
	return l
}

// matchesAny reports whether text contains any of the tokens,
// case-insensitively and substring-based.
func matchesAny(text string, tokens []string) bool {
	if text == "" || len(tokens) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// inSet reports set membership for a word list.
func inSet(word string, set []string) bool {
	for _, w := range set {
		if w == word {
			return true
		}
	}
	return false
}
