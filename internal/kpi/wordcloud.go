package kpi

import (
	"sort"
	"strings"

	"github.com/forPelevin/gomoji"

	"github.com/duetlabs/duet/internal/chatlog"
)

// computeWordCloud builds the per-sender token cloud: alphabetic tokens
// (case-folded, stopwords dropped) plus emoji tokens, tagged from the
// lexicon lists, cut to the union of the overall top-N and the top-N within
// each tag, ordered by descending frequency.
func computeWordCloud(msgs []chatlog.Message, senders []string, lex Lexicon) map[string][]CloudWord {
	out := make(map[string][]CloudWord, len(senders))
	include := make(map[string]struct{}, len(senders))
	for _, s := range senders {
		include[s] = struct{}{}
		out[s] = []CloudWord{}
	}

	counts := make(map[string]map[string]int, len(senders))
	tags := make(map[string]map[string]map[string]struct{}, len(senders))
	for _, s := range senders {
		counts[s] = map[string]int{}
		tags[s] = map[string]map[string]struct{}{}
	}

	addTag := func(sender, token, tag string) {
		set, ok := tags[sender][token]
		if !ok {
			set = map[string]struct{}{}
			tags[sender][token] = set
		}
		set[tag] = struct{}{}
	}

	for _, m := range msgs {
		if _, ok := include[m.Sender]; !ok {
			continue
		}
		// Media placeholders carry no real words.
		if m.HasMedia || strings.Contains(strings.ToLower(m.Text), strings.ToLower(chatlog.MediaMarker)) {
			continue
		}

		for _, w := range wordTokens(m.Text) {
			if _, stop := lex.Stopwords[w]; stop {
				continue
			}
			counts[m.Sender][w]++
			if _, ok := tags[m.Sender][w]; !ok {
				tags[m.Sender][w] = map[string]struct{}{}
			}
			if inSet(w, lex.Profanity) {
				addTag(m.Sender, w, TagSwear)
			}
			if inSet(w, lex.Sexual) {
				addTag(m.Sender, w, TagSexual)
			}
			if inSet(w, lex.Thematic) {
				addTag(m.Sender, w, lex.ThematicTag)
			}
		}
		for _, e := range gomoji.CollectAll(m.Text) {
			counts[m.Sender][e.Character]++
			addTag(m.Sender, e.Character, TagEmoji)
		}
	}

	for _, s := range senders {
		out[s] = cloudForSender(counts[s], tags[s], lex.TopN)
	}
	return out
}

// cloudForSender applies the top-N union cut for one sender.
func cloudForSender(cnt map[string]int, tags map[string]map[string]struct{}, topN int) []CloudWord {
	if len(cnt) == 0 {
		return []CloudWord{}
	}

	byFreq := func(tokens []string) []string {
		sort.Slice(tokens, func(i, j int) bool {
			if cnt[tokens[i]] != cnt[tokens[j]] {
				return cnt[tokens[i]] > cnt[tokens[j]]
			}
			return tokens[i] < tokens[j]
		})
		return tokens
	}

	all := make([]string, 0, len(cnt))
	for w := range cnt {
		all = append(all, w)
	}
	all = byFreq(all)

	keep := make(map[string]struct{})
	for i, w := range all {
		if topN > 0 && i >= topN {
			break
		}
		keep[w] = struct{}{}
	}

	// Also keep the top N of every tag category so rare tagged tokens
	// survive the overall cut.
	allTags := make(map[string]struct{})
	for _, ts := range tags {
		for t := range ts {
			allTags[t] = struct{}{}
		}
	}
	for t := range allTags {
		var tagged []string
		for w, ts := range tags {
			if _, ok := ts[t]; ok {
				tagged = append(tagged, w)
			}
		}
		tagged = byFreq(tagged)
		for i, w := range tagged {
			if topN > 0 && i >= topN {
				break
			}
			keep[w] = struct{}{}
		}
	}

	kept := make([]string, 0, len(keep))
	for w := range keep {
		kept = append(kept, w)
	}
	kept = byFreq(kept)

	words := make([]CloudWord, 0, len(kept))
	for _, w := range kept {
		var ts []string
		for t := range tags[w] {
			ts = append(ts, t)
		}
		sort.Strings(ts)
		if ts == nil {
			ts = []string{}
		}
		words = append(words, CloudWord{Name: w, Value: cnt[w], Tags: ts})
	}
	return words
}
