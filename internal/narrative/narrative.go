// Package narrative runs LLM-based analysis over fortnight periods of a
// chat: conflict detection, highlight detection, and daily mood/theme
// labeling. The deterministic core hands it stable period inputs; everything
// here is delegated to a configured text-generation backend and cached by
// content hash.
package narrative

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/duetlabs/duet/internal/chatlog"
)

// Finding is one dated result from a period analysis.
type Finding struct {
	Date    string `json:"date"`
	Summary string `json:"summary"`
}

// PeriodReport is the analysis outcome for one period.
type PeriodReport struct {
	Period   string    `json:"period"`
	Total    int       `json:"total"`
	Findings []Finding `json:"findings"`
}

// Progress is one streamed analysis step: the report that just finished and
// how far along the whole run is.
type Progress struct {
	Current int          `json:"current"`
	Total   int          `json:"total"`
	Period  PeriodReport `json:"period"`
}

// BuildTranscript renders messages as minimal "YYYY-MM-DD: text" lines, the
// exact form the cache hash and every prompt are built from. Keeping the
// analyses on one input format keeps prompts bounded and cache keys shared.
func BuildTranscript(msgs []chatlog.Message, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ts := m.Timestamp
		if ts.Location() != time.UTC {
			ts = ts.In(loc)
		}
		lines = append(lines, ts.Format("2006-01-02")+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// HashTranscript is the idempotent cache key for one period's content.
func HashTranscript(transcript string) string {
	sum := sha256.Sum256([]byte(transcript))
	return hex.EncodeToString(sum[:])
}
