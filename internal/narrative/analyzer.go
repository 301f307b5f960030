package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/duetlabs/duet/internal/period"
)

const conflictPrompt = "You are an expert assistant in analyzing chat logs for substantive interpersonal conflicts—" +
	"moments where both participants clearly experience real misalignment, emotional pain, disappointment, " +
	"or confusion (not just playful teasing). " +
	"Report only conflicts that are unmistakably significant and involve direct exchanges between the two people. " +
	"Ignore brattiness, playful criticisms, mild misunderstandings, or single-sided complaints unless they escalate into real hurt or new boundaries. " +
	"Disregard any mention of third parties unless it causes tension between the two participants.\n" +
	"If there are no significant conflicts in this period, respond with total: 0 and an empty findings array.\n" +
	"Output JSON with:\n" +
	"total: integer, count of significant or potentially relationship-altering conflicts.\n" +
	"findings: an array of objects, each with:\n" +
	"date (YYYY-MM-DD): first date where the conflict became visible.\n" +
	"summary: a concise, objective description in neutral tone of the disagreement or misalignment, including both perspectives if possible.\n"

const highlightPrompt = "You are an expert assistant in analyzing chat logs for exceptionally positive moments—" +
	"instances of heartfelt appreciation, mutual excitement, emotional intimacy, or other genuinely special exchanges. " +
	"Report only moments that clearly stand out as meaningful to the relationship. Ignore everyday chit-chat, routine compliments, or light banter.\n" +
	"If there are no such moments in this period, respond with total: 0 and an empty findings array.\n" +
	"Output JSON with:\n" +
	"total: integer, count of unique special moments.\n" +
	"findings: an array of objects, each with:\n" +
	"date (YYYY-MM-DD): first date where the moment occurred.\n" +
	"summary: a concise, objective description in neutral tone of the positive moment or conversation.\n"

// Analyzer sends each period's transcript to the backend and collects dated
// findings. The same machinery serves conflicts and highlights; only the
// prompt and cache namespace differ.
type Analyzer struct {
	kind     string
	prompt   string
	provider Provider
	cache    Cache
	log      *slog.Logger
	limit    int
}

// NewConflictAnalyzer detects significant interpersonal conflicts.
func NewConflictAnalyzer(provider Provider, cache Cache, log *slog.Logger, maxConcurrency int) *Analyzer {
	return newAnalyzer("conflict", conflictPrompt, provider, cache, log, maxConcurrency)
}

// NewHighlightAnalyzer detects exceptionally positive moments.
func NewHighlightAnalyzer(provider Provider, cache Cache, log *slog.Logger, maxConcurrency int) *Analyzer {
	return newAnalyzer("highlight", highlightPrompt, provider, cache, log, maxConcurrency)
}

func newAnalyzer(kind, prompt string, provider Provider, cache Cache, log *slog.Logger, maxConcurrency int) *Analyzer {
	if maxConcurrency < 1 {
		maxConcurrency = runtime.NumCPU()
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &Analyzer{
		kind:     kind,
		prompt:   prompt,
		provider: provider,
		cache:    cache,
		log:      log.With("analyzer", kind),
		limit:    maxConcurrency,
	}
}

// Kind names the analysis ("conflict" or "highlight").
func (a *Analyzer) Kind() string { return a.kind }

// analyzeOne runs one period through the cache and the model. Malformed
// model output degrades to zero findings rather than failing the run.
func (a *Analyzer) analyzeOne(ctx context.Context, p period.Period, loc *time.Location) (PeriodReport, error) {
	transcript := BuildTranscript(p.Messages, loc)
	key := HashTranscript(transcript)

	if payload, err := a.cache.Get(ctx, a.kind, key); err == nil {
		var cached PeriodReport
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		a.log.WarnContext(ctx, "Discarding undecodable cache entry", "key", key)
	}

	prompt := fmt.Sprintf("%s\nChat log for %s:\n%s", a.prompt, p.Key(), transcript)
	content, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		return PeriodReport{}, fmt.Errorf("analyze period %s: %w", p.Key(), err)
	}

	report := decodeReport(strings.TrimSpace(content))
	report.Period = p.Key()

	payload, err := json.Marshal(report)
	if err == nil {
		if err := a.cache.Set(ctx, a.kind, key, payload); err != nil {
			a.log.WarnContext(ctx, "Failed to cache analysis result", "key", key, "error", err)
		}
	}
	return report, nil
}

// decodeReport defensively parses the model's JSON answer. Unparseable
// content yields an empty report; a missing total defaults to the findings
// length.
func decodeReport(content string) PeriodReport {
	var raw struct {
		Total    *int      `json:"total"`
		Findings []Finding `json:"findings"`
	}
	report := PeriodReport{Findings: []Finding{}}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return report
	}
	if raw.Findings != nil {
		report.Findings = raw.Findings
	}
	if raw.Total != nil {
		report.Total = *raw.Total
	} else {
		report.Total = len(report.Findings)
	}
	return report
}
