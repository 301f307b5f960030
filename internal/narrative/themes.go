package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duetlabs/duet/internal/period"
)

// Theme is one of the fixed daily-theme categories.
type Theme struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Themes is the fixed theme table the model may use.
var Themes = map[int]Theme{
	0: {ID: 0, Name: "normal day", Icon: "🙂"},
	1: {ID: 1, Name: "emotional day", Icon: "😢"},
	2: {ID: 2, Name: "conflict day", Icon: "⚔️"},
	3: {ID: 3, Name: "exciting day", Icon: "🎉"},
}

// moodColors maps mood percent buckets (0-9, 10-19, ...) to hex colors from
// red through green.
var moodColors = []string{
	"#ff0000", "#ff3300", "#ff6600", "#ff9900", "#ffcc00",
	"#ffff00", "#ccff00", "#99ff00", "#66ff00", "#33ff00",
}

// MoodToColor maps a 0-100 mood percent to its bucket color. Out-of-range
// values are clamped.
func MoodToColor(percent int) string {
	pct := percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	idx := pct / 10
	if idx > 9 {
		idx = 9
	}
	return moodColors[idx]
}

// DayTheme is the labeled result for one calendar day.
type DayTheme struct {
	Date          string `json:"date"`
	MoodPct       int    `json:"mood_pct"`
	ColorHex      string `json:"color_hex"`
	DominantTheme *Theme `json:"dominant_theme,omitempty"`
	Description   string `json:"description"`
}

// ThemeRange is the daily-theme analysis for one period. Error carries the
// failure message when the model output could not be used; the range still
// appears in results so progress stays complete.
type ThemeRange struct {
	RangeStart string     `json:"range_start"`
	RangeEnd   string     `json:"range_end"`
	Timezone   string     `json:"timezone"`
	Days       []DayTheme `json:"days"`
	Error      string     `json:"error,omitempty"`
}

// ThemeProgress is one streamed daily-theme step.
type ThemeProgress struct {
	Current int        `json:"current"`
	Total   int        `json:"total"`
	Period  ThemeRange `json:"period"`
}

const themePromptTemplate = "You are an assistant categorizing daily conversation themes.\n" +
	"Given the chat transcript between %s in timezone %s,\n" +
	"analyze each day's messages, looking for playfulness and how positively the two are interacting.\n" +
	"Estimate the vibe of their relationship on a scale of 0-100.\n" +
	"For each day, decide whether anything notable happened. Only use theme ids\n" +
	"1 (emotional day), 2 (conflict day), or 3 (exciting day) if the messages\n" +
	"clearly show a significant emotion, a definite conflict, or an exciting\n" +
	"event. Otherwise use 0 (normal day). Most days should be normal days.\n" +
	"Return a JSON object mapping each date (YYYY-MM-DD) to an object with:\n" +
	"  mood_pct: integer 0-100 representing overall vibe,\n" +
	"  dominant_theme: object {\"id\": <theme_id>}, and\n" +
	"  description: brief description of the day's notable events or mood.\n" +
	"Example: {\"2024-01-01\": {\"mood_pct\": 75, \"dominant_theme\": {\"id\": 2}, \"description\": \"argued about chores\"}}\n" +
	"Transcript:\n%s"

// ThemeAnalyzer labels each day of a period with a mood percent and a
// dominant theme.
type ThemeAnalyzer struct {
	provider Provider
	cache    Cache
	log      *slog.Logger
	limit    int
}

// NewThemeAnalyzer builds the daily-theme analyzer.
func NewThemeAnalyzer(provider Provider, cache Cache, log *slog.Logger, maxConcurrency int) *ThemeAnalyzer {
	if maxConcurrency < 1 {
		maxConcurrency = runtime.NumCPU()
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &ThemeAnalyzer{
		provider: provider,
		cache:    cache,
		log:      log.With("analyzer", "daily_themes"),
		limit:    maxConcurrency,
	}
}

// analyzeRange labels one period. Model or decode failures produce a range
// with Error set and no days, never a run-aborting error.
func (t *ThemeAnalyzer) analyzeRange(ctx context.Context, p period.Period, loc *time.Location) ThemeRange {
	start := p.Start.Format("2006-01-02")
	end := p.End.Format("2006-01-02")
	tzName := "UTC"
	if loc != nil {
		tzName = loc.String()
	}

	transcript := BuildTranscript(p.Messages, loc)
	key := HashTranscript(fmt.Sprintf("%s|%s|%s|%s", start, end, tzName, transcript))

	if payload, err := t.cache.Get(ctx, "daily_themes", key); err == nil {
		var cached ThemeRange
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached
		}
		t.log.WarnContext(ctx, "Discarding undecodable cache entry", "key", key)
	}

	out := ThemeRange{RangeStart: start, RangeEnd: end, Timezone: tzName, Days: []DayTheme{}}

	prompt := fmt.Sprintf(themePromptTemplate, start+" to "+end, tzName, transcript)
	content, err := t.provider.Generate(ctx, prompt)
	if err == nil {
		var days []DayTheme
		days, err = parseDaysJSON(strings.TrimSpace(content))
		if err == nil {
			out.Days = days
		}
	}
	if err != nil {
		t.log.WarnContext(ctx, "Daily theme analysis failed", "range", p.Key(), "error", err)
		out.Error = err.Error()
	}

	if out.Error == "" {
		if payload, merr := json.Marshal(out); merr == nil {
			if cerr := t.cache.Set(ctx, "daily_themes", key, payload); cerr != nil {
				t.log.WarnContext(ctx, "Failed to cache daily themes", "key", key, "error", cerr)
			}
		}
	}
	return out
}

// parseDaysJSON decodes the model's date-keyed object into sorted day
// entries, normalizing mood/description field spellings and resolving theme
// ids against the fixed table. Unknown ids and malformed JSON are errors.
func parseDaysJSON(content string) ([]DayTheme, error) {
	var raw map[string]struct {
		MoodPct       *int   `json:"mood_pct"`
		MoodPercent   *int   `json:"mood_percent"`
		Mood          *int   `json:"mood"`
		Description   string `json:"description"`
		Summary       string `json:"summary"`
		DominantTheme *struct {
			ID int `json:"id"`
		} `json:"dominant_theme"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("malformed daily themes JSON: %w", err)
	}

	days := make([]DayTheme, 0, len(raw))
	for date, info := range raw {
		mood := 0
		switch {
		case info.MoodPct != nil:
			mood = *info.MoodPct
		case info.MoodPercent != nil:
			mood = *info.MoodPercent
		case info.Mood != nil:
			mood = *info.Mood
		}

		day := DayTheme{
			Date:        date,
			MoodPct:     mood,
			ColorHex:    MoodToColor(mood),
			Description: firstNonEmpty(info.Description, info.Summary),
		}
		if info.DominantTheme != nil {
			theme, ok := Themes[info.DominantTheme.ID]
			if !ok {
				return nil, fmt.Errorf("unknown theme id %d for %s", info.DominantTheme.ID, date)
			}
			day.DominantTheme = &theme
		}
		days = append(days, day)
	}

	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Analyze labels every period with at most the configured number in flight,
// returning ranges sorted by start date.
func (t *ThemeAnalyzer) Analyze(ctx context.Context, periods []period.Period, loc *time.Location) ([]ThemeRange, error) {
	ranges := make([]ThemeRange, len(periods))

	runBounded(ctx, t.limit, len(periods), func(ctx context.Context, i int) {
		ranges[i] = t.analyzeRange(ctx, periods[i], loc)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].RangeStart < ranges[j].RangeStart })
	return ranges, nil
}

// Stream emits each labeled range as it completes.
func (t *ThemeAnalyzer) Stream(ctx context.Context, periods []period.Period, loc *time.Location) <-chan ThemeProgress {
	out := make(chan ThemeProgress)

	go func() {
		defer close(out)

		var mu sync.Mutex
		done := 0
		runBounded(ctx, t.limit, len(periods), func(ctx context.Context, i int) {
			r := t.analyzeRange(ctx, periods[i], loc)

			mu.Lock()
			done++
			current := done
			mu.Unlock()

			select {
			case out <- ThemeProgress{Current: current, Total: len(periods), Period: r}:
			case <-ctx.Done():
			}
		})
	}()

	return out
}
