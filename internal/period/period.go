// Package period slices a message store into calendar-aligned windows for
// the narrative analyzers. Windows are non-overlapping, cover every day
// present, are at most WindowDays long, and carry no cross-period ordering
// dependency, so periods can be analyzed concurrently and re-combined with a
// stable sort on the start day.
package period

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/duetlabs/duet/internal/chatlog"
)

// DefaultWindowDays is the fortnight window used by every analyzer.
const DefaultWindowDays = 14

var (
	// ErrInvalidTimezone marks a caller-supplied timezone identifier that
	// cannot be resolved. Boundary validation, surfaced, never defaulted.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrNoMessagesInRange marks an explicit date filter that excludes every
	// parsed message.
	ErrNoMessagesInRange = errors.New("no messages in range")
)

// Period is one contiguous date window with the messages whose effective
// local day falls inside it. End is inclusive.
type Period struct {
	Start    time.Time
	End      time.Time
	Messages []chatlog.Message
}

// Key is the period's stable identity, "start/end" in ISO dates.
func (p Period) Key() string {
	return p.Start.Format("2006-01-02") + "/" + p.End.Format("2006-01-02")
}

// Options controls grouping.
type Options struct {
	// Timezone interprets message timestamps when assigning calendar days.
	// Timestamps without an offset are assumed to already be in it;
	// timestamps with one are converted. Empty means UTC.
	Timezone string

	// WindowDays caps each window's length; 0 means DefaultWindowDays.
	WindowDays int

	// Start and End, when non-zero ("2006-01-02"), filter messages to an
	// explicit inclusive day range before windowing.
	Start, End string
}

// LoadLocation resolves the options' timezone, wrapping failures in
// ErrInvalidTimezone.
func (o Options) LoadLocation() (*time.Location, error) {
	if o.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, o.Timezone)
	}
	return loc, nil
}

// localDay returns the message's calendar day in loc, truncated to midnight
// UTC for stable day arithmetic.
func localDay(m chatlog.Message, loc *time.Location) time.Time {
	ts := m.Timestamp
	if ts.Location() == time.UTC {
		// Unlabeled timestamps are parsed into UTC; treat the wall clock as
		// already local rather than converting.
		ts = time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, loc)
	} else {
		ts = ts.In(loc)
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// GroupByDay buckets messages by their local calendar day.
func GroupByDay(msgs []chatlog.Message, loc *time.Location) map[time.Time][]chatlog.Message {
	days := make(map[time.Time][]chatlog.Message)
	for _, m := range msgs {
		day := localDay(m, loc)
		days[day] = append(days[day], m)
	}
	return days
}

// Group windows the messages per the options. The first window starts on the
// earliest day present; each next window starts the day after the previous
// end; the final window is clipped to the latest day present. Assignment is
// by calendar day, so gaps in activity leave windows with fewer populated
// days rather than shifting boundaries.
func Group(msgs []chatlog.Message, opts Options) ([]Period, error) {
	loc, err := opts.LoadLocation()
	if err != nil {
		return nil, err
	}

	window := opts.WindowDays
	if window <= 0 {
		window = DefaultWindowDays
	}

	filtered, err := filterRange(msgs, loc, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}

	days := GroupByDay(filtered, loc)
	if len(days) == 0 {
		return []Period{}, nil
	}

	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	first, last := sorted[0], sorted[len(sorted)-1]

	var periods []Period
	for cur := first; !cur.After(last); {
		end := cur.AddDate(0, 0, window-1)
		if end.After(last) {
			end = last
		}

		var inWindow []chatlog.Message
		for day := cur; !day.After(end); day = day.AddDate(0, 0, 1) {
			inWindow = append(inWindow, days[day]...)
		}
		sort.SliceStable(inWindow, func(i, j int) bool {
			return inWindow[i].Timestamp.Before(inWindow[j].Timestamp)
		})

		periods = append(periods, Period{Start: cur, End: end, Messages: inWindow})
		cur = end.AddDate(0, 0, 1)
	}
	return periods, nil
}

// filterRange applies the optional explicit day filter. A filter that leaves
// nothing is a rejected request, not an empty success.
func filterRange(msgs []chatlog.Message, loc *time.Location, start, end string) ([]chatlog.Message, error) {
	if start == "" && end == "" {
		return msgs, nil
	}

	parseDay := func(s string) (time.Time, bool, error) {
		if s == "" {
			return time.Time{}, false, nil
		}
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return d, true, nil
	}

	from, hasFrom, err := parseDay(start)
	if err != nil {
		return nil, err
	}
	to, hasTo, err := parseDay(end)
	if err != nil {
		return nil, err
	}

	var out []chatlog.Message
	for _, m := range msgs {
		day := localDay(m, loc)
		if hasFrom && day.Before(from) {
			continue
		}
		if hasTo && day.After(to) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, ErrNoMessagesInRange
	}
	return out, nil
}
