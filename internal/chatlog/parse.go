package chatlog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// headerRE matches a message-start line: a 4-digit-year date, comma,
// 1-2 digit hour with minutes, an a.m./p.m. marker, and a " - " separator
// before the message tail. Lines with a date-like prefix that miss the
// marker or separator are deliberately NOT headers; they attach to the
// previous message as continuation text.
var headerRE = regexp.MustCompile(`(?i)^\s*(\d{4}-\d{2}-\d{2}),\s*(\d{1,2}:\d{2})\s*([ap]\.m\.)\s*-\s*(.*)$`)

// ParseExport converts a raw chat export into an ordered message slice.
// The text is normalized first, then segmented line by line: a header line
// flushes the chunk being accumulated and opens a new one, any other line is
// continuation text for the open chunk, and lines before the first header are
// stray preamble and are dropped. If loc is non-nil, parsed timestamps are
// labeled with it (never converted). Parsing is best-effort and never fails:
// malformed chunks are skipped.
func ParseExport(text string, loc *time.Location) []Message {
	// Uploads arrive as raw bytes; invalid UTF-8 sequences are replaced up
	// front so downstream normalization and matching see valid text.
	text = strings.ToValidUTF8(text, "\uFFFD")
	text = Normalize(text)

	var chunks []string
	var buf []string
	flush := func() {
		if len(buf) > 0 {
			chunks = append(chunks, strings.Trim(strings.Join(buf, "\n"), "\n"))
			buf = buf[:0]
		}
	}

	for _, line := range splitLines(text) {
		if headerRE.MatchString(line) {
			flush()
			buf = append(buf, line)
			continue
		}
		if len(buf) == 0 {
			continue
		}
		buf = append(buf, line)
	}
	flush()

	msgs := make([]Message, 0, len(chunks))
	for _, chunk := range chunks {
		if msg, ok := buildMessage(chunk, loc); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// buildMessage parses one chunk (header line plus continuation lines) into a
// Message. The header was already matched by the segmenter, so a failed
// re-parse should not happen, but it is handled defensively.
func buildMessage(chunk string, loc *time.Location) (Message, bool) {
	first, rest, _ := strings.Cut(chunk, "\n")

	m := headerRE.FindStringSubmatch(first)
	if m == nil {
		return Message{}, false
	}
	dateStr, timeStr, ampm, tail := m[1], m[2], m[3], m[4]

	ts, ok := parseTimestamp(dateStr, timeStr, ampm, loc)
	if !ok {
		return Message{}, false
	}

	msg := Message{Timestamp: ts}
	if sender, body, found := strings.Cut(tail, ":"); found {
		msg.Sender = strings.TrimSpace(sender)
		msg.Text = strings.TrimSpace(body)
	} else {
		msg.IsSystem = true
		msg.Text = strings.TrimSpace(tail)
	}

	if rest != "" {
		msg.Text = strings.TrimSpace(msg.Text + "\n" + rest)
	}
	msg.HasMedia = strings.Contains(msg.Text, MediaMarker)
	return msg, true
}

// parseTimestamp builds an absolute time from the header's date, hh:mm, and
// a.m./p.m. marker, applying 12-hour to 24-hour conversion. A nil location
// defaults to time.Local-free UTC labeling via time.Date's location argument.
func parseTimestamp(dateStr, timeStr, ampm string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, false
	}

	hhmm := strings.SplitN(timeStr, ":", 2)
	if len(hhmm) != 2 {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(hhmm[0])
	if err != nil {
		return time.Time{}, false
	}
	minute, err := strconv.Atoi(hhmm[1])
	if err != nil || hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	switch strings.ToLower(strings.TrimSpace(ampm)) {
	case "p.m.":
		if hour < 12 {
			hour += 12
		}
	case "a.m.":
		if hour == 12 {
			hour = 0
		}
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), true
}

// splitLines splits on \n, \r\n, or bare \r, mirroring the tolerant line
// handling of text exports produced on different platforms.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
