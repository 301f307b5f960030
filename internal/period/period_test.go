package period_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/duetlabs/duet/internal/chatlog"
	"github.com/duetlabs/duet/internal/period"
)

// chatOverDays builds one message per day starting at 2024-01-01.
func chatOverDays(n int) []chatlog.Message {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "2024-01-%02d, 9:00 a.m. - Alice: day %d\n", i+1, i+1)
	}
	return chatlog.ParseExport(sb.String(), nil)
}

func TestGroupSinglePeriod(t *testing.T) {
	t.Parallel()

	periods, err := period.Group(chatOverDays(9), period.Options{})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("expected 1 period for 9-day history, got %d", len(periods))
	}
	p := periods[0]
	if p.Key() != "2024-01-01/2024-01-09" {
		t.Errorf("period key = %s", p.Key())
	}
	if len(p.Messages) != 9 {
		t.Errorf("period holds %d messages, want 9", len(p.Messages))
	}
}

func TestGroupTwoPeriods(t *testing.T) {
	t.Parallel()

	periods, err := period.Group(chatOverDays(20), period.Options{})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods for 20-day history, got %d", len(periods))
	}
	if periods[0].Key() != "2024-01-01/2024-01-14" {
		t.Errorf("first period = %s", periods[0].Key())
	}
	if periods[1].Key() != "2024-01-15/2024-01-20" {
		t.Errorf("second period = %s", periods[1].Key())
	}
	if len(periods[0].Messages) != 14 || len(periods[1].Messages) != 6 {
		t.Errorf("message split = %d/%d, want 14/6", len(periods[0].Messages), len(periods[1].Messages))
	}
}

func TestGroupGapsDoNotShiftBoundaries(t *testing.T) {
	t.Parallel()

	// Activity on day 1 and day 20 only: windows are calendar-based, so the
	// empty middle still consumes window days.
	chat := "2024-01-01, 9:00 a.m. - Alice: start\n2024-01-20, 9:00 a.m. - Bob: end"
	periods, err := period.Group(chatlog.ParseExport(chat, nil), period.Options{})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if len(periods[0].Messages) != 1 || len(periods[1].Messages) != 1 {
		t.Errorf("message split = %d/%d, want 1/1", len(periods[0].Messages), len(periods[1].Messages))
	}
}

func TestGroupCustomWindow(t *testing.T) {
	t.Parallel()

	periods, err := period.Group(chatOverDays(9), period.Options{WindowDays: 3})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods with 3-day windows, got %d", len(periods))
	}
}

func TestGroupInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := period.Group(chatOverDays(1), period.Options{Timezone: "Mars/Olympus_Mons"})
	if !errors.Is(err, period.ErrInvalidTimezone) {
		t.Errorf("err = %v, want ErrInvalidTimezone", err)
	}
}

func TestGroupEmptyFilteredRange(t *testing.T) {
	t.Parallel()

	_, err := period.Group(chatOverDays(5), period.Options{Start: "2030-01-01"})
	if !errors.Is(err, period.ErrNoMessagesInRange) {
		t.Errorf("err = %v, want ErrNoMessagesInRange", err)
	}
}

func TestGroupExplicitRange(t *testing.T) {
	t.Parallel()

	periods, err := period.Group(chatOverDays(20), period.Options{Start: "2024-01-05", End: "2024-01-10"})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("expected 1 period, got %d", len(periods))
	}
	if periods[0].Key() != "2024-01-05/2024-01-10" {
		t.Errorf("period = %s", periods[0].Key())
	}
	if len(periods[0].Messages) != 6 {
		t.Errorf("messages = %d, want 6", len(periods[0].Messages))
	}
}

func TestGroupEmptyInput(t *testing.T) {
	t.Parallel()

	periods, err := period.Group(nil, period.Options{})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(periods) != 0 {
		t.Errorf("expected no periods, got %d", len(periods))
	}
}
