package narrative

import (
	"sort"
	"time"
)

// Month groups findings by the calendar month of their own date.
type Month struct {
	Month    string    `json:"month"`
	Total    int       `json:"total"`
	Findings []Finding `json:"findings"`
}

// PeriodsToMonths regroups period reports into calendar months. Grouping is
// by each finding's own date, not the period's month, because a fortnight
// can straddle a month boundary. Findings are sorted date-ascending within
// each month, months chronologically, and a month's total is the length of
// its finding list. Findings with unparseable dates are skipped.
func PeriodsToMonths(reports []PeriodReport) []Month {
	byMonth := make(map[string][]Finding)
	for _, r := range reports {
		for _, f := range r.Findings {
			day := f.Date
			if len(day) > 10 {
				day = day[:10]
			}
			t, err := time.Parse("2006-01-02", day)
			if err != nil {
				continue
			}
			key := t.Format("2006-01")
			byMonth[key] = append(byMonth[key], f)
		}
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	months := make([]Month, 0, len(keys))
	for _, k := range keys {
		findings := byMonth[k]
		sort.SliceStable(findings, func(i, j int) bool { return findings[i].Date < findings[j].Date })
		months = append(months, Month{Month: k, Total: len(findings), Findings: findings})
	}
	return months
}
