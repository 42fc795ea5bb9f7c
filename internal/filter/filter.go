// Package filter implements the metadata predicate layer applied to
// candidate search results: date-range, source, and author filters.
//
// The predicate style (small composable funcs over a candidate's metadata)
// is grounded on the teacher's internal/rag/retrieve filtering helpers,
// which build conjunctive filters the same way rather than compiling a
// query-object tree.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedFilter is returned for unparseable date ranges or custom
// range bounds.
var ErrMalformedFilter = errors.New("filter: malformed filter spec")

// Past3MonthsDays resolves the "past_3_months" date range to a fixed window
// of 90 days, per the documented resolution of the ambiguity between
// calendar-month and fixed-day interpretations.
const Past3MonthsDays = 90

// Spec is a fully-parsed filter specification: a conjunction of predicates.
type Spec struct {
	DateStart, DateEnd time.Time // zero value means unbounded on that side
	HasDateRange       bool
	Source             string
	HasSource          bool
	Author             string
	HasAuthor          bool
}

// Candidate is the minimal metadata filter predicates need. Callers adapt
// their own result type to this shape.
type Candidate struct {
	PublishedDate time.Time
	Source        string
	Author        string
}

// Matches reports whether c satisfies every predicate in s.
func (s Spec) Matches(c Candidate) bool {
	if s.HasDateRange {
		if !s.DateStart.IsZero() && c.PublishedDate.Before(s.DateStart) {
			return false
		}
		if !s.DateEnd.IsZero() && c.PublishedDate.After(s.DateEnd) {
			return false
		}
	}
	if s.HasSource && s.Source != c.Source {
		return false
	}
	if s.HasAuthor && s.Author != c.Author {
		return false
	}
	return true
}

// ParseDateRange parses one of the recognized date-range tokens relative to
// now, or a custom(start,end) expression with ISO-8601 (YYYY-MM-DD) dates.
// Both past_3_months and past_3months are accepted, resolving to a fixed
// 90-day window (Past3MonthsDays).
func ParseDateRange(token string, now time.Time) (start, end time.Time, err error) {
	token = strings.TrimSpace(token)
	switch {
	case token == "past_week":
		return now.AddDate(0, 0, -7), time.Time{}, nil
	case token == "past_month":
		return now.AddDate(0, -1, 0), time.Time{}, nil
	case token == "past_3_months", token == "past_3months":
		return now.AddDate(0, 0, -Past3MonthsDays), time.Time{}, nil
	case token == "past_year":
		return now.AddDate(-1, 0, 0), time.Time{}, nil
	case token == "1990s":
		return decade(1990), decade(2000), nil
	case token == "2000s":
		return decade(2000), decade(2010), nil
	case token == "2010s":
		return decade(2010), decade(2020), nil
	case token == "2020s":
		return decade(2020), decade(2030), nil
	case strings.HasPrefix(token, "custom(") && strings.HasSuffix(token, ")"):
		return parseCustomRange(token)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unrecognized date range %q", ErrMalformedFilter, token)
	}
}

func decade(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func parseCustomRange(token string) (time.Time, time.Time, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(token, "custom("), ")")
	parts := strings.SplitN(body, ",", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: custom() needs two comma-separated dates", ErrMalformedFilter)
	}
	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid custom start date %q", ErrMalformedFilter, startStr)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid custom end date %q", ErrMalformedFilter, endStr)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: custom end before start", ErrMalformedFilter)
	}
	return start, end, nil
}

// Apply returns a new slice holding only the items that satisfy s; items
// itself is not modified. The caller's candidate type is adapted to filter
// via the toCandidate func, since the engine's candidate type lives outside
// this package.
func Apply[T any](items []T, toCandidate func(T) Candidate, s Spec) []T {
	out := items[:0:0]
	for _, it := range items {
		if s.Matches(toCandidate(it)) {
			out = append(out, it)
		}
	}
	return out
}
