package asteroid

import (
	"fmt"
	"strings"
)

// Filter selects which cached asteroids are part of the published view
type Filter string

const (
	// FilterAll selects every cached asteroid
	FilterAll Filter = "all"

	// FilterWeek selects asteroids approaching today or later
	FilterWeek Filter = "week"

	// FilterToday selects asteroids approaching today
	FilterToday Filter = "today"
)

// DefaultFilter is the filter a new view starts with
const DefaultFilter = FilterWeek

// Filters lists every supported filter in display order
var Filters = []Filter{FilterToday, FilterWeek, FilterAll}

// Op is the comparison a Predicate applies to the close-approach date
type Op int

const (
	// OpAny matches every row
	OpAny Op = iota
	// OpOn matches rows dated exactly Date
	OpOn
	// OpOnOrAfter matches rows dated Date or later
	OpOnOrAfter
	// OpBefore matches rows dated strictly before Date
	OpBefore
)

// Predicate is a comparison of the close-approach date against a fixed date.
// It is the only selection the record store needs to understand.
type Predicate struct {
	Op   Op
	Date Date
}

// Any returns the predicate matching every row
func Any() Predicate { return Predicate{Op: OpAny} }

// On returns the predicate matching rows dated d
func On(d Date) Predicate { return Predicate{Op: OpOn, Date: d} }

// OnOrAfter returns the predicate matching rows dated d or later
func OnOrAfter(d Date) Predicate { return Predicate{Op: OpOnOrAfter, Date: d} }

// Before returns the predicate matching rows dated strictly before d
func Before(d Date) Predicate { return Predicate{Op: OpBefore, Date: d} }

// Matches reports whether a satisfies the predicate
func (p Predicate) Matches(a Asteroid) bool {
	switch p.Op {
	case OpOn:
		return a.CloseApproachDate.Equal(p.Date)
	case OpOnOrAfter:
		return !a.CloseApproachDate.Before(p.Date)
	case OpBefore:
		return a.CloseApproachDate.Before(p.Date)
	default:
		return true
	}
}

func (p Predicate) String() string {
	switch p.Op {
	case OpOn:
		return "date = " + p.Date.String()
	case OpOnOrAfter:
		return "date >= " + p.Date.String()
	case OpBefore:
		return "date < " + p.Date.String()
	default:
		return "any"
	}
}

// filterPredicates maps each filter to the predicate it applies relative to today
var filterPredicates = map[Filter]func(today Date) Predicate{
	FilterAll:   func(Date) Predicate { return Any() },
	FilterWeek:  OnOrAfter,
	FilterToday: On,
}

// ParseFilter parses a filter name, ignoring case and surrounding whitespace
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := filterPredicates[f]; !ok {
		return "", fmt.Errorf("unknown filter %q: must be one of today, week, all", s)
	}
	return f, nil
}

// IsValid reports whether f is a supported filter
func (f Filter) IsValid() bool {
	_, ok := filterPredicates[f]
	return ok
}

// Predicate returns the store predicate for f evaluated against today.
// An unknown filter falls back to the default filter.
func (f Filter) Predicate(today Date) Predicate {
	build, ok := filterPredicates[f]
	if !ok {
		build = filterPredicates[DefaultFilter]
	}
	return build(today)
}

// Apply returns the rows of an ordered snapshot that pass f for today.
// The result is a new slice; rows is not modified.
func (f Filter) Apply(rows []Asteroid, today Date) []Asteroid {
	p := f.Predicate(today)
	out := make([]Asteroid, 0, len(rows))
	for _, r := range rows {
		if p.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) String() string {
	return string(f)
}
