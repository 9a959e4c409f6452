// Package dates normalizes heterogeneous Hebrew and numeric date expressions
// into canonical calendar dates or inclusive date intervals.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed       = errors.New("NORMALIZATION_ERROR")
	ErrIncompleteRange = errors.New("INCOMPLETE_RANGE")
)

// Kind discriminates the DateExpression union.
type Kind int

const (
	KindAbsolute Kind = iota
	KindRange
)

// Expression is a normalized date expression. Absolute expressions carry Date;
// range expressions carry Start and End with Start <= End guaranteed.
type Expression struct {
	Kind  Kind
	Date  time.Time
	Start time.Time
	End   time.Time
}

func Absolute(d time.Time) Expression {
	return Expression{Kind: KindAbsolute, Date: d}
}

// NewRange builds a range expression. Reversed bounds fail rather than being
// swapped silently.
func NewRange(start, end time.Time) (Expression, error) {
	if start.After(end) {
		return Expression{}, fmt.Errorf("%w: range start %s after end %s",
			ErrMalformed, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return Expression{Kind: KindRange, Start: start, End: end}, nil
}

var hebrewMonths = map[string]time.Month{
	"ינואר":   time.January,
	"פברואר":  time.February,
	"מרץ":     time.March,
	"אפריל":   time.April,
	"מאי":     time.May,
	"יוני":    time.June,
	"יולי":    time.July,
	"אוגוסט":  time.August,
	"ספטמבר":  time.September,
	"אוקטובר": time.October,
	"נובמבר":  time.November,
	"דצמבר":   time.December,
}

const hebrewMonthAlt = "ינואר|פברואר|מרץ|אפריל|מאי|יוני|יולי|אוגוסט|ספטמבר|אוקטובר|נובמבר|דצמבר"

var (
	// ISO listed first so the scanner never splits yyyy-mm-dd into a dmy token.
	tokenRe     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4}`)
	isoRe       = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dmyRe       = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})$`)
	hebDayRe    = regexp.MustCompile(`(\d{1,2})\s+ב?(` + hebrewMonthAlt + `)\s+(\d{4})`)
	hebMonthRe  = regexp.MustCompile(`ב?(` + hebrewMonthAlt + `)\s+(\d{4})`)
	rangeMarkRe = regexp.MustCompile(`(?:^|\s)(?:בין|מתאריך|מ-)\s*`)
)

// Normalize converts a raw text span into a canonical date expression.
// Relative terms are resolved against the supplied now so the function stays
// deterministic under test.
func Normalize(span string, now time.Time) (Expression, error) {
	s := strings.TrimSpace(span)
	if s == "" {
		return Expression{}, fmt.Errorf("%w: empty date span", ErrMalformed)
	}

	switch {
	case s == "היום":
		return Absolute(midnight(now)), nil
	case s == "אתמול":
		return Absolute(midnight(now).AddDate(0, 0, -1)), nil
	case s == "החודש":
		return monthRange(now.Year(), now.Month())
	case s == "החודש האחרון", s == "חודש שעבר":
		// Anchor on the first of the month: AddDate(0, -1, 0) from a
		// month-end day overflows (Mar 31 -> Feb 31 -> Mar 2) and lands
		// back in the current month.
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		prev := first.AddDate(0, -1, 0)
		return monthRange(prev.Year(), prev.Month())
	}

	if rangeMarkRe.MatchString(s) {
		return normalizeRangeSpan(s)
	}

	if m := hebDayRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		return absoluteOf(year, hebrewMonths[m[2]], day)
	}
	if m := hebMonthRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[2])
		return monthRange(year, hebrewMonths[m[1]])
	}

	d, err := ParseDate(s)
	if err != nil {
		return Expression{}, err
	}
	return Absolute(d), nil
}

// ParseDate parses a single numeric date token, either dd/mm/yyyy (also "-"
// and "." separators) or ISO yyyy-mm-dd. Two-digit years are ambiguous and
// rejected rather than century-guessed.
func ParseDate(token string) (time.Time, error) {
	t := strings.TrimSpace(token)

	if m := isoRe.FindStringSubmatch(t); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return calendarDate(year, time.Month(month), day)
	}

	if m := dmyRe.FindStringSubmatch(t); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			return time.Time{}, fmt.Errorf("%w: ambiguous 2-digit year in %q", ErrMalformed, t)
		}
		return calendarDate(year, time.Month(month), day)
	}

	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrMalformed, t)
}

// normalizeRangeSpan extracts both endpoints from a range phrasing such as
// "מתאריך X עד תאריך Y" or "בין X ל-Y". A single parseable endpoint is an
// incomplete range, never a defaulted one.
func normalizeRangeSpan(s string) (Expression, error) {
	tokens := tokenRe.FindAllString(s, -1)

	parsed := make([]time.Time, 0, len(tokens))
	for _, tok := range tokens {
		d, err := ParseDate(tok)
		if err != nil {
			continue
		}
		parsed = append(parsed, d)
	}

	switch len(parsed) {
	case 0:
		return Expression{}, fmt.Errorf("%w: no dates in range phrase %q", ErrMalformed, s)
	case 1:
		return Expression{}, fmt.Errorf("%w: only one endpoint in %q", ErrIncompleteRange, s)
	}

	return NewRange(parsed[0], parsed[1])
}

func absoluteOf(year int, month time.Month, day int) (Expression, error) {
	d, err := calendarDate(year, month, day)
	if err != nil {
		return Expression{}, err
	}
	return Absolute(d), nil
}

func monthRange(year int, month time.Month) (Expression, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return NewRange(start, end)
}

// calendarDate rejects overflowing components (e.g. 32/01) that time.Date
// would otherwise normalize into the next month.
func calendarDate(year int, month time.Month, day int) (time.Time, error) {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("%w: invalid calendar date %02d/%02d/%04d", ErrMalformed, day, month, year)
	}
	return d, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
