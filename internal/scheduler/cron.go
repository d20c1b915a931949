package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpr is a parsed 5-field cron expression (minute, hour, day of month,
// month, day of week). Each field is a bit set of allowed values.
type CronExpr struct {
	minute, hour, dom, month, dow uint64

	// Standard cron: when both day fields are restricted a time matches if
	// either of them does.
	domStar, dowStar bool
}

type fieldSpec struct {
	name     string
	min, max int
}

var fields = [5]fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// ParseCron parses a standard 5-field cron expression. Supported forms per
// field: *, */n, n, n-m, n-m/s and comma separated lists of those. Day of
// week 7 is Sunday, same as 0.
func ParseCron(expr string) (*CronExpr, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(parts))
	}

	var sets [5]uint64
	for i, p := range parts {
		set, err := parseField(p, fields[i].min, fields[i].max)
		if err != nil {
			return nil, fmt.Errorf("%s field: %w", fields[i].name, err)
		}
		sets[i] = set
	}
	dow := sets[4]
	if dow&(1<<7) != 0 {
		dow = dow&^(1<<7) | 1
	}

	return &CronExpr{
		minute:  sets[0],
		hour:    sets[1],
		dom:     sets[2],
		month:   sets[3],
		dow:     dow,
		domStar: parts[2] == "*",
		dowStar: parts[4] == "*",
	}, nil
}

// Matches reports whether t (to the minute) is selected by the expression.
func (c *CronExpr) Matches(t time.Time) bool {
	if !has(c.minute, t.Minute()) || !has(c.hour, t.Hour()) || !has(c.month, int(t.Month())) {
		return false
	}
	domOK := has(c.dom, t.Day())
	dowOK := has(c.dow, int(t.Weekday()))
	if c.domStar || c.dowStar {
		return domOK && dowOK
	}
	return domOK || dowOK
}

// Next returns the first matching minute strictly after t, or the zero time
// if nothing matches within a year (e.g. "0 0 31 2 *").
func (c *CronExpr) Next(t time.Time) time.Time {
	t = t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(1, 0, 1)
	for t.Before(limit) {
		if c.Matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func has(set uint64, v int) bool {
	return set&(1<<uint(v)) != 0
}

func parseField(field string, min, max int) (uint64, error) {
	var set uint64
	for _, part := range strings.Split(field, ",") {
		bits, err := parsePart(part, min, max)
		if err != nil {
			return 0, err
		}
		set |= bits
	}
	return set, nil
}

func parsePart(part string, min, max int) (uint64, error) {
	rangePart, stepPart, hasStep := strings.Cut(part, "/")
	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepPart)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step: %s", part)
		}
		step = n
	}

	lo, hi := min, max
	switch {
	case rangePart == "*":
	case strings.Contains(rangePart, "-"):
		a, b, _ := strings.Cut(rangePart, "-")
		var err error
		if lo, err = atoiIn(a, min, max); err != nil {
			return 0, fmt.Errorf("invalid range start: %w", err)
		}
		if hi, err = atoiIn(b, min, max); err != nil {
			return 0, fmt.Errorf("invalid range end: %w", err)
		}
		if lo > hi {
			return 0, fmt.Errorf("invalid range: %s", rangePart)
		}
	default:
		v, err := atoiIn(rangePart, min, max)
		if err != nil {
			return 0, err
		}
		if hasStep {
			return 0, fmt.Errorf("step needs a range: %s", part)
		}
		lo, hi = v, v
	}

	var set uint64
	for i := lo; i <= hi; i += step {
		set |= 1 << uint(i)
	}
	return set, nil
}

func atoiIn(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, min, max)
	}
	return v, nil
}
