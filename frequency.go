package tsplot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FrequencyUnit is the calendar unit of a sampling frequency.
type FrequencyUnit int

const (
	UnitSecond FrequencyUnit = iota
	UnitMinute
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
	UnitYear
)

var unitTokens = map[FrequencyUnit]string{
	UnitSecond: "S",
	UnitMinute: "min",
	UnitHour:   "H",
	UnitDay:    "D",
	UnitWeek:   "W",
	UnitMonth:  "M",
	UnitYear:   "Y",
}

// Frequency is a sampling step size, e.g. "5min" or "1D". The zero value is
// not a valid frequency; use ParseFrequency or InferFrequency to obtain one.
type Frequency struct {
	Count int
	Unit  FrequencyUnit
}

// DefaultFrequency is used when the caller supplies no frequency and none
// can be inferred from the x values.
var DefaultFrequency = Frequency{Count: 1, Unit: UnitDay}

func (f Frequency) String() string {
	return fmt.Sprintf("%d%s", f.Count, unitTokens[f.Unit])
}

// IsZero reports whether f is the zero (unknown) frequency.
func (f Frequency) IsZero() bool {
	return f.Count == 0
}

// AddTo returns t advanced by n steps of f. Month and year steps use
// calendar arithmetic; everything else is a fixed duration.
func (f Frequency) AddTo(t time.Time, n int) time.Time {
	switch f.Unit {
	case UnitMonth:
		return t.AddDate(0, f.Count*n, 0)
	case UnitYear:
		return t.AddDate(f.Count*n, 0, 0)
	default:
		return t.Add(time.Duration(n) * f.duration())
	}
}

func (f Frequency) duration() time.Duration {
	switch f.Unit {
	case UnitSecond:
		return time.Duration(f.Count) * time.Second
	case UnitMinute:
		return time.Duration(f.Count) * time.Minute
	case UnitHour:
		return time.Duration(f.Count) * time.Hour
	case UnitDay:
		return time.Duration(f.Count) * 24 * time.Hour
	case UnitWeek:
		return time.Duration(f.Count) * 7 * 24 * time.Hour
	default:
		// Calendar units have no fixed duration; callers must go through
		// AddTo for those.
		return 0
	}
}

var unitAliases = map[string]FrequencyUnit{
	"s": UnitSecond, "sec": UnitSecond, "second": UnitSecond, "seconds": UnitSecond,
	"m": UnitMinute, "t": UnitMinute, "min": UnitMinute, "minute": UnitMinute, "minutes": UnitMinute,
	"h": UnitHour, "hr": UnitHour, "hour": UnitHour, "hours": UnitHour,
	"d": UnitDay, "day": UnitDay, "days": UnitDay,
	"w": UnitWeek, "week": UnitWeek, "weeks": UnitWeek,
	"mo": UnitMonth, "month": UnitMonth, "months": UnitMonth,
	"y": UnitYear, "yr": UnitYear, "year": UnitYear, "years": UnitYear,
}

// ParseFrequency parses a frequency token such as "5min", "1D", "2 hours"
// or "W" (count defaults to 1). The bare tokens "S" and "M" keep their
// pandas meanings (second and month); all other matching is
// case-insensitive.
func ParseFrequency(token string) (Frequency, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Frequency{}, fmt.Errorf("empty frequency token")
	}

	digits := 0
	for digits < len(trimmed) && trimmed[digits] >= '0' && trimmed[digits] <= '9' {
		digits++
	}

	count := 1
	if digits > 0 {
		parsed, err := strconv.Atoi(trimmed[:digits])
		if err != nil || parsed < 1 {
			return Frequency{}, fmt.Errorf("invalid frequency count in %q", token)
		}
		count = parsed
	}

	unitPart := strings.TrimSpace(trimmed[digits:])

	// Case-sensitive single letters first: pandas uses "S" for seconds and
	// "M" for months, which collide with "s"/"m" case-insensitively.
	switch unitPart {
	case "S":
		return Frequency{Count: count, Unit: UnitSecond}, nil
	case "M":
		return Frequency{Count: count, Unit: UnitMonth}, nil
	}

	unit, ok := unitAliases[strings.ToLower(unitPart)]
	if !ok {
		return Frequency{}, fmt.Errorf("unrecognized frequency unit %q", unitPart)
	}
	return Frequency{Count: count, Unit: unit}, nil
}

// InferFrequency tries to detect a single dominant regular step size from a
// sample of timestamps. It accepts any container TimesFrom accepts. It
// returns (zero, false) when no inference is possible: fewer than 3 points,
// duplicate timestamps, irregular spacing, or input that cannot be parsed
// as timestamps at all. This is the one place where bad input degrades
// silently instead of being reported.
func InferFrequency(values any) (Frequency, bool) {
	times, err := TimesFrom(values)
	if err != nil {
		return Frequency{}, false
	}
	if len(times) < 3 {
		return Frequency{}, false
	}
	if err := checkAscending(times); err != nil {
		return Frequency{}, false
	}

	// Calendar-regular sequences (monthly, yearly) have unequal durations
	// between samples, so check those before the fixed-duration path.
	if f, ok := inferCalendarStep(times); ok {
		return f, true
	}

	step := times[1].Sub(times[0])
	if step <= 0 {
		return Frequency{}, false
	}
	for i := 2; i < len(times); i++ {
		if times[i].Sub(times[i-1]) != step {
			return Frequency{}, false
		}
	}

	return frequencyFromDuration(step)
}

// inferCalendarStep detects month- and year-regular sequences, i.e. a
// constant AddDate step between consecutive samples.
func inferCalendarStep(times []time.Time) (Frequency, bool) {
	for _, candidate := range []Frequency{{Count: 1, Unit: UnitYear}, {Count: 1, Unit: UnitMonth}} {
		for count := 1; count <= 12; count++ {
			f := Frequency{Count: count, Unit: candidate.Unit}
			matched := true
			for i := 1; i < len(times); i++ {
				if !f.AddTo(times[i-1], 1).Equal(times[i]) {
					matched = false
					break
				}
			}
			if matched {
				// A 12-month step is just a year.
				if f.Unit == UnitMonth && f.Count%12 == 0 {
					return Frequency{Count: f.Count / 12, Unit: UnitYear}, true
				}
				return f, true
			}
		}
	}
	return Frequency{}, false
}

// frequencyFromDuration expresses a fixed step as the largest unit that
// divides it evenly.
func frequencyFromDuration(step time.Duration) (Frequency, bool) {
	const day = 24 * time.Hour
	switch {
	case step%(7*day) == 0:
		return Frequency{Count: int(step / (7 * day)), Unit: UnitWeek}, true
	case step%day == 0:
		return Frequency{Count: int(step / day), Unit: UnitDay}, true
	case step%time.Hour == 0:
		return Frequency{Count: int(step / time.Hour), Unit: UnitHour}, true
	case step%time.Minute == 0:
		return Frequency{Count: int(step / time.Minute), Unit: UnitMinute}, true
	case step%time.Second == 0:
		return Frequency{Count: int(step / time.Second), Unit: UnitSecond}, true
	default:
		// Sub-second steps are outside the supported token space.
		return Frequency{}, false
	}
}

// DateRange generates periods timestamps starting at start and advancing by
// freq, inclusive of start and exclusive of the would-be next step.
func DateRange(start time.Time, freq Frequency, periods int) []time.Time {
	if periods <= 0 {
		return nil
	}
	times := make([]time.Time, periods)
	for i := range times {
		times[i] = freq.AddTo(start, i)
	}
	return times
}
