package tsplot

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Callers hand us timestamps in whatever container their data pipeline
// happens to produce: parsed time.Time values, raw strings, unix epochs as
// floats or ints, or a mixed []any of the above. Everything funnels through
// TimesFrom before any of the axis or frequency logic runs, so the rest of
// the package only ever sees one canonical ordered representation.

var (
	// ErrUnsupportedType is returned when an input container (or one of its
	// elements) cannot be interpreted as timestamps or numbers.
	ErrUnsupportedType = errors.New("unsupported container type")

	// ErrUnorderedTimestamps is returned when an explicitly supplied
	// timestamp range is not in ascending order. We never reorder caller
	// data silently.
	ErrUnorderedTimestamps = errors.New("timestamps are not in ascending order")
)

// Layouts tried in order when parsing timestamp strings.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a single timestamp string by trying the supported
// layouts in order.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", value)
}

// TimesFrom converts any supported timestamp container into a []time.Time.
// Supported containers: nil, []time.Time, []string, []float64, []int64 and
// []int (unix seconds), and []any holding a mix of those element types. A
// nil input yields a nil slice and no error.
func TimesFrom(values any) ([]time.Time, error) {
	switch v := values.(type) {
	case nil:
		return nil, nil
	case []time.Time:
		return append([]time.Time(nil), v...), nil
	case []string:
		times := make([]time.Time, 0, len(v))
		for _, s := range v {
			t, err := ParseTime(s)
			if err != nil {
				return nil, err
			}
			times = append(times, t)
		}
		return times, nil
	case []float64:
		times := make([]time.Time, 0, len(v))
		for _, f := range v {
			times = append(times, timeFromEpoch(f))
		}
		return times, nil
	case []int64:
		times := make([]time.Time, 0, len(v))
		for _, i := range v {
			times = append(times, time.Unix(i, 0).UTC())
		}
		return times, nil
	case []int:
		times := make([]time.Time, 0, len(v))
		for _, i := range v {
			times = append(times, time.Unix(int64(i), 0).UTC())
		}
		return times, nil
	case []any:
		times := make([]time.Time, 0, len(v))
		for _, elem := range v {
			t, err := timeFromElement(elem)
			if err != nil {
				return nil, err
			}
			times = append(times, t)
		}
		return times, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, values)
	}
}

func timeFromElement(elem any) (time.Time, error) {
	switch e := elem.(type) {
	case time.Time:
		return e, nil
	case string:
		return ParseTime(e)
	case float64:
		return timeFromEpoch(e), nil
	case int64:
		return time.Unix(e, 0).UTC(), nil
	case int:
		return time.Unix(int64(e), 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: element %T", ErrUnsupportedType, elem)
	}
}

// timeFromEpoch converts fractional unix seconds to a time.Time, preserving
// sub-second precision.
func timeFromEpoch(seconds float64) time.Time {
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

// FloatsFrom converts any supported numeric container into a []float64.
// Supported containers: nil, []float64, []float32, []int, []int64, and
// []any holding a mix of those element types.
func FloatsFrom(values any) ([]float64, error) {
	switch v := values.(type) {
	case nil:
		return nil, nil
	case []float64:
		return append([]float64(nil), v...), nil
	case []float32:
		floats := make([]float64, 0, len(v))
		for _, f := range v {
			floats = append(floats, float64(f))
		}
		return floats, nil
	case []int:
		floats := make([]float64, 0, len(v))
		for _, i := range v {
			floats = append(floats, float64(i))
		}
		return floats, nil
	case []int64:
		floats := make([]float64, 0, len(v))
		for _, i := range v {
			floats = append(floats, float64(i))
		}
		return floats, nil
	case []any:
		floats := make([]float64, 0, len(v))
		for _, elem := range v {
			switch e := elem.(type) {
			case float64:
				floats = append(floats, e)
			case float32:
				floats = append(floats, float64(e))
			case int:
				floats = append(floats, float64(e))
			case int64:
				floats = append(floats, float64(e))
			default:
				return nil, fmt.Errorf("%w: element %T", ErrUnsupportedType, elem)
			}
		}
		return floats, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, values)
	}
}

// checkAscending verifies that the sequence is in non-decreasing order.
func checkAscending(times []time.Time) error {
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			return fmt.Errorf("%w: index %d (%v) precedes index %d (%v)",
				ErrUnorderedTimestamps, i, times[i], i-1, times[i-1])
		}
	}
	return nil
}
