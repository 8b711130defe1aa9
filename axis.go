package tsplot

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// X values on the time axis are unix seconds (fractional for sub-second
// precision), matching what SampleReader emits. All tick math happens in
// UTC.

const (
	xAxisMinTicks = 5
	xAxisMaxTicks = 20
	yAxisMaxTicks = 10
)

const day = 24 * time.Hour

// SpanBucket classifies the total span of a plotted range. Buckets are
// half-open: inclusive on the lower bound, exclusive on the upper bound. A
// zero span lands in the smallest bucket.
type SpanBucket int

const (
	SpanSubMinute SpanBucket = iota
	SpanMinuteToHour
	SpanHourToDay
	SpanDayToWeek
	SpanWeekToMonth
	SpanMonthToQuarter
	SpanQuarterToYear
	SpanYearToTriennium
	SpanBeyond
)

// ClassifySpan returns the bucket a span falls into.
func ClassifySpan(span time.Duration) SpanBucket {
	switch {
	case span < time.Minute:
		return SpanSubMinute
	case span < time.Hour:
		return SpanMinuteToHour
	case span < day:
		return SpanHourToDay
	case span < 7*day:
		return SpanDayToWeek
	case span < 30*day:
		return SpanWeekToMonth
	case span < 90*day:
		return SpanMonthToQuarter
	case span < 365*day:
		return SpanQuarterToYear
	case span < 1095*day:
		return SpanYearToTriennium
	default:
		return SpanBeyond
	}
}

// Layout returns the bucket's default tick label layout. Spans of a day
// and up all get full dates; what changes below that is how much
// intra-day detail the labels carry.
func (b SpanBucket) Layout() string {
	switch b {
	case SpanSubMinute:
		return "15:04:05"
	case SpanMinuteToHour:
		return "02 15:04"
	case SpanHourToDay:
		return "01-02 15:04"
	default:
		return "2006-01-02"
	}
}

// AxisPlan is the computed tick policy for one plot: a label layout for the
// time axis, a ticker per axis, and the gridline style. It is computed
// fresh per call and never cached.
type AxisPlan struct {
	// Layout is the Go time layout used for time-axis tick labels.
	Layout string

	XTicker plot.Ticker
	YTicker plot.Ticker

	// Vertical gridline style attached to the major time-axis ticks.
	// Cosmetic; callers may override before Apply.
	GridStyle draw.LineStyle
}

// FormatAxis computes the tick policy for a range of timestamps. A
// non-empty customLayout overrides the span-derived label layout but the
// ticker selection still runs. The range must be non-empty and in
// ascending order; a single-timestamp range is treated as a zero span.
func FormatAxis(dateRange []time.Time, customLayout string) (AxisPlan, error) {
	if len(dateRange) == 0 {
		return AxisPlan{}, fmt.Errorf("empty date range")
	}
	if err := checkAscending(dateRange); err != nil {
		return AxisPlan{}, err
	}

	span := dateRange[len(dateRange)-1].Sub(dateRange[0])
	layout := customLayout
	if layout == "" {
		layout = ClassifySpan(span).Layout()
	}

	return AxisPlan{
		Layout:  layout,
		XTicker: DateTicks{MinTicks: xAxisMinTicks, MaxTicks: xAxisMaxTicks, Layout: layout},
		YTicker: FixedTicks{N: yAxisMaxTicks},
		GridStyle: draw.LineStyle{
			Color:  color.RGBA{R: 0xb2, G: 0xb2, B: 0xb2, A: 0xff},
			Width:  vg.Points(0.5),
			Dashes: []vg.Length{vg.Points(3), vg.Points(3)},
		},
	}, nil
}

// Apply attaches the plan to a plot: tickers, rotated time-axis labels so
// long date labels don't overlap, and vertical gridlines on the major
// ticks.
func (ap AxisPlan) Apply(p *plot.Plot) {
	p.X.Tick.Marker = ap.XTicker
	p.Y.Tick.Marker = ap.YTicker

	p.X.Tick.Label.Rotation = -math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XLeft
	p.X.Tick.Label.YAlign = draw.YTop

	grid := plotter.NewGrid()
	grid.Vertical = ap.GridStyle
	grid.Horizontal.Color = nil
	p.Add(grid)
}

// DateTicks is an adaptive time-axis ticker. It walks a ladder of natural
// calendar intervals (seconds up through years) and picks the densest one
// that stays at or under MaxTicks. If no interval lands between MinTicks
// and MaxTicks, or the range is degenerate (zero span, reversed, NaN/Inf,
// as with an empty plot), it hands over to a FixedTicks capped at the same
// maximum, so a chart never renders with an unreadable density of ticks.
// Spans too short for even the densest calendar interval (under a few
// seconds) reach the minimum through that same fallback.
type DateTicks struct {
	// MinTicks and MaxTicks bound the number of ticks to aim for.
	// Zero values default to 5 and 20.
	MinTicks int
	MaxTicks int

	// Layout formats the tick labels. Defaults to "2006-01-02".
	Layout string
}

var _ plot.Ticker = DateTicks{}

func (dt DateTicks) minTicks() int {
	if dt.MinTicks <= 0 {
		return xAxisMinTicks
	}
	return dt.MinTicks
}

func (dt DateTicks) maxTicks() int {
	if dt.MaxTicks <= 0 {
		return xAxisMaxTicks
	}
	return dt.MaxTicks
}

func (dt DateTicks) layout() string {
	if dt.Layout == "" {
		return "2006-01-02"
	}
	return dt.Layout
}

// Ticks implements plot.Ticker.
func (dt DateTicks) Ticks(min, max float64) []plot.Tick {
	ticks, err := dt.dateTicks(min, max)
	if err != nil || len(ticks) < dt.minTicks() || len(ticks) > dt.maxTicks() {
		fallback := FixedTicks{
			N: dt.maxTicks(),
			Formatter: func(v float64) string {
				return timeFromEpoch(v).Format(dt.layout())
			},
		}
		return fallback.Ticks(min, max)
	}
	return ticks
}

// Fixed-duration intervals tried from densest to sparsest. Spans beyond
// the reach of the 2-week step move on to month and year intervals.
var dateTickSteps = []time.Duration{
	time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second, 15 * time.Second, 30 * time.Second,
	time.Minute, 2 * time.Minute, 5 * time.Minute, 10 * time.Minute, 15 * time.Minute, 30 * time.Minute,
	time.Hour, 2 * time.Hour, 3 * time.Hour, 6 * time.Hour, 12 * time.Hour,
	day, 2 * day, 7 * day, 14 * day,
}

func (dt DateTicks) dateTicks(min, max float64) ([]plot.Tick, error) {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return nil, fmt.Errorf("non-finite axis range [%v, %v]", min, max)
	}
	if max <= min {
		return nil, fmt.Errorf("degenerate axis range [%v, %v]", min, max)
	}

	layout := dt.layout()

	for _, step := range dateTickSteps {
		secs := step.Seconds()
		first := math.Ceil(min/secs) * secs
		last := math.Floor(max/secs) * secs
		if last < first {
			continue
		}
		count := int(math.Round((last-first)/secs)) + 1
		if count > dt.maxTicks() {
			continue
		}

		ticks := make([]plot.Tick, 0, count)
		for i := 0; i < count; i++ {
			v := first + float64(i)*secs
			ticks = append(ticks, plot.Tick{Value: v, Label: timeFromEpoch(v).Format(layout)})
		}
		return ticks, nil
	}

	tmin := timeFromEpoch(min)
	tmax := timeFromEpoch(max)

	for _, months := range []int{1, 2, 3, 6} {
		if ticks, ok := dt.monthTicks(tmin, tmax, months); ok {
			return ticks, nil
		}
	}

	// Years in 1-2-5 decades: 1, 2, 5, 10, 20, 50, ...
	for exp := 0; exp < 9; exp++ {
		for _, base := range []int{1, 2, 5} {
			years := base * pow10(exp)
			if ticks, ok := dt.yearTicks(tmin, tmax, years); ok {
				return ticks, nil
			}
		}
	}

	return nil, fmt.Errorf("no suitable tick interval for range [%v, %v]", tmin, tmax)
}

// monthTicks places ticks on month starts every `months` months, starting
// from the first month boundary at or after tmin.
func (dt DateTicks) monthTicks(tmin, tmax time.Time, months int) ([]plot.Tick, bool) {
	cursor := time.Date(tmin.Year(), tmin.Month(), 1, 0, 0, 0, 0, time.UTC)
	if cursor.Before(tmin) {
		cursor = cursor.AddDate(0, 1, 0)
	}
	// Snap to a multiple of the month stride within the year.
	for (int(cursor.Month())-1)%months != 0 {
		cursor = cursor.AddDate(0, 1, 0)
	}

	layout := dt.layout()
	var ticks []plot.Tick
	for !cursor.After(tmax) {
		ticks = append(ticks, plot.Tick{
			Value: epochSeconds(cursor),
			Label: cursor.Format(layout),
		})
		if len(ticks) > dt.maxTicks() {
			return nil, false
		}
		cursor = cursor.AddDate(0, months, 0)
	}
	return ticks, len(ticks) > 0
}

// yearTicks places ticks on January 1st of years divisible by `years`.
func (dt DateTicks) yearTicks(tmin, tmax time.Time, years int) ([]plot.Tick, bool) {
	year := tmin.Year()
	if rem := mod(year, years); rem != 0 {
		year += years - rem
	}
	cursor := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if cursor.Before(tmin) {
		cursor = time.Date(year+years, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	layout := dt.layout()
	var ticks []plot.Tick
	for !cursor.After(tmax) {
		ticks = append(ticks, plot.Tick{
			Value: epochSeconds(cursor),
			Label: cursor.Format(layout),
		})
		if len(ticks) > dt.maxTicks() {
			return nil, false
		}
		cursor = cursor.AddDate(years, 0, 0)
	}
	return ticks, len(ticks) > 0
}

// FixedTicks targets at most N evenly distributed ticks with no calendar
// semantics, like a fixed-count numeric locator. It is the fallback for
// the time axis and the unconditional policy for the value axis.
type FixedTicks struct {
	// N is the maximum number of ticks. Zero defaults to 10.
	N int

	// Formatter renders a tick value as its label. Defaults to compact
	// numeric formatting.
	Formatter func(float64) string
}

var _ plot.Ticker = FixedTicks{}

// Ticks implements plot.Ticker.
func (ft FixedTicks) Ticks(min, max float64) []plot.Tick {
	n := ft.N
	if n <= 0 {
		n = yAxisMaxTicks
	}
	format := ft.Formatter
	if format == nil {
		format = formatFloatTick
	}

	if max <= min || n == 1 {
		return []plot.Tick{{Value: min, Label: format(min)}}
	}

	step := niceStep((max - min) / float64(n-1))
	first := math.Ceil(min/step) * step

	var ticks []plot.Tick
	for v := first; v <= max+step*1e-9 && len(ticks) < n; v += step {
		ticks = append(ticks, plot.Tick{Value: v, Label: format(v)})
	}
	if len(ticks) == 0 {
		// The range is narrower than one nice step; mark the midpoint.
		mid := min + (max-min)/2
		ticks = append(ticks, plot.Tick{Value: mid, Label: format(mid)})
	}
	return ticks
}

// niceStep rounds raw up to the nearest 1, 2, 2.5 or 5 times a power of
// ten.
func niceStep(raw float64) float64 {
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	norm := raw / mag
	switch {
	case norm <= 1:
		return mag
	case norm <= 2:
		return 2 * mag
	case norm <= 2.5:
		return 2.5 * mag
	case norm <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func formatFloatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func pow10(exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= 10
	}
	return result
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
