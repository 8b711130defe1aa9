package tsplot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	// ErrNoData is returned when neither x nor y values are supplied.
	ErrNoData = errors.New("must provide at least 1 of x or y values")

	// ErrBadLayout is returned when the subplot layout is not at least 1x1.
	ErrBadLayout = errors.New("rows and cols must be at least 1")
)

// Options configures BuildPlot. XValues and YValues accept the containers
// supported by TimesFrom and FloatsFrom respectively.
type Options struct {
	// XValues is a sample of x values, used to derive the date range that
	// matches the data: its length sets the period count, its first element
	// the default start time, and its spacing the default frequency.
	XValues any

	// YValues is a sample of y values, used for the period count when
	// XValues is absent.
	YValues any

	// Rows and Cols set the subplot layout. Both must be at least 1.
	Rows int
	Cols int

	// Frequency overrides the inferred step size, e.g. "5min" or "1D".
	Frequency string

	// CustomFormat overrides the span-derived tick label layout.
	CustomFormat string

	// StartTime overrides the start of the generated date range.
	StartTime time.Time

	// Palette names a registered palette. Defaults to "pong7".
	Palette string
}

// Figure is a renderable chart: a grid of formatted subplots sharing one
// generated date range, plus the palette used to color series.
type Figure struct {
	// Plots is the rows x cols subplot grid.
	Plots [][]*plot.Plot

	// DateRange is the generated time axis, one timestamp per period.
	DateRange []time.Time

	rows, cols    int
	width, height vg.Length
	palette       Palette
	seriesCount   int
}

// BuildPlot assembles a formatted figure for time-series data. It resolves
// the date range from the options (explicit values take priority, then
// values derived from x, then defaults), formats every subplot axis with
// the resulting AxisPlan, and returns the figure ready for series to be
// added via Line.
func BuildPlot(opts Options) (*Figure, error) {
	if opts.XValues == nil && opts.YValues == nil {
		return nil, ErrNoData
	}
	if opts.Rows < 1 || opts.Cols < 1 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrBadLayout, opts.Rows, opts.Cols)
	}

	xTimes, err := TimesFrom(opts.XValues)
	if err != nil {
		return nil, fmt.Errorf("x values: %w", err)
	}
	yFloats, err := FloatsFrom(opts.YValues)
	if err != nil {
		return nil, fmt.Errorf("y values: %w", err)
	}

	periods := len(yFloats)
	if opts.XValues != nil {
		periods = len(xTimes)
	}
	if periods == 0 {
		return nil, ErrNoData
	}

	// User-provided frequency takes priority, then inferred, then default.
	freq := DefaultFrequency
	if opts.Frequency != "" {
		freq, err = ParseFrequency(opts.Frequency)
		if err != nil {
			return nil, err
		}
	} else if inferred, ok := InferFrequency(xTimes); ok {
		freq = inferred
	}

	start := opts.StartTime
	if start.IsZero() {
		if len(xTimes) > 0 {
			start = xTimes[0]
		} else {
			start = time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}

	dateRange := DateRange(start, freq, periods)

	plan, err := FormatAxis(dateRange, opts.CustomFormat)
	if err != nil {
		return nil, err
	}

	paletteName := opts.Palette
	if paletteName == "" {
		paletteName = DefaultPaletteName
	}
	palette, err := LookupPalette(paletteName)
	if err != nil {
		return nil, err
	}

	plots := make([][]*plot.Plot, opts.Rows)
	for i := range plots {
		plots[i] = make([]*plot.Plot, opts.Cols)
		for j := range plots[i] {
			p := plot.New()
			plan.Apply(p)
			plots[i][j] = p
		}
	}

	return &Figure{
		Plots:     plots,
		DateRange: dateRange,
		rows:      opts.Rows,
		cols:      opts.Cols,
		width:     vg.Length(14+2*opts.Cols) * vg.Inch,
		height:    vg.Length(6+2*opts.Rows) * vg.Inch,
		palette:   palette,
	}, nil
}

// Line plots ys against the figure's date range on the given subplot,
// using the next palette color. If ys is longer than the date range, the
// extra values are not plotted.
func (f *Figure) Line(row, col int, ys []float64) (*plotter.Line, error) {
	if row < 0 || row >= f.rows || col < 0 || col >= f.cols {
		return nil, fmt.Errorf("subplot (%d,%d) out of range for %dx%d figure", row, col, f.rows, f.cols)
	}

	n := Min(len(ys), len(f.DateRange))
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i].X = epochSeconds(f.DateRange[i])
		pts[i].Y = ys[i]
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = f.palette.Color(f.seriesCount)
	f.seriesCount++

	f.Plots[row][col].Add(line)
	return line, nil
}

// WritePNG renders the whole subplot grid as a PNG.
func (f *Figure) WritePNG(w io.Writer) error {
	img := vgimg.New(f.width, f.height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      f.rows,
		Cols:      f.cols,
		PadX:      vg.Points(12),
		PadY:      vg.Points(12),
		PadTop:    vg.Points(8),
		PadBottom: vg.Points(8),
		PadLeft:   vg.Points(8),
		PadRight:  vg.Points(8),
	}

	canvases := plot.Align(f.Plots, tiles, dc)
	for i, row := range f.Plots {
		for j, p := range row {
			p.Draw(canvases[i][j])
		}
	}

	png := vgimg.PngCanvas{Canvas: img}
	_, err := png.WriteTo(w)
	return err
}

// Save renders the figure as a PNG file.
func (f *Figure) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := f.WritePNG(file); err != nil {
		return err
	}
	return file.Close()
}
