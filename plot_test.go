package tsplot

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestBuildPlotDefaults(t *testing.T) {
	// y-only input: nothing to infer from, so the range is 5 daily steps
	// starting January 1st of the current year.
	fig, err := BuildPlot(Options{
		YValues: []float64{0, 1, 2, 3, 4},
		Rows:    1,
		Cols:    1,
	})
	if err != nil {
		t.Fatalf("BuildPlot returned error: %v", err)
	}

	wantStart := time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	if len(fig.DateRange) != 5 {
		t.Fatalf("got %d timestamps, want 5", len(fig.DateRange))
	}
	if !fig.DateRange[0].Equal(wantStart) {
		t.Fatalf("range starts at %v, want %v", fig.DateRange[0], wantStart)
	}
	for i, at := range fig.DateRange {
		want := wantStart.AddDate(0, 0, i)
		if !at.Equal(want) {
			t.Fatalf("index %d: got %v, want %v", i, at, want)
		}
	}
}

func TestBuildPlotInfersFromXValues(t *testing.T) {
	fig, err := BuildPlot(Options{
		XValues: []string{"2024-01-01 00:00", "2024-01-01 00:05", "2024-01-01 00:10"},
		Rows:    1,
		Cols:    1,
	})
	if err != nil {
		t.Fatalf("BuildPlot returned error: %v", err)
	}

	want := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC),
	}
	if len(fig.DateRange) != len(want) {
		t.Fatalf("got %d timestamps, want %d", len(fig.DateRange), len(want))
	}
	for i := range want {
		if !fig.DateRange[i].Equal(want[i]) {
			t.Fatalf("index %d: got %v, want %v", i, fig.DateRange[i], want[i])
		}
	}
}

func TestBuildPlotPriorities(t *testing.T) {
	t.Run("explicit frequency beats inference", func(t *testing.T) {
		fig, err := BuildPlot(Options{
			XValues:   []string{"2024-01-01 00:00", "2024-01-01 00:05", "2024-01-01 00:10"},
			Rows:      1,
			Cols:      1,
			Frequency: "1h",
		})
		if err != nil {
			t.Fatalf("BuildPlot returned error: %v", err)
		}
		want := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
		if !fig.DateRange[1].Equal(want) {
			t.Fatalf("second timestamp = %v, want %v", fig.DateRange[1], want)
		}
	})

	t.Run("explicit start beats first x value", func(t *testing.T) {
		start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
		fig, err := BuildPlot(Options{
			XValues:   []string{"2024-01-01", "2024-01-02", "2024-01-03"},
			Rows:      1,
			Cols:      1,
			StartTime: start,
		})
		if err != nil {
			t.Fatalf("BuildPlot returned error: %v", err)
		}
		if !fig.DateRange[0].Equal(start) {
			t.Fatalf("range starts at %v, want %v", fig.DateRange[0], start)
		}
	})
}

func TestBuildPlotValidation(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		_, err := BuildPlot(Options{Rows: 1, Cols: 1})
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("got %v, want ErrNoData", err)
		}
	})

	t.Run("zero rows", func(t *testing.T) {
		_, err := BuildPlot(Options{YValues: []float64{1, 2}, Rows: 0, Cols: 1})
		if !errors.Is(err, ErrBadLayout) {
			t.Fatalf("got %v, want ErrBadLayout", err)
		}
	})

	t.Run("zero cols", func(t *testing.T) {
		_, err := BuildPlot(Options{YValues: []float64{1, 2}, Rows: 1, Cols: 0})
		if !errors.Is(err, ErrBadLayout) {
			t.Fatalf("got %v, want ErrBadLayout", err)
		}
	})

	t.Run("unsupported y container", func(t *testing.T) {
		_, err := BuildPlot(Options{YValues: "not a slice", Rows: 1, Cols: 1})
		if !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("got %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("bad frequency token", func(t *testing.T) {
		_, err := BuildPlot(Options{YValues: []float64{1, 2}, Rows: 1, Cols: 1, Frequency: "sometimes"})
		if err == nil {
			t.Fatal("expected error for bad frequency token")
		}
	})

	t.Run("unknown palette", func(t *testing.T) {
		_, err := BuildPlot(Options{YValues: []float64{1, 2}, Rows: 1, Cols: 1, Palette: "nope"})
		if err == nil {
			t.Fatal("expected error for unknown palette")
		}
	})
}

func TestBuildPlotSubplotGrid(t *testing.T) {
	fig, err := BuildPlot(Options{
		YValues: []float64{1, 2, 3},
		Rows:    2,
		Cols:    3,
	})
	if err != nil {
		t.Fatalf("BuildPlot returned error: %v", err)
	}
	if len(fig.Plots) != 2 {
		t.Fatalf("got %d rows, want 2", len(fig.Plots))
	}
	for i, row := range fig.Plots {
		if len(row) != 3 {
			t.Fatalf("row %d has %d plots, want 3", i, len(row))
		}
		for j, p := range row {
			if p == nil {
				t.Fatalf("plot (%d,%d) is nil", i, j)
			}
			if _, ok := p.X.Tick.Marker.(DateTicks); !ok {
				t.Fatalf("plot (%d,%d) x ticker is %T, want DateTicks", i, j, p.X.Tick.Marker)
			}
		}
	}
}

func TestFigureLine(t *testing.T) {
	fig, err := BuildPlot(Options{
		YValues: []float64{1, 2, 3},
		Rows:    1,
		Cols:    1,
	})
	if err != nil {
		t.Fatalf("BuildPlot returned error: %v", err)
	}

	t.Run("series get distinct palette colors", func(t *testing.T) {
		first, err := fig.Line(0, 0, []float64{1, 2, 3})
		if err != nil {
			t.Fatalf("Line returned error: %v", err)
		}
		second, err := fig.Line(0, 0, []float64{3, 2, 1})
		if err != nil {
			t.Fatalf("Line returned error: %v", err)
		}
		if first.Color == second.Color {
			t.Fatal("consecutive series have the same color")
		}
	})

	t.Run("out of range subplot", func(t *testing.T) {
		if _, err := fig.Line(1, 0, []float64{1}); err == nil {
			t.Fatal("expected error for out-of-range subplot")
		}
	})
}

func TestFigureWritePNG(t *testing.T) {
	fig, err := BuildPlot(Options{
		YValues: []float64{1, 2, 3, 4},
		Rows:    1,
		Cols:    2,
	})
	if err != nil {
		t.Fatalf("BuildPlot returned error: %v", err)
	}
	if _, err := fig.Line(0, 0, []float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("Line returned error: %v", err)
	}
	if _, err := fig.Line(0, 1, []float64{4, 3, 2, 1}); err != nil {
		t.Fatalf("Line returned error: %v", err)
	}

	var buf bytes.Buffer
	if err := fig.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG returned error: %v", err)
	}

	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatal("output does not look like a PNG")
	}
}
