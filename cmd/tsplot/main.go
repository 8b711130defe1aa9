package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MichaelVerdegaal/tsplot"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type options struct {
	Output       string   `short:"o" long:"output" default:"tsplot.png" description:"Output PNG path"`
	Title        string   `short:"t" long:"title" description:"Chart title"`
	XLabel       string   `long:"x-label" description:"X axis label"`
	YLabel       string   `long:"y-label" description:"Y axis label"`
	Columns      []string `short:"c" long:"column" description:"Series label, repeat once per column"`
	XIndex       int      `short:"x" long:"x-index" default:"-1" description:"Column index holding the x value (timestamp string or unix seconds); -1 timestamps rows as they are read"`
	Csv          bool     `long:"csv" description:"Parse input as strict CSV instead of relaxed whitespace/comma splitting"`
	Frequency    string   `short:"f" long:"frequency" description:"X-axis step size override, e.g. 5min or 1D"`
	CustomFormat string   `long:"format" description:"Custom x-axis label layout (Go time layout)"`
	Start        string   `long:"start" description:"Start timestamp override"`
	Palette      string   `long:"palette" default:"pong7" description:"Series color palette"`
	Serve        string   `long:"serve" description:"Serve a live preview at this address (e.g. localhost:5274) instead of writing a PNG"`
	NoBrowser    bool     `long:"no-browser" description:"Do not open the browser when serving a preview"`
	Buffer       int      `long:"buffer" default:"10000" description:"Number of samples kept for the live preview"`
	Debug        bool     `long:"debug" description:"Enable debug logging"`
}

func main() {
	opts := options{}
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	if opts.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	var rows tsplot.RowReader
	if opts.Csv {
		rows = tsplot.NewCsvRowReader(os.Stdin)
	} else {
		rows = tsplot.NewRelaxedRowReader(os.Stdin)
	}

	reader := &tsplot.SampleReader{
		Input:                  rows,
		XIndex:                 opts.XIndex,
		Columns:                opts.Columns,
		ExpectExactColumnCount: len(opts.Columns) > 0,
	}

	if opts.Serve != "" {
		serve(opts, reader)
		return
	}

	if err := renderOnce(opts, reader); err != nil {
		logrus.WithError(err).Fatal("failed to render chart")
	}
}

func serve(opts options, reader tsplot.SampleSource) {
	hub := tsplot.NewSampleHub(reader, opts.Buffer)
	hub.Start(context.Background())

	metadata := tsplot.Metadata{
		WindowSize:   opts.Buffer,
		XIsTimestamp: opts.XIndex < 0,
		ChartOptions: tsplot.ChartOptions{
			Title:        opts.Title,
			XLabel:       opts.XLabel,
			YLabel:       opts.YLabel,
			Columns:      opts.Columns,
			Palette:      opts.Palette,
			Frequency:    opts.Frequency,
			CustomFormat: opts.CustomFormat,
		},
	}

	server := tsplot.NewPreviewServer(hub, opts.Serve, metadata)
	if err := server.Run(!opts.NoBrowser); err != nil {
		logrus.WithError(err).Fatal("preview server exited")
	}
}

func renderOnce(opts options, reader tsplot.SampleSource) error {
	samples, err := tsplot.ReadAllSamples(context.Background(), reader)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples read from stdin")
	}

	var start time.Time
	if opts.Start != "" {
		start, err = tsplot.ParseTime(opts.Start)
		if err != nil {
			return err
		}
	}

	plotOpts := tsplot.Options{
		Rows:         1,
		Cols:         1,
		Frequency:    opts.Frequency,
		CustomFormat: opts.CustomFormat,
		StartTime:    start,
		Palette:      opts.Palette,
	}

	width := len(samples[0].Ys)
	if opts.XIndex >= 0 {
		xs := make([]float64, len(samples))
		for i, sample := range samples {
			xs[i] = sample.X
		}
		plotOpts.XValues = xs
	} else {
		// Without an x column the rows only establish the period count; the
		// library fills in the start time and frequency defaults.
		ys := make([]float64, len(samples))
		for i, sample := range samples {
			if len(sample.Ys) > 0 {
				ys[i] = sample.Ys[0]
			}
		}
		plotOpts.YValues = ys
	}

	fig, err := tsplot.BuildPlot(plotOpts)
	if err != nil {
		return err
	}

	p := fig.Plots[0][0]
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel

	for col := 0; col < width; col++ {
		ys := make([]float64, len(samples))
		for i, sample := range samples {
			if col < len(sample.Ys) {
				ys[i] = sample.Ys[col]
			}
		}
		line, err := fig.Line(0, 0, ys)
		if err != nil {
			return err
		}
		if col < len(opts.Columns) {
			p.Legend.Add(opts.Columns[col], line)
		}
	}

	if err := fig.Save(opts.Output); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"samples": len(samples),
		"series":  width,
		"output":  opts.Output,
	}).Info("chart written")
	return nil
}
