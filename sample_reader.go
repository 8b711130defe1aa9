package tsplot

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// The input pipeline starts with an io.Reader (likely stdin). A RowReader
// splits the stream into string columns, and the SampleReader turns the
// columns into a Sample: a point on the time axis plus one y value per
// series. Samples are then either collected for a one-shot figure or fed
// to a SampleHub for live preview.

var errSkipRow = errors.New("skip this row")

// RowReader returns one row of raw string columns per Read call.
type RowReader interface {
	Read(context.Context) ([]string, error)
}

// Sample is one observation: an x position in unix seconds and the y value
// of every series at that position.
type Sample struct {
	X  float64
	Ys []float64

	streamEnded bool
	streamErr   error
}

// SampleSource yields parsed samples.
type SampleSource interface {
	Read(context.Context) (Sample, error)
	ColumnNames() []string
}

// CsvRowReader reads strictly conforming CSV rows. For looser input
// (columns separated by one or more spaces), use RelaxedRowReader.
type CsvRowReader struct {
	csvReader *csv.Reader

	lineCount int
}

func NewCsvRowReader(input io.Reader) *CsvRowReader {
	reader := csv.NewReader(input)
	reader.FieldsPerRecord = -1
	return &CsvRowReader{csvReader: reader}
}

func (r *CsvRowReader) Read(ctx context.Context) ([]string, error) {
	row, err := r.csvReader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}

	r.lineCount++

	if err != nil {
		logger := logrus.WithFields(logrus.Fields{
			"tag":     "CsvRow",
			"lineNum": r.lineCount,
		})

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logger.WithError(err).Debug("unable to parse CSV, ignoring...")
			return nil, errSkipRow
		}
		logger.WithError(err).Error("unable to read CSV")
		return nil, err
	}

	return row, nil
}

// RelaxedRowReader splits lines on commas or any run of spaces and tabs.
// This is the default input mode.
type RelaxedRowReader struct {
	scanner *bufio.Scanner
}

func NewRelaxedRowReader(input io.Reader) *RelaxedRowReader {
	return &RelaxedRowReader{scanner: bufio.NewScanner(input)}
}

var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

func (r *RelaxedRowReader) Read(ctx context.Context) ([]string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			logrus.WithField("tag", "RelaxedRow").WithError(err).Error("unable to read line")
			return nil, err
		}
		return nil, io.EOF
	}

	line := r.scanner.Text()

	// Return only non-empty columns.
	return Filter(relaxedSplitter.Split(line, -1), func(value string) bool {
		return len(value) > 0
	}), nil
}

// NowX generates the current unix timestamp in seconds. Micro precision is
// used because time.Now().Unix() would truncate to whole seconds.
func NowX() float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

// SampleReader converts raw rows into Samples. Unrecognized or unparsable
// rows are skipped and logged as warnings; the stream itself never aborts
// on a bad row.
type SampleReader struct {
	// Input provides the raw rows (CsvRowReader or RelaxedRowReader).
	Input RowReader

	// XIndex is the column holding the x value, parsed as a timestamp
	// string or fractional unix seconds. If negative, X is generated via
	// XGenerator instead and every column is a y value.
	XIndex int

	// XGenerator produces x values when XIndex < 0. Defaults to NowX.
	XGenerator func() float64

	// Columns labels the y columns.
	Columns []string

	// ExpectExactColumnCount skips rows whose y count differs from
	// len(Columns).
	ExpectExactColumnCount bool
}

var _ SampleSource = (*SampleReader)(nil)

func (r *SampleReader) Read(ctx context.Context) (Sample, error) {
	row, err := r.Input.Read(ctx)
	if err != nil {
		return Sample{}, err
	}

	logger := logrus.WithFields(logrus.Fields{
		"tag": "SampleReader",
		"row": row,
	})

	sample := Sample{}

	for i, value := range row {
		if i == r.XIndex {
			x, err := parseXValue(strings.TrimSpace(value))
			if err != nil {
				logger.Warn("cannot parse x column, ignoring...")
				return Sample{}, errSkipRow
			}
			sample.X = x
			continue
		}

		y, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			logger.Warn("cannot parse float, ignoring...")
			return Sample{}, errSkipRow
		}
		sample.Ys = append(sample.Ys, y)
	}

	if r.ExpectExactColumnCount && len(r.Columns) != len(sample.Ys) {
		logger.Warnf("expected column count (%d) is not observed (%d)", len(r.Columns), len(sample.Ys))
		return Sample{}, errSkipRow
	}

	if r.XIndex < 0 {
		generate := r.XGenerator
		if generate == nil {
			generate = NowX
		}
		sample.X = generate()
	}

	return sample, nil
}

func (r *SampleReader) ColumnNames() []string {
	return r.Columns
}

// parseXValue interprets an x column as fractional unix seconds or as a
// timestamp string.
func parseXValue(value string) (float64, error) {
	if x, err := strconv.ParseFloat(value, 64); err == nil {
		return x, nil
	}
	t, err := ParseTime(value)
	if err != nil {
		return 0, err
	}
	return epochSeconds(t), nil
}

// ReadAllSamples drains a source until EOF, returning every parsed sample.
// Skipped rows are not counted.
func ReadAllSamples(ctx context.Context, source SampleSource) ([]Sample, error) {
	var samples []Sample
	for {
		sample, err := source.Read(ctx)
		if err == errSkipRow {
			continue
		} else if err == io.EOF {
			return samples, nil
		} else if err != nil {
			return samples, err
		}
		samples = append(samples, sample)
	}
}
