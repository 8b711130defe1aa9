package tsplot

// ChartOptions is the user-facing chart configuration carried alongside the
// data, so preview clients can label and format what they receive.
type ChartOptions struct {
	Title        string
	XLabel       string
	YLabel       string
	Columns      []string
	Palette      string
	Frequency    string `json:",omitempty"`
	CustomFormat string `json:",omitempty"`
}

// Metadata describes a live preview stream.
type Metadata struct {
	WindowSize   int
	XIsTimestamp bool
	ChartOptions ChartOptions
}
