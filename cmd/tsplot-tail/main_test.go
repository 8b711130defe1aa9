package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MichaelVerdegaal/tsplot"
)

func newTestTailer(output io.Writer) *Tailer {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return NewTailer(Config{
		ServerURL: "http://localhost:0",
		Output:    output,
		Logger:    logger,
	})
}

func encodeFrame(t *testing.T, msgType byte, payload any) []byte {
	t.Helper()
	frame, err := tsplot.EncodeWireMessage(tsplot.WireMessage{
		Envelope: tsplot.Envelope{Version: tsplot.WireVersion, Type: msgType},
		Payload:  payload,
	})
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	return frame
}

func TestTailerProcessSamples(t *testing.T) {
	var output bytes.Buffer
	tailer := newTestTailer(&output)

	first := encodeFrame(t, tsplot.MessageTypeSamples, tsplot.SamplesMessage{
		Width:   2,
		Samples: []tsplot.Sample{{X: 1, Ys: []float64{10.5, 20.3}}},
	})
	second := encodeFrame(t, tsplot.MessageTypeSamples, tsplot.SamplesMessage{
		Width:   2,
		Samples: []tsplot.Sample{{X: 2, Ys: []float64{11.2, 21.1}}},
	})

	if err := tailer.processMessage(first); err != nil {
		t.Fatalf("processMessage failed: %v", err)
	}
	if err := tailer.processMessage(second); err != nil {
		t.Fatalf("processMessage failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	want := []string{
		"x,y0,y1",
		"1,10.5,20.3",
		"2,11.2,21.1",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	// The header is written lazily, once, before the first data row.
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestTailerProcessMessageStreamEnd(t *testing.T) {
	var output bytes.Buffer
	tailer := newTestTailer(&output)

	clean := encodeFrame(t, tsplot.MessageTypeStreamEnd, tsplot.StreamEndMessage{})
	if err := tailer.processMessage(clean); err != io.EOF {
		t.Fatalf("got %v, want io.EOF for clean stream end", err)
	}

	failed := encodeFrame(t, tsplot.MessageTypeStreamEnd, tsplot.StreamEndMessage{
		Error: true,
		Msg:   "source exploded",
	})
	if err := tailer.processMessage(failed); err != io.EOF {
		t.Fatalf("got %v, want io.EOF for failed stream end", err)
	}

	if output.Len() != 0 {
		t.Fatalf("stream end wrote CSV output: %q", output.String())
	}
}

func TestTailerProcessMessageMetadata(t *testing.T) {
	var output bytes.Buffer
	tailer := newTestTailer(&output)

	frame := encodeFrame(t, tsplot.MessageTypeMetadata, tsplot.Metadata{
		WindowSize: 100,
		ChartOptions: tsplot.ChartOptions{
			Title:   "Test Data",
			Columns: []string{"Series1", "Series2"},
		},
	})
	if err := tailer.processMessage(frame); err != nil {
		t.Fatalf("processMessage failed for metadata: %v", err)
	}
	if output.Len() != 0 {
		t.Fatalf("metadata wrote CSV output: %q", output.String())
	}
}

func TestTailerProcessMessageRejectsGarbage(t *testing.T) {
	var output bytes.Buffer
	tailer := newTestTailer(&output)

	if err := tailer.processMessage([]byte{0xff, 0xff}); err == nil {
		t.Fatal("expected error for an undecodable frame")
	}
}

// mockSampleSource is a test implementation of tsplot.SampleSource.
type mockSampleSource struct {
	samples []tsplot.Sample
	columns []string
	index   int
}

func (m *mockSampleSource) Read(ctx context.Context) (tsplot.Sample, error) {
	if m.index >= len(m.samples) {
		return tsplot.Sample{}, io.EOF
	}
	sample := m.samples[m.index]
	m.index++
	return sample, nil
}

func (m *mockSampleSource) ColumnNames() []string {
	return m.columns
}

func TestTailerEndToEnd(t *testing.T) {
	// Find available port
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	source := &mockSampleSource{
		samples: []tsplot.Sample{
			{X: 1, Ys: []float64{10.5, 20.3}},
			{X: 2, Ys: []float64{11.2, 21.1}},
			{X: 3, Ys: []float64{12.8, 19.7}},
		},
		columns: []string{"Series1", "Series2"},
	}

	hub := tsplot.NewSampleHub(source, 100)
	hub.Start(context.Background())
	hub.Wait()

	metadata := tsplot.Metadata{
		WindowSize: 100,
		ChartOptions: tsplot.ChartOptions{
			Title:   "Test Data",
			Columns: source.columns,
		},
	}
	server := tsplot.NewPreviewServer(hub, "localhost:"+strconv.Itoa(port), metadata)
	go func() {
		server.Run(false)
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)

	var output bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	tailer := NewTailer(Config{
		ServerURL: "http://localhost:" + strconv.Itoa(port),
		Output:    &output,
		Logger:    logger,
	})

	done := make(chan error, 1)
	go func() {
		done <- tailer.Connect()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Tailer.Connect() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Tailer.Connect() timed out")
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	want := []string{
		"x,y0,y1",
		"1,10.5,20.3",
		"2,11.2,21.1",
		"3,12.8,19.7",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
