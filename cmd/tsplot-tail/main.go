// tsplot-tail connects to a running tsplot preview server and prints the
// sample stream to stdout as CSV. Useful for teeing live data into other
// tools without restarting the source process.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/MichaelVerdegaal/tsplot"
	"nhooyr.io/websocket"
)

// Config holds the configuration for the tail client.
type Config struct {
	ServerURL string
	Output    io.Writer
	Logger    *slog.Logger
}

// Tailer reads from a preview server's websocket and outputs CSV data.
type Tailer struct {
	config    Config
	csvWriter *csv.Writer

	wroteHeader bool
}

func NewTailer(config Config) *Tailer {
	return &Tailer{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
	}
}

// Connect establishes the websocket connection and processes messages
// until the stream ends.
func (t *Tailer) Connect() error {
	u, err := url.Parse(t.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	t.config.Logger.Info("Connecting to websocket", "url", u.String())

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				t.config.Logger.Info("Connection closed normally")
				break
			}
			t.config.Logger.Error("Error reading message", "error", err)
			break
		}

		if err := t.processMessage(messageData); err != nil {
			if err == io.EOF {
				t.config.Logger.Info("Stream ended")
				break
			}
			t.config.Logger.Error("Error processing message", "error", err)
		}
	}

	t.csvWriter.Flush()
	return t.csvWriter.Error()
}

func (t *Tailer) processMessage(messageData []byte) error {
	msg, err := tsplot.DecodeWireMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch msg.Envelope.Type {
	case tsplot.MessageTypeSamples:
		samples, ok := msg.Payload.(tsplot.SamplesMessage)
		if !ok {
			return fmt.Errorf("invalid SAMPLES message payload type: %T", msg.Payload)
		}
		return t.processSamples(samples)

	case tsplot.MessageTypeMetadata:
		metadata, ok := msg.Payload.(tsplot.Metadata)
		if !ok {
			return fmt.Errorf("invalid METADATA message payload type: %T", msg.Payload)
		}
		t.config.Logger.Debug("Received metadata", "metadata", metadata)

	case tsplot.MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(tsplot.StreamEndMessage)
		if !ok {
			return fmt.Errorf("invalid STREAM_END message payload type: %T", msg.Payload)
		}
		if streamEnd.Error {
			t.config.Logger.Error("Stream ended with error", "message", streamEnd.Msg)
		} else {
			t.config.Logger.Info("Stream ended successfully", "message", streamEnd.Msg)
		}
		return io.EOF

	default:
		t.config.Logger.Warn("Unknown message type", "type", fmt.Sprintf("0x%02x", msg.Envelope.Type))
	}

	return nil
}

func (t *Tailer) processSamples(msg tsplot.SamplesMessage) error {
	if !t.wroteHeader {
		header := []string{"x"}
		for i := uint32(0); i < msg.Width; i++ {
			header = append(header, fmt.Sprintf("y%d", i))
		}
		if err := t.csvWriter.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		t.wroteHeader = true
	}

	for _, sample := range msg.Samples {
		row := make([]string, 0, len(sample.Ys)+1)
		row = append(row, strconv.FormatFloat(sample.X, 'g', -1, 64))
		for _, y := range sample.Ys {
			row = append(row, strconv.FormatFloat(y, 'g', -1, 64))
		}
		if err := t.csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	t.csvWriter.Flush()
	return t.csvWriter.Error()
}

func main() {
	var serverURL = flag.String("url", "http://localhost:5274", "URL of the tsplot preview server")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	config := Config{
		ServerURL: *serverURL,
		Output:    os.Stdout,
		Logger:    logger,
	}

	tailer := NewTailer(config)
	if err := tailer.Connect(); err != nil {
		config.Logger.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
}
