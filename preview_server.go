package tsplot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

const previewChannelBuffer = 10000

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>tsplot preview</title></head>
<body style="margin:0;background:#ffffff">
<img id="chart" src="/chart.png" style="max-width:100%">
<script>
const img = document.getElementById("chart");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.binaryType = "arraybuffer";
let pending = false;
ws.onmessage = () => {
  if (pending) return;
  pending = true;
  setTimeout(() => { img.src = "/chart.png?t=" + Date.now(); pending = false; }, 1000);
};
</script>
</body>
</html>`

// PreviewServer serves a live-updating rendering of the data flowing
// through a SampleHub: an HTML page, the current chart as PNG, stream
// metadata, and a websocket pushing samples in the wire format.
type PreviewServer struct {
	hub      *SampleHub
	addr     string
	metadata Metadata
	mux      *http.ServeMux
	logger   logrus.FieldLogger
}

func NewPreviewServer(hub *SampleHub, addr string, metadata Metadata) *PreviewServer {
	s := &PreviewServer{
		hub:      hub,
		addr:     addr,
		metadata: metadata,
		mux:      http.NewServeMux(),
		logger:   logrus.WithField("tag", "PreviewServer"),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/chart.png", s.handleChart)
	s.mux.HandleFunc("/metadata", s.handleMetadata)
	s.mux.HandleFunc("/ws", s.handleWebSocket)

	return s
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("Content-Type", "text/html")
	fmt.Fprint(w, indexHTML)
}

// handleChart renders the hub's current buffer into a one-shot figure.
func (s *PreviewServer) handleChart(w http.ResponseWriter, req *http.Request) {
	samples := s.hub.Snapshot()
	if len(samples) == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	xs := make([]float64, len(samples))
	for i, sample := range samples {
		xs[i] = sample.X
	}

	fig, err := BuildPlot(Options{
		XValues:      xs,
		Rows:         1,
		Cols:         1,
		Frequency:    s.metadata.ChartOptions.Frequency,
		CustomFormat: s.metadata.ChartOptions.CustomFormat,
		Palette:      s.metadata.ChartOptions.Palette,
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to build preview figure")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	p := fig.Plots[0][0]
	p.Title.Text = s.metadata.ChartOptions.Title
	p.X.Label.Text = s.metadata.ChartOptions.XLabel
	p.Y.Label.Text = s.metadata.ChartOptions.YLabel

	for col := 0; col < len(samples[0].Ys); col++ {
		ys := make([]float64, len(samples))
		for i, sample := range samples {
			if col < len(sample.Ys) {
				ys[i] = sample.Ys[col]
			}
		}
		if _, err := fig.Line(0, 0, ys); err != nil {
			s.logger.WithError(err).Error("failed to plot series")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Add("Content-Type", "image/png")
	if err := fig.WritePNG(w); err != nil {
		s.logger.WithError(err).Warn("failed to write chart PNG")
	}
}

func (s *PreviewServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.metadata)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
	}
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx := req.Context()
	ctx = c.CloseRead(ctx) // We only ever write to the client.

	if err := s.writeMessage(ctx, c, MessageTypeMetadata, s.metadata); err != nil {
		s.logger.WithError(err).Warn("failed to send metadata, closing websocket")
		c.Close(websocket.StatusInternalError, "metadata write failed")
		return
	}

	channel := make(chan Sample, previewChannelBuffer)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case sample, open := <-channel:
				if !open {
					s.logger.Warn("sample channel closed, closing websocket")
					c.Close(websocket.StatusNormalClosure, "channel closed")
					return
				}

				if sample.streamEnded {
					end := StreamEndMessage{}
					if sample.streamErr != nil {
						end.Error = true
						end.Msg = sample.streamErr.Error()
					}
					if err := s.writeMessage(ctx, c, MessageTypeStreamEnd, end); err != nil {
						s.logger.Warn("websocket write failed and closed")
					}
					continue
				}

				batch := SamplesMessage{Width: uint32(len(sample.Ys)), Samples: []Sample{sample}}
				if err := s.writeMessage(ctx, c, MessageTypeSamples, batch); err != nil {
					// The websocket closed under us; nothing left to send.
					s.logger.Warn("websocket write failed and closed")
					return
				}
			case <-ctx.Done():
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	s.hub.RegisterChannel(ctx, channel)

	wg.Wait()
	s.hub.DeregisterChannel(ctx, channel)
	close(channel)
}

func (s *PreviewServer) writeMessage(ctx context.Context, c *websocket.Conn, msgType byte, payload any) error {
	frame, err := EncodeWireMessage(WireMessage{
		Envelope: Envelope{Version: WireVersion, Type: msgType},
		Payload:  payload,
	})
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageBinary, frame)
}

// Run starts the HTTP server, optionally opening the local browser at the
// preview page first.
func (s *PreviewServer) Run(openBrowserFirst bool) error {
	url := fmt.Sprintf("http://%s", s.addr)
	logrus.Infof("starting preview server at %s", url)
	if openBrowserFirst {
		openBrowser(url)
	}
	return http.ListenAndServe(s.addr, s.mux)
}
