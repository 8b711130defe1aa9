package tsplot

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// chanSource feeds scripted samples to a hub. Closing the channel ends the
// stream with finalErr (nil means a clean EOF).
type chanSource struct {
	ch       chan Sample
	finalErr error
}

func (s *chanSource) Read(ctx context.Context) (Sample, error) {
	sample, ok := <-s.ch
	if !ok {
		if s.finalErr != nil {
			return Sample{}, s.finalErr
		}
		return Sample{}, io.EOF
	}
	return sample, nil
}

func (s *chanSource) ColumnNames() []string {
	return []string{"y"}
}

func receiveSample(t *testing.T, c <-chan Sample) Sample {
	t.Helper()
	select {
	case sample := <-c:
		return sample
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sample")
		return Sample{}
	}
}

func TestSampleHubBroadcastsLiveSamples(t *testing.T) {
	source := &chanSource{ch: make(chan Sample)}
	hub := NewSampleHub(source, 16)

	client := make(chan Sample, 16)
	hub.RegisterChannel(context.Background(), client)

	hub.Start(context.Background())

	want := Sample{X: 1, Ys: []float64{10}}
	source.ch <- want

	got := receiveSample(t, client)
	if got.X != want.X {
		t.Fatalf("got x=%v, want %v", got.X, want.X)
	}

	close(source.ch)
	hub.Wait()

	end := receiveSample(t, client)
	if !end.streamEnded {
		t.Fatal("expected a stream-end sample after EOF")
	}
	if end.streamErr != nil {
		t.Fatalf("unexpected stream error: %v", end.streamErr)
	}
}

func TestSampleHubReplaysBufferOnRegister(t *testing.T) {
	source := &chanSource{ch: make(chan Sample)}
	hub := NewSampleHub(source, 16)
	hub.Start(context.Background())

	for i := 0; i < 3; i++ {
		source.ch <- Sample{X: float64(i), Ys: []float64{float64(i * 10)}}
	}
	close(source.ch)
	hub.Wait()

	// A client connecting after the stream ended still gets the history,
	// including the stream-end marker.
	client := make(chan Sample, 16)
	hub.RegisterChannel(context.Background(), client)

	for i := 0; i < 3; i++ {
		got := receiveSample(t, client)
		if got.X != float64(i) {
			t.Fatalf("replay sample %d has x=%v", i, got.X)
		}
	}
	if end := receiveSample(t, client); !end.streamEnded {
		t.Fatal("expected stream-end marker at the end of the replay")
	}
}

func TestSampleHubBufferEviction(t *testing.T) {
	source := &chanSource{ch: make(chan Sample)}
	hub := NewSampleHub(source, 2)
	hub.Start(context.Background())

	for i := 0; i < 5; i++ {
		source.ch <- Sample{X: float64(i)}
	}
	close(source.ch)
	hub.Wait()

	snapshot := hub.Snapshot()
	// Capacity 2, and the stream-end marker occupies one slot.
	if len(snapshot) != 2 {
		t.Fatalf("snapshot has %d samples, want 2", len(snapshot))
	}
	if snapshot[0].X != 4 {
		t.Fatalf("oldest retained sample has x=%v, want 4", snapshot[0].X)
	}
	if !snapshot[1].streamEnded {
		t.Fatal("newest retained sample should be the stream-end marker")
	}
}

func TestSampleHubDeregister(t *testing.T) {
	source := &chanSource{ch: make(chan Sample)}
	hub := NewSampleHub(source, 16)
	hub.Start(context.Background())

	client := make(chan Sample, 16)
	hub.RegisterChannel(context.Background(), client)
	hub.DeregisterChannel(context.Background(), client)

	source.ch <- Sample{X: 1}
	close(source.ch)
	hub.Wait()

	select {
	case sample := <-client:
		t.Fatalf("deregistered channel received %+v", sample)
	default:
	}
}

func TestSampleHubReportsStreamError(t *testing.T) {
	wantErr := errors.New("read failed")
	source := &chanSource{ch: make(chan Sample), finalErr: wantErr}
	hub := NewSampleHub(source, 16)

	if ended, _ := hub.Ended(); ended {
		t.Fatal("hub reports ended before the stream finished")
	}

	hub.Start(context.Background())
	close(source.ch)
	hub.Wait()

	ended, err := hub.Ended()
	if !ended {
		t.Fatal("hub does not report ended after the stream finished")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, want %v", err, wantErr)
	}
}
