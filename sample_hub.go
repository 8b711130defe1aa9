package tsplot

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// SampleHub reads samples from a source in a single goroutine, keeps the
// most recent ones in a ring buffer, and fans new samples out to registered
// channels. The preview server registers one channel per websocket client.
type SampleHub struct {
	input SampleSource

	mutex sync.Mutex
	wg    sync.WaitGroup

	// Whether the input stream has ended.
	streamEnded atomic.Bool
	err         error // The error from run(), if any. Read only after streamEnded is true.

	// Channels of connected clients. These must be buffered; a blocked
	// channel blocks the whole hub.
	liveChannels []chan<- Sample

	// The most recent samples, replayed to every newly registered channel.
	buffer *ThreadUnsafeRing[Sample]

	samplesEmitted int

	logger logrus.FieldLogger
}

func NewSampleHub(input SampleSource, bufferCapacity int) *SampleHub {
	return &SampleHub{
		input:        input,
		liveChannels: make([]chan<- Sample, 0),
		buffer:       NewRing[Sample](bufferCapacity),
		logger:       logrus.WithField("tag", "SampleHub"),
	}
}

func (h *SampleHub) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := h.run(ctx)

		h.err = err

		// All variables read after the stream ends must be written before
		// this store, as the atomic is what releases them to other
		// goroutines.
		h.streamEnded.Store(true)

		h.cacheAndBroadcast(Sample{
			streamEnded: true,
			streamErr:   err,
		})

		logger := h.logger.WithField("samplesEmitted", h.samplesEmitted)
		if err != nil {
			logger = logger.WithError(err)
		}
		logger.Info("sample stream ended")
	}()
}

func (h *SampleHub) Wait() {
	h.wg.Wait()
}

// Ended reports whether the input stream has finished, and with what error.
func (h *SampleHub) Ended() (bool, error) {
	if !h.streamEnded.Load() {
		return false, nil
	}
	return true, h.err
}

// Snapshot returns the buffered samples in order.
func (h *SampleHub) Snapshot() []Sample {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.buffer.ReadAllOrdered()
}

// RegisterChannel adds a channel to receive live samples. The buffered
// history is replayed into the channel before it joins the live set, under
// the hub mutex, so a new client never misses a sample between the replay
// and the first live update.
func (h *SampleHub) RegisterChannel(ctx context.Context, c chan<- Sample) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, sample := range h.buffer.ReadAllOrdered() {
		c <- sample
	}

	h.liveChannels = append(h.liveChannels, c)
	h.logger.WithField("channels", len(h.liveChannels)).Info("registered channel")
}

// DeregisterChannel removes a previously registered channel. The channel
// must not be closed until this returns, or the hub may panic sending to
// it.
func (h *SampleHub) DeregisterChannel(ctx context.Context, c chan<- Sample) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.liveChannels = Filter(h.liveChannels, func(channel chan<- Sample) bool {
		return channel != c
	})
	h.logger.WithField("channels", len(h.liveChannels)).Info("deregistered channel")
}

func (h *SampleHub) run(ctx context.Context) error {
	for {
		sample, err := h.input.Read(ctx)
		if err == errSkipRow {
			continue
		} else if err == io.EOF {
			// The source ended. Channels stay open because the buffered
			// data should still be served to clients connecting later.
			return nil
		} else if err != nil {
			return err
		}

		h.cacheAndBroadcast(sample)
	}
}

func (h *SampleHub) cacheAndBroadcast(sample Sample) {
	h.samplesEmitted++

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.buffer.Push(sample)
	for _, c := range h.liveChannels {
		c <- sample
	}
}
