// Package beep provides a speaker [audio.Sink] backed by the gopxl/beep
// playback library. Samples written to the sink are appended to a rolling
// mono buffer that a persistent streamer drains into the host output device.
package beep

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/careercompass/vector/pkg/audio"
)

// Sink renders 24 kHz mono samples through the default output device.
type Sink struct {
	mu     sync.Mutex
	buf    []float32
	closed bool
}

// NewSink initializes the speaker at the wire rate and starts the underlying
// stream. The speaker buffer is one tenth of a second, matching the latency
// the playback scheduler tolerates.
func NewSink() (*Sink, error) {
	sr := beep.SampleRate(audio.WireSampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("beep: speaker init: %w", err)
	}
	s := &Sink{}
	speaker.Play(s)
	return s, nil
}

// Write queues samples for rendering. Returns an error after Close.
func (s *Sink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("beep: sink closed")
	}
	s.buf = append(s.buf, samples...)
	return nil
}

// Stream implements beep.Streamer. Mono samples are duplicated into both
// output channels; an empty buffer streams silence so the device stays open.
func (s *Sink) Stream(out [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}

	n := min(len(out), len(s.buf))
	for i := range n {
		v := float64(s.buf[i])
		out[i][0] = v
		out[i][1] = v
	}
	s.buf = s.buf[n:]

	for i := n; i < len(out); i++ {
		out[i][0] = 0
		out[i][1] = 0
	}
	return len(out), true
}

// Err implements beep.Streamer.
func (s *Sink) Err() error { return nil }

// Close stops streaming and releases the device. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	speaker.Clear()
	return nil
}
