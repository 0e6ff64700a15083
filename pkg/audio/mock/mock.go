// Package mock provides in-memory [audio.Source] and [audio.Sink]
// implementations for tests. The source replays a fixed set of frames; the
// sink records everything written to it.
package mock

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Read/Write after the mock device is closed.
var ErrClosed = errors.New("mock: device closed")

// Source is an [audio.Source] that replays queued sample blocks. Once the
// queue is drained, Read blocks until Close (mimicking a silent device) or,
// with EOFWhenDrained set, returns io.EOF.
type Source struct {
	// Rate is the sample rate reported by Open. Defaults to 48000.
	Rate int

	// OpenErr, when non-nil, is returned by Open to simulate a missing or
	// permission-denied device.
	OpenErr error

	// EOFWhenDrained makes Read return io.EOF after the last queued block
	// instead of blocking.
	EOFWhenDrained bool

	mu     sync.Mutex
	cond   *sync.Cond
	blocks [][]float32
	closed bool
}

// NewSource returns a Source that replays the given blocks in order.
func NewSource(blocks ...[]float32) *Source {
	s := &Source{blocks: blocks}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push appends another block for Read to deliver.
func (s *Source) Push(block []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, block)
	s.cond.Signal()
}

func (s *Source) Open(_ context.Context) (int, error) {
	if s.OpenErr != nil {
		return 0, s.OpenErr
	}
	if s.Rate == 0 {
		s.Rate = 48000
	}
	return s.Rate, nil
}

func (s *Source) Read(buf []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.blocks) == 0 && !s.closed {
		if s.EOFWhenDrained {
			return 0, io.EOF
		}
		s.cond.Wait()
	}
	if s.closed {
		return 0, ErrClosed
	}
	block := s.blocks[0]
	s.blocks = s.blocks[1:]
	return copy(buf, block), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

// Sink is an [audio.Sink] that records every write.
type Sink struct {
	mu     sync.Mutex
	writes [][]float32
	closed bool
}

// NewSink returns an empty recording sink.
func NewSink() *Sink { return &Sink{} }

func (s *Sink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)
	s.writes = append(s.writes, cp)
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Writes returns a snapshot of all sample blocks written so far.
func (s *Sink) Writes() [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]float32, len(s.writes))
	copy(out, s.writes)
	return out
}
