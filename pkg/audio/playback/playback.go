// Package playback renders inbound audio chunks as continuous, gap-free,
// non-overlapping sound. The [Scheduler] owns the output sink and a single
// monotonically advancing cursor: each chunk is scheduled to begin at the
// later of "now" and the end of the previous chunk, which serializes output
// regardless of arrival jitter and prevents overlap when chunks arrive
// faster than real time.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/careercompass/vector/pkg/audio"
)

// DefaultTolerance is how close the output clock must be to the cursor for a
// finished chunk to count as "playback caught up" (assistant done speaking).
const DefaultTolerance = 100 * time.Millisecond

// Clock abstracts the output timeline so tests can drive the scheduler
// deterministically. The production implementation is the system clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled call, as returned by [Clock.AfterFunc].
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the real-time [Clock].
func SystemClock() Clock { return systemClock{} }

// Entry describes one scheduled chunk: when it starts and how long it plays.
type Entry struct {
	Start    time.Time
	Duration time.Duration
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithClock substitutes the scheduling clock. Used in tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithTolerance overrides [DefaultTolerance].
func WithTolerance(d time.Duration) Option {
	return func(s *Scheduler) { s.tolerance = d }
}

// WithSpeakingFunc registers a callback invoked with true when the first
// chunk of a burst is enqueued and with false once playback has caught up to
// the cursor. Invoked from internal goroutines; must not block.
func WithSpeakingFunc(fn func(bool)) Option {
	return func(s *Scheduler) { s.onSpeaking = fn }
}

// WithChunkDoneFunc registers a callback invoked each time a scheduled chunk
// finishes playing, before any speaking-state transition. Invoked from
// internal goroutines; must not block. Chunks cancelled by Close do not fire.
func WithChunkDoneFunc(fn func()) Option {
	return func(s *Scheduler) { s.onChunkDone = fn }
}

// Scheduler schedules decoded PCM chunks back-to-back on an [audio.Sink].
// Safe for concurrent use. Create one per session; Close releases the sink.
type Scheduler struct {
	sink        audio.Sink
	clock       Clock
	tolerance   time.Duration
	onSpeaking  func(bool)
	onChunkDone func()

	mu        sync.Mutex
	nextStart time.Time
	speaking  bool
	closed    bool
	timers    map[int]Timer
	timerSeq  int
}

// New creates a Scheduler writing to sink. The cursor is initialized to the
// clock's current time, so the first chunk plays immediately.
func New(sink audio.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:      sink,
		clock:     systemClock{},
		tolerance: DefaultTolerance,
		timers:    make(map[int]Timer),
	}
	for _, o := range opts {
		o(s)
	}
	s.nextStart = s.clock.Now()
	return s
}

// Enqueue converts an integer PCM chunk to float samples, schedules it to
// begin at max(now, cursor), and advances the cursor by the chunk's
// duration. Returns the computed start time and duration; after Close the
// chunk is discarded and the zero Entry is returned.
func (s *Scheduler) Enqueue(chunk []int16) Entry {
	if len(chunk) == 0 {
		return Entry{}
	}
	samples := audio.Int16ToFloat32(chunk)
	dur := time.Duration(len(chunk)) * time.Second / audio.WireSampleRate

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Entry{}
	}

	now := s.clock.Now()
	start := now
	if s.nextStart.After(now) {
		start = s.nextStart
	}
	s.nextStart = start.Add(dur)

	startedSpeaking := !s.speaking
	s.speaking = true

	s.scheduleLocked(start.Sub(now), func() {
		if err := s.sink.Write(samples); err != nil {
			slog.Warn("playback sink write failed", "err", err)
		}
	})
	s.scheduleLocked(s.nextStart.Sub(now), s.chunkDone)
	cb := s.onSpeaking
	s.mu.Unlock()

	if startedSpeaking && cb != nil {
		cb(true)
	}
	return Entry{Start: start, Duration: dur}
}

// scheduleLocked registers a cancellable timer. Caller holds s.mu.
func (s *Scheduler) scheduleLocked(d time.Duration, f func()) {
	if d < 0 {
		d = 0
	}
	id := s.timerSeq
	s.timerSeq++
	s.timers[id] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			f()
		}
	})
}

// chunkDone runs when a scheduled chunk finishes. If the clock has caught up
// to the cursor (within tolerance) the assistant is done speaking; otherwise
// more audio is already queued and the speaking state is kept.
func (s *Scheduler) chunkDone() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	done := s.onChunkDone
	if !s.speaking {
		s.mu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	if s.clock.Now().Before(s.nextStart.Add(-s.tolerance)) {
		s.mu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	s.speaking = false
	cb := s.onSpeaking
	s.mu.Unlock()

	if done != nil {
		done()
	}
	if cb != nil {
		cb(false)
	}
}

// Speaking reports whether queued audio is still rendering.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Close cancels all pending chunks and releases the sink. No sink writes or
// speaking callbacks occur after Close returns. Idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	return s.sink.Close()
}
