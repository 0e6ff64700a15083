// Package capture owns the microphone input stream. An [Engine] wraps an
// [audio.Source] and invokes a frame callback at a fixed block size for as
// long as capture is active. The engine is the sole reader of its source.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/careercompass/vector/pkg/audio"
)

// DefaultBlockSize is the number of samples delivered per frame callback.
const DefaultBlockSize = 4096

// levelLogInterval is how many frames pass between diagnostic RMS log lines.
const levelLogInterval = 100

// ErrUnavailable is returned by [Engine.Start] when the input device cannot
// be acquired (permission denied or no device present).
var ErrUnavailable = errors.New("capture: audio input unavailable")

// FrameFunc receives one captured frame. It is invoked from the engine's
// internal goroutine and must not block; the frame's sample slice is only
// valid for the duration of the call.
type FrameFunc func(frame audio.Frame)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithBlockSize overrides the frame block size. Values ≤ 0 keep the default.
func WithBlockSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.blockSize = n
		}
	}
}

// Engine delivers fixed-size frames from an exclusive audio source.
// Create one per session; Start may be called at most once.
type Engine struct {
	src       audio.Source
	blockSize int

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates an Engine reading from src. The engine takes ownership of the
// source: Stop closes it.
func New(src audio.Source, opts ...Option) *Engine {
	e := &Engine{
		src:       src,
		blockSize: DefaultBlockSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start acquires the source and begins delivering frames to onFrame until
// [Engine.Stop] is called. Mid-stream read failures are reported through
// onErr (which may be nil) and end the capture loop. Returns an error
// wrapping [ErrUnavailable] if the device cannot be opened.
func (e *Engine) Start(ctx context.Context, onFrame FrameFunc, onErr func(error)) error {
	e.mu.Lock()
	if e.started || e.stopped {
		e.mu.Unlock()
		return errors.New("capture: engine already started")
	}
	e.started = true
	e.mu.Unlock()

	rate, err := e.src.Open(ctx)
	if err != nil {
		e.mu.Lock()
		e.started = false
		e.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if rate <= 0 {
		rate = audio.WireSampleRate
	}

	slog.Info("audio capture started", "sample_rate", rate, "block_size", e.blockSize)

	go e.loop(rate, onFrame, onErr)
	return nil
}

func (e *Engine) loop(rate int, onFrame FrameFunc, onErr func(error)) {
	defer close(e.done)

	buf := make([]float32, e.blockSize)
	frames := 0
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		n, err := e.src.Read(buf)
		if n > 0 {
			// Re-check after a potentially long blocking read so that no
			// callback fires once Stop has begun.
			select {
			case <-e.stop:
				return
			default:
			}
			onFrame(audio.Frame{Samples: buf[:n], SampleRate: rate})

			frames++
			if frames%levelLogInterval == 0 {
				slog.Debug("mic level", "rms", audio.RMS(buf[:n]), "frames", frames)
			}
		}
		if err != nil {
			select {
			case <-e.stop:
			default:
				if onErr != nil {
					onErr(fmt.Errorf("capture: read: %w", err))
				}
			}
			return
		}
	}
}

// Stop tears down capture: it releases the source and guarantees that no
// further frame callbacks fire after it returns. Safe to call multiple times
// and from the teardown path of a failed start.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	wasStarted := e.started
	e.mu.Unlock()

	close(e.stop)
	_ = e.src.Close()
	if wasStarted {
		<-e.done
	}
	slog.Debug("audio capture stopped")
}
