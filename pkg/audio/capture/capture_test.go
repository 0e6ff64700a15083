package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/careercompass/vector/pkg/audio"
	"github.com/careercompass/vector/pkg/audio/capture"
	"github.com/careercompass/vector/pkg/audio/mock"
)

func block(n int, v float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func TestStart_DeliversFrames(t *testing.T) {
	t.Parallel()

	src := mock.NewSource(block(4096, 0.1), block(4096, 0.2), block(4096, 0.3))
	src.EOFWhenDrained = true
	eng := capture.New(src)

	var mu sync.Mutex
	var frames []audio.Frame
	done := make(chan struct{})

	err := eng.Start(context.Background(), func(f audio.Frame) {
		cp := make([]float32, len(f.Samples))
		copy(cp, f.Samples)
		mu.Lock()
		frames = append(frames, audio.Frame{Samples: cp, SampleRate: f.SampleRate})
		mu.Unlock()
	}, func(error) {
		close(done) // EOF after the last block ends the loop
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for capture loop to drain")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if len(f.Samples) != 4096 {
			t.Errorf("frame %d: %d samples, want 4096", i, len(f.Samples))
		}
		if f.SampleRate != 48000 {
			t.Errorf("frame %d: rate %d, want 48000", i, f.SampleRate)
		}
	}
	if frames[0].Samples[0] != 0.1 || frames[2].Samples[0] != 0.3 {
		t.Error("frames delivered out of order")
	}
}

func TestStart_Unavailable(t *testing.T) {
	t.Parallel()

	src := mock.NewSource()
	src.OpenErr = errors.New("permission denied")
	eng := capture.New(src)

	err := eng.Start(context.Background(), func(audio.Frame) {}, nil)
	if !errors.Is(err, capture.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}

	// Stop from the failed-start teardown path must be a no-op.
	eng.Stop()
	eng.Stop()
}

func TestStop_NoCallbacksAfterReturn(t *testing.T) {
	t.Parallel()

	src := mock.NewSource(block(4096, 0))
	eng := capture.New(src)

	first := make(chan struct{}, 1)
	var afterStop bool
	var mu sync.Mutex
	stopped := make(chan struct{})

	err := eng.Start(context.Background(), func(audio.Frame) {
		select {
		case first <- struct{}{}:
		default:
		}
		mu.Lock()
		select {
		case <-stopped:
			afterStop = true
		default:
		}
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-first:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for first frame")
	}

	eng.Stop()
	close(stopped)
	src.Push(block(4096, 0)) // arrives after Stop; must never surface

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if afterStop {
		t.Error("frame callback fired after Stop returned")
	}
}

func TestStop_Idempotent(t *testing.T) {
	t.Parallel()

	src := mock.NewSource(block(4096, 0))
	eng := capture.New(src)
	if err := eng.Start(context.Background(), func(audio.Frame) {}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eng.Stop()
	eng.Stop()
	eng.Stop()
}

func TestWithBlockSize(t *testing.T) {
	t.Parallel()

	src := mock.NewSource(block(512, 0.5))
	src.EOFWhenDrained = true
	eng := capture.New(src, capture.WithBlockSize(512))

	got := make(chan int, 1)
	err := eng.Start(context.Background(), func(f audio.Frame) {
		select {
		case got <- len(f.Samples):
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop()

	select {
	case n := <-got:
		if n != 512 {
			t.Errorf("frame size: got %d, want 512", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}
