// Package ffmpeg provides an FFmpeg-subprocess [audio.Source] so the engine
// can capture from a real microphone on any platform FFmpeg supports. The
// subprocess emits raw s16le mono PCM on stdout, which the source converts
// to normalized float samples.
package ffmpeg

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
)

// DefaultSampleRate is the capture rate requested from the device. It is
// deliberately the typical host rate rather than the wire rate; rate
// conversion belongs to the resampler, not the device.
const DefaultSampleRate = 48000

// Source captures microphone audio via an FFmpeg subprocess.
type Source struct {
	// Path is the ffmpeg executable. Empty means "ffmpeg" on PATH.
	Path string

	// Device is the platform-specific input device identifier. Empty selects
	// the platform default.
	Device string

	// SampleRate requested from the device. Zero means [DefaultSampleRate].
	SampleRate int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	closed bool
}

// inputArgs returns the FFmpeg input flags for the host platform.
func (s *Source) inputArgs() []string {
	device := s.Device
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		return []string{"-f", "avfoundation", "-i", device}
	case "windows":
		return []string{"-f", "dshow", "-i", "audio=" + device}
	default:
		if device == "" {
			device = "default"
		}
		return []string{"-f", "alsa", "-i", device}
	}
}

// Check reports whether the capture binary can be resolved. Suitable as a
// readiness check before any capture has started.
func (s *Source) Check(_ context.Context) error {
	path := s.Path
	if path == "" {
		path = "ffmpeg"
	}
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("ffmpeg: executable not found: %w", err)
	}
	return nil
}

// Open launches the capture subprocess and reports the sample rate of the
// PCM stream on its stdout.
func (s *Source) Open(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("ffmpeg: source closed")
	}
	if s.cmd != nil {
		return 0, fmt.Errorf("ffmpeg: source already open")
	}

	path := s.Path
	if path == "" {
		path = "ffmpeg"
	}
	if _, err := exec.LookPath(path); err != nil {
		return 0, fmt.Errorf("ffmpeg: executable not found: %w", err)
	}
	rate := s.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, s.inputArgs()...)
	args = append(args,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", rate),
		"-ac", "1",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("ffmpeg: start: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.reader = bufio.NewReaderSize(stdout, 1<<16)
	s.SampleRate = rate
	return rate, nil
}

// Read fills buf with normalized samples from the subprocess.
func (s *Source) Read(buf []float32) (int, error) {
	s.mu.Lock()
	reader := s.reader
	closed := s.closed
	s.mu.Unlock()
	if closed || reader == nil {
		return 0, fmt.Errorf("ffmpeg: source closed")
	}

	raw := make([]byte, len(buf)*2)
	n, err := io.ReadFull(reader, raw)
	samples := n / 2
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		if v < 0 {
			buf[i] = float32(v) / 32768
		} else {
			buf[i] = float32(v) / 32767
		}
	}
	if err != nil {
		return samples, fmt.Errorf("ffmpeg: read: %w", err)
	}
	return samples, nil
}

// Close terminates the subprocess. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stdout != nil {
		_ = s.stdout.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	return nil
}
