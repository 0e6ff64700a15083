// Package audio defines the sample formats, codecs, and device interfaces for
// the Vector realtime voice pipeline.
//
// The two primary abstractions are:
//
//   - [Source] — an exclusive microphone input delivering float samples.
//   - [Sink] — a speaker output rendering float samples at the wire rate.
//
// Implementations of these interfaces are provided by platform-specific
// adapter packages (e.g., audio/ffmpeg for capture, audio/beep for playback).
// The interfaces are intentionally narrow so that the protocol client and the
// playback scheduler stay decoupled from the host audio stack.
//
// Everything else in this package is pure sample math: PCM16 quantization,
// linear-interpolation resampling to the 24 kHz wire rate, and RMS metering.
package audio

import "context"

// WireSampleRate is the fixed sample rate of audio on the wire, in Hz.
// Both directions of the realtime protocol carry mono PCM16 at this rate.
const WireSampleRate = 24000

// Frame is a block of normalized float samples tagged with the rate it was
// captured at. Samples are in [-1.0, 1.0]. Frames are created once per
// capture callback and consumed immediately by the resample → encode → send
// pipeline; they are not retained.
type Frame struct {
	// Samples holds the mono sample data.
	Samples []float32

	// SampleRate in Hz of the source device (e.g., 48000).
	SampleRate int
}

// Source is an exclusive microphone input. A Source is owned by a single
// capture engine at a time; no other component reads from the device.
type Source interface {
	// Open acquires the input device and reports its native sample rate.
	// Returns an error if the device does not exist or cannot be accessed.
	Open(ctx context.Context) (sampleRate int, err error)

	// Read fills buf with normalized mono samples, blocking until buf is full
	// or the device fails. Returns the number of samples written. After Close,
	// Read returns an error.
	Read(buf []float32) (int, error)

	// Close releases the device. Safe to call more than once and before Open.
	Close() error
}

// Sink is a speaker output accepting normalized mono samples at
// [WireSampleRate]. Write queues samples for rendering and must not block
// for the duration of the audio itself.
type Sink interface {
	Write(samples []float32) error

	// Close releases the output device. Safe to call more than once.
	Close() error
}
