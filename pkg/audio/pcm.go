package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedPCM is returned by [DecodePCM16] when the byte length is not a
// whole number of 16-bit samples.
var ErrMalformedPCM = errors.New("audio: malformed PCM16 data")

// EncodePCM16 quantizes normalized float samples to little-endian signed
// 16-bit PCM. Each sample is clamped to [-1, 1]; negative values scale by
// 32768 and non-negative values by 32767 so that the full integer range is
// reachable. The conversion is deterministic.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 reads little-endian signed 16-bit samples from b.
// Fails with [ErrMalformedPCM] if len(b) is odd.
func DecodePCM16(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedPCM, len(b))
	}
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples, nil
}

// Int16ToFloat32 converts signed 16-bit samples back to normalized floats,
// inverting the asymmetric scaling used by [EncodePCM16]. The round trip
// reconstructs the input within one quantization step.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}
