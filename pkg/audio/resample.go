package audio

import "math"

// ResampleTo24k converts samples from sourceRate to the 24 kHz wire rate
// using linear interpolation. If sourceRate is already [WireSampleRate] the
// input is returned unchanged (zero allocation). The output length is
// round(len(samples) * 24000/sourceRate). Interpolating past the last input
// sample reuses the last sample as both endpoints, so the function never
// reads out of bounds.
func ResampleTo24k(samples []float32, sourceRate int) []float32 {
	if sourceRate == WireSampleRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(sourceRate) / float64(WireSampleRate)
	n := int(math.Round(float64(len(samples)) / ratio))
	if n == 0 {
		return nil
	}

	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = s0 + (s1-s0)*frac
	}
	return out
}
