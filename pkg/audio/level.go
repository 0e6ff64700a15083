package audio

import "math"

// RMS returns the root-mean-square level of a block of normalized samples.
// Used purely for diagnostic mic-level logging; a result of 0 means silence.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
