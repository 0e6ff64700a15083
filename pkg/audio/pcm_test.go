package audio_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/careercompass/vector/pkg/audio"
)

func TestEncodePCM16_Scaling(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, -0.5}
	out := audio.EncodePCM16(in)
	if len(out) != len(in)*2 {
		t.Fatalf("length: got %d, want %d", len(out), len(in)*2)
	}
	got := make([]int16, len(in))
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(out[i*2:]))
	}
	want := []int16{0, 32767, -32768, 16383, -16384}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEncodePCM16_Clamps(t *testing.T) {
	out := audio.EncodePCM16([]float32{2.5, -3.1})
	got, err := audio.DecodePCM16(out)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if got[0] != 32767 {
		t.Errorf("positive overflow: got %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative overflow: got %d, want -32768", got[1])
	}
}

func TestDecodePCM16_OddLength(t *testing.T) {
	_, err := audio.DecodePCM16([]byte{0x01, 0x02, 0x03})
	if !errors.Is(err, audio.ErrMalformedPCM) {
		t.Fatalf("got %v, want ErrMalformedPCM", err)
	}
}

// TestRoundTrip_WithinQuantizationStep checks that decode(encode(s))
// reconstructs s within one quantization step (2/65535).
func TestRoundTrip_WithinQuantizationStep(t *testing.T) {
	in := make([]float32, 2001)
	for i := range in {
		in[i] = float32(i-1000) / 1000 // sweep [-1, 1]
	}
	ints, err := audio.DecodePCM16(audio.EncodePCM16(in))
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	back := audio.Int16ToFloat32(ints)
	const step = 2.0 / 65535
	for i := range in {
		if diff := math.Abs(float64(back[i] - in[i])); diff > step {
			t.Fatalf("sample %d: |%f - %f| = %g exceeds %g", i, back[i], in[i], diff, step)
		}
	}
}

func TestInt16ToFloat32_Extremes(t *testing.T) {
	out := audio.Int16ToFloat32([]int16{-32768, 32767, 0})
	if out[0] != -1 {
		t.Errorf("min: got %f, want -1", out[0])
	}
	if out[1] != 1 {
		t.Errorf("max: got %f, want 1", out[1])
	}
	if out[2] != 0 {
		t.Errorf("zero: got %f, want 0", out[2])
	}
}

func TestRMS(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("empty: got %f, want 0", got)
	}
	if got := audio.RMS([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("constant magnitude: got %f, want 0.5", got)
	}
}
