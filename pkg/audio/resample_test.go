package audio_test

import (
	"testing"

	"github.com/voxwire/voxwire/pkg/audio"
)

func TestResampleFloat_SameRate_Passthrough(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, 0.2, 0.3}
	got := audio.ResampleFloat(in, 24000, 24000)
	if len(got) != len(in) {
		t.Fatalf("len = %d; want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample[%d] = %g; want %g", i, got[i], in[i])
		}
	}
}

func TestResampleFloat_Upsample_Length(t *testing.T) {
	t.Parallel()

	in := make([]float32, 8000)
	got := audio.ResampleFloat(in, 8000, 24000)
	if len(got) != 24000 {
		t.Errorf("len = %d; want 24000", len(got))
	}
}

func TestResampleFloat_Downsample_Length(t *testing.T) {
	t.Parallel()

	in := make([]float32, 48000)
	got := audio.ResampleFloat(in, 48000, 24000)
	if len(got) != 24000 {
		t.Errorf("len = %d; want 24000", len(got))
	}
}

func TestResampleFloat_PreservesRamp(t *testing.T) {
	t.Parallel()

	// A linear ramp must stay monotonically non-decreasing under linear
	// interpolation.
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i) / 100
	}
	got := audio.ResampleFloat(in, 8000, 24000)
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("ramp not monotonic at %d: %g < %g", i, got[i], got[i-1])
		}
	}
}

func TestResampleFloat_EmptyInput(t *testing.T) {
	t.Parallel()

	if got := audio.ResampleFloat(nil, 8000, 24000); len(got) != 0 {
		t.Errorf("len = %d; want 0", len(got))
	}
}
