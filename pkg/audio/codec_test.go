package audio_test

import (
	"errors"
	"math"
	"testing"

	"github.com/voxwire/voxwire/pkg/audio"
)

func TestFloatToPCM16_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	got := audio.FloatToPCM16([]float32{2.0, -2.0, 0, 1, -1})
	want := []int16{32767, -32767, 0, 32767, -32767}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d; want %d", i, got[i], want[i])
		}
	}
}

func TestRoundTrip_WithinOneQuantizationStep(t *testing.T) {
	t.Parallel()

	samples := []float32{0, 0.5, -0.5, 0.25, -0.999, 0.999, 1, -1, 0.123456, -0.654321}
	back := audio.PCM16ToFloat(audio.FloatToPCM16(samples))

	const step = 1.0 / 32768
	for i, orig := range samples {
		if diff := math.Abs(float64(back[i] - orig)); diff > step {
			t.Errorf("sample[%d]: round-trip error %g exceeds %g (orig %g, back %g)",
				i, diff, step, orig, back[i])
		}
	}
}

func TestInt16sToBytes_RoundTrip(t *testing.T) {
	t.Parallel()

	pcm := []int16{0, 1, -1, 32767, -32768, 256}
	got := audio.BytesToInt16s(audio.Int16sToBytes(pcm))
	if len(got) != len(pcm) {
		t.Fatalf("len = %d; want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Errorf("sample[%d] = %d; want %d", i, got[i], pcm[i])
		}
	}
}

func TestDecodePayload_RoundTrip(t *testing.T) {
	t.Parallel()

	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	got, err := audio.DecodePayload(audio.EncodePayload(raw))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("round-trip = %v; want %v", got, raw)
	}
}

func TestDecodePayload_Malformed_ReturnsDecodeError(t *testing.T) {
	t.Parallel()

	_, err := audio.DecodePayload("not!!valid@@base64")
	if err == nil {
		t.Fatal("DecodePayload on malformed input should return an error")
	}
	var decErr *audio.DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("error %T is not a *audio.DecodeError", err)
	}
}

func TestPCM16BytesToFloat_KnownValues(t *testing.T) {
	t.Parallel()

	// 0x4000 little-endian = 16384 = 0.5 after division by 32768.
	got := audio.PCM16BytesToFloat([]byte{0x00, 0x40})
	if len(got) != 1 {
		t.Fatalf("len = %d; want 1", len(got))
	}
	if got[0] != 0.5 {
		t.Errorf("sample = %g; want 0.5", got[0])
	}
}
