package peer

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/voxwire/voxwire/pkg/audio"
)

// The media track carries 48 kHz stereo Opus at 20 ms frame size, the
// format WebRTC negotiates by default.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960

	maxOpusPacket = 4000
)

// trackEncoder converts session-rate mono PCM16 frames into 20 ms Opus
// packets for the outbound media track. It resamples to 48 kHz, duplicates
// mono into both channels and accumulates until a full Opus frame is
// available. Not safe for concurrent use; the send path is serialized.
type trackEncoder struct {
	enc        *gopus.Encoder
	sampleRate int

	// pending holds interleaved stereo samples at the Opus rate awaiting a
	// full frame.
	pending []int16
}

func newTrackEncoder(sampleRate int) (*trackEncoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("peer: create opus encoder: %w", err)
	}
	return &trackEncoder{enc: enc, sampleRate: sampleRate}, nil
}

// push appends one session-rate frame and returns zero or more encoded
// Opus packets.
func (e *trackEncoder) push(frame audio.Frame) ([][]byte, error) {
	mono := audio.ResampleFloat(audio.PCM16ToFloat(frame.Data), e.sampleRate, opusSampleRate)
	for _, s := range audio.FloatToPCM16(mono) {
		e.pending = append(e.pending, s, s)
	}

	var packets [][]byte
	frameLen := opusFrameSize * opusChannels
	for len(e.pending) >= frameLen {
		pcm := e.pending[:frameLen]
		packet, err := e.enc.Encode(pcm, opusFrameSize, maxOpusPacket)
		if err != nil {
			return nil, fmt.Errorf("peer: opus encode: %w", err)
		}
		packets = append(packets, packet)
		e.pending = e.pending[frameLen:]
	}
	return packets, nil
}

// trackDecoder converts inbound Opus packets back to session-rate mono
// PCM16 bytes. One decoder per remote track so decoder state stays
// consistent across consecutive packets.
type trackDecoder struct {
	dec        *gopus.Decoder
	sampleRate int
}

func newTrackDecoder(sampleRate int) (*trackDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("peer: create opus decoder: %w", err)
	}
	return &trackDecoder{dec: dec, sampleRate: sampleRate}, nil
}

// decode returns the packet's audio downmixed to mono at the session rate,
// as little-endian PCM16 bytes.
func (d *trackDecoder) decode(packet []byte) ([]byte, error) {
	stereo, err := d.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("peer: opus decode: %w", err)
	}

	mono := make([]float32, len(stereo)/2)
	for i := range mono {
		left := float32(stereo[i*2]) / 32768
		right := float32(stereo[i*2+1]) / 32768
		mono[i] = (left + right) / 2
	}
	mono = audio.ResampleFloat(mono, opusSampleRate, d.sampleRate)
	return audio.Int16sToBytes(audio.FloatToPCM16(mono)), nil
}
