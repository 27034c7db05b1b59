package audio

// Frame is a fixed-length block of outbound encoded audio flowing from the
// capture encoder to the transport. Frames are immutable once emitted.
type Frame struct {
	// Data holds exactly the encoder's frame size of 16-bit signed samples.
	Data []int16

	// SampleRate in Hz (8000 or 24000 depending on call variant).
	SampleRate int
}

// Bytes returns the frame's samples as little-endian PCM16 bytes, the form
// the socket transport base64-encodes into media envelopes.
func (f Frame) Bytes() []byte {
	return Int16sToBytes(f.Data)
}
