// Package device defines the capability interfaces for audio hardware
// within voxwire.
//
// The two primary abstractions are:
//
//   - [Source] — a microphone-like producer delivering batches of float
//     samples at a fixed rate.
//   - [Sink] — a speaker-like consumer that pulls fixed-size output buffers
//     on the device's own cadence.
//
// Implementations are provided by this package (live PortAudio devices) and
// by the mock subpackage (test doubles). The interfaces are intentionally
// narrow so the pipeline logic never touches real hardware in tests.
package device

// Source delivers captured audio as batches of mono float samples in
// [-1, 1]. The batch size is device-determined and not guaranteed to be
// stable between batches.
//
// The Samples channel is closed when the source stops, either via [Source.Close]
// or a device failure. Close is idempotent.
type Source interface {
	// Samples returns the channel on which captured batches arrive.
	Samples() <-chan []float32

	// SampleRate returns the capture rate in Hz.
	SampleRate() int

	// Close stops capture and releases the device. Safe to call more than
	// once; subsequent calls are no-ops and return nil.
	Close() error
}

// Sink drives audio output. The device pulls samples on its own fixed
// cadence: on every output cycle the registered pull function must fill the
// given buffer completely and return without blocking — a stall silences
// audio mid-stream. Underruns are the pull function's problem to absorb
// (the playback buffer fills silence).
type Sink interface {
	// Start begins output, invoking pull once per device cycle. Returns an
	// error if the device cannot be opened or is already started.
	Start(pull func(out []float32)) error

	// SampleRate returns the output rate in Hz.
	SampleRate() int

	// Close stops output and releases the device. Idempotent.
	Close() error
}

// Opener creates live or fake devices. The call lifecycle acquires both
// endpoints through this interface so that tests can swap in mocks.
type Opener interface {
	// OpenSource opens the default capture device at the given rate.
	// batchLen is the preferred samples-per-batch hint.
	OpenSource(sampleRate, batchLen int) (Source, error)

	// OpenSink opens the default output device at the given rate.
	// pullLen is the fixed size of every output pull.
	OpenSink(sampleRate, pullLen int) (Sink, error)
}
