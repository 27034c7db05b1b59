// Package mock provides test doubles for the device capability interfaces.
// Tests push sample batches into a [Source] and drive a [Sink]'s pull cycle
// by hand, so the pipeline runs without hardware.
package mock

import (
	"sync"

	"github.com/voxwire/voxwire/pkg/audio/device"
)

// Compile-time interface assertions.
var (
	_ device.Opener = (*Opener)(nil)
	_ device.Source = (*Source)(nil)
	_ device.Sink   = (*Sink)(nil)
)

// Opener hands out pre-constructed mock devices. The zero value creates
// fresh mocks on demand.
type Opener struct {
	// SourceErr / SinkErr, when non-nil, are returned by the Open calls.
	// Used to simulate permission denial.
	SourceErr error
	SinkErr   error

	mu      sync.Mutex
	sources []*Source
	sinks   []*Sink
}

// OpenSource returns a new mock source, recording it for test inspection.
func (o *Opener) OpenSource(sampleRate, batchLen int) (device.Source, error) {
	if o.SourceErr != nil {
		return nil, o.SourceErr
	}
	s := NewSource(sampleRate)
	o.mu.Lock()
	o.sources = append(o.sources, s)
	o.mu.Unlock()
	return s, nil
}

// OpenSink returns a new mock sink, recording it for test inspection.
func (o *Opener) OpenSink(sampleRate, pullLen int) (device.Sink, error) {
	if o.SinkErr != nil {
		return nil, o.SinkErr
	}
	s := NewSink(sampleRate, pullLen)
	o.mu.Lock()
	o.sinks = append(o.sinks, s)
	o.mu.Unlock()
	return s, nil
}

// Sources returns all sources opened so far.
func (o *Opener) Sources() []*Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Source(nil), o.sources...)
}

// Sinks returns all sinks opened so far.
func (o *Opener) Sinks() []*Sink {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Sink(nil), o.sinks...)
}

// Source is a scriptable microphone. Tests call [Source.Push] to feed
// batches to the consumer.
type Source struct {
	sampleRate int
	ch         chan []float32

	closeOnce sync.Once
}

// NewSource creates a mock source at the given rate.
func NewSource(sampleRate int) *Source {
	return &Source{sampleRate: sampleRate, ch: make(chan []float32, 64)}
}

// Push delivers one batch of samples to the consumer.
func (s *Source) Push(batch []float32) { s.ch <- batch }

func (s *Source) Samples() <-chan []float32 { return s.ch }
func (s *Source) SampleRate() int           { return s.sampleRate }

// Close closes the sample channel. Idempotent.
func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}

// Sink is a scriptable speaker. Tests call [Sink.Cycle] to run one device
// pull and receive the filled buffer.
type Sink struct {
	sampleRate int
	pullLen    int

	mu     sync.Mutex
	pull   func(out []float32)
	closed bool
}

// NewSink creates a mock sink whose pulls request pullLen samples.
func NewSink(sampleRate, pullLen int) *Sink {
	return &Sink{sampleRate: sampleRate, pullLen: pullLen}
}

func (s *Sink) SampleRate() int { return s.sampleRate }

func (s *Sink) Start(pull func(out []float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pull = pull
	return nil
}

// Cycle runs one output pull and returns the buffer the pull function
// filled. Returns nil if Start has not been called or the sink is closed.
func (s *Sink) Cycle() []float32 {
	s.mu.Lock()
	pull := s.pull
	closed := s.closed
	s.mu.Unlock()
	if pull == nil || closed {
		return nil
	}
	out := make([]float32, s.pullLen)
	pull(out)
	return out
}

// Close marks the sink closed. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
