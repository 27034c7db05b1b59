package capture

import (
	"sync"

	"github.com/voxwire/voxwire/pkg/audio"
	"github.com/voxwire/voxwire/pkg/audio/device"
)

// frameChannelBuffer bounds the outbound frame channel. The capture side
// never blocks on a slow transport; if the consumer falls this far behind,
// frames queue at the transport layer instead (its send queue), so the
// buffer only has to absorb scheduling jitter.
const frameChannelBuffer = 32

// Pump runs an [Encoder] against a live [device.Source] on its own
// goroutine and emits full frames on a channel. It is the capture-context
// actor: it owns the encoder state exclusively and communicates with the
// orchestrating context only through the frame channel.
type Pump struct {
	frames chan audio.Frame
	done   chan struct{}

	stopOnce sync.Once
}

// NewPump starts pumping src through a fresh encoder. The returned Pump's
// Frames channel closes when src's sample channel closes or [Pump.Stop] is
// called.
func NewPump(src device.Source, frameSize int) *Pump {
	p := &Pump{
		frames: make(chan audio.Frame, frameChannelBuffer),
		done:   make(chan struct{}),
	}
	go p.run(src, NewEncoder(src.SampleRate(), frameSize))
	return p
}

// Frames returns the channel delivering full outbound frames.
func (p *Pump) Frames() <-chan audio.Frame { return p.frames }

// Stop terminates the pump goroutine. It does not close the source; the
// lifecycle owns device teardown. Idempotent and safe for concurrent use.
func (p *Pump) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// run owns p.frames and closes it on exit.
func (p *Pump) run(src device.Source, enc *Encoder) {
	defer close(p.frames)
	for {
		select {
		case <-p.done:
			return
		case batch, ok := <-src.Samples():
			if !ok {
				return
			}
			for _, frame := range enc.Write(batch) {
				select {
				case p.frames <- frame:
				case <-p.done:
					return
				}
			}
		}
	}
}
