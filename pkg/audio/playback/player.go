package playback

import (
	"fmt"

	"github.com/voxwire/voxwire/pkg/audio/device"
)

// Player binds a [Buffer] to a [device.Sink] and translates pull outcomes
// into the two playback signals the lifecycle cares about: chunk ends
// (cadence markers owed to the transport) and underruns.
type Player struct {
	buf  *Buffer
	sink device.Sink

	onChunkEnd func()
	onUnderrun func()
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithChunkEndFunc registers fn to be called once per fully consumed chunk.
// fn runs on the device's pull context and must not block.
func WithChunkEndFunc(fn func()) PlayerOption {
	return func(p *Player) { p.onChunkEnd = fn }
}

// WithUnderrunFunc registers fn to be called whenever a pull ran dry and
// was padded with silence. fn runs on the device's pull context and must
// not block.
func WithUnderrunFunc(fn func()) PlayerOption {
	return func(p *Player) { p.onUnderrun = fn }
}

// NewPlayer creates a Player feeding sink from buf.
func NewPlayer(buf *Buffer, sink device.Sink, opts ...PlayerOption) *Player {
	p := &Player{buf: buf, sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins serving the sink's pulls from the buffer.
func (p *Player) Start() error {
	if err := p.sink.Start(p.pull); err != nil {
		return fmt.Errorf("playback: start sink: %w", err)
	}
	return nil
}

func (p *Player) pull(out []float32) {
	stats := p.buf.Pull(out)
	if p.onChunkEnd != nil {
		for range stats.ChunkEnds {
			p.onChunkEnd()
		}
	}
	if stats.Underrun && p.onUnderrun != nil {
		p.onUnderrun()
	}
}

// Buffer returns the underlying chunk buffer, shared with the transport's
// enqueue path.
func (p *Player) Buffer() *Buffer { return p.buf }

// Close stops the sink. The buffer keeps its contents; callers clear it
// separately if teardown requires.
func (p *Player) Close() error {
	return p.sink.Close()
}
