// Package playback decouples bursty inbound audio chunks from the fixed
// cadence of the output device.
//
// [Buffer] holds the chunk queue and the cursor logic; [Player] binds a
// Buffer to a [device.Sink] and surfaces the chunk-end and underrun
// signals. The buffer never blocks the device: when it runs dry it fills
// the remainder of the pull with silence, because a stalled pull silences
// audio mid-stream.
package playback

import (
	"sync"

	"github.com/voxwire/voxwire/pkg/audio"
)

// PullStats reports what happened during a single output pull.
type PullStats struct {
	// ChunkEnds counts chunks fully consumed during this pull. The caller
	// emits one transport-level cadence marker per chunk end.
	ChunkEnds int

	// Underrun is true when the queue ran dry and the remainder of the
	// pull was filled with silence. Expected behaviour, not an error.
	Underrun bool
}

// Buffer is an ordered queue of decoded audio chunks with a read cursor
// into the head chunk. Chunks are owned exclusively by the buffer from
// enqueue until fully consumed.
//
// Safe for concurrent use: the transport goroutine enqueues while the
// playback context pulls.
type Buffer struct {
	srcRate int
	dstRate int

	mu        sync.Mutex
	queue     [][]float32
	readIndex int
}

// NewBuffer creates a Buffer that resamples enqueued audio from srcRate to
// dstRate. Equal (or non-positive) rates disable resampling.
func NewBuffer(srcRate, dstRate int) *Buffer {
	return &Buffer{srcRate: srcRate, dstRate: dstRate}
}

// EnqueueFloat appends an already-decoded chunk, resampling it to the
// output rate first. Empty chunks are ignored.
func (b *Buffer) EnqueueFloat(chunk []float32) {
	chunk = audio.ResampleFloat(chunk, b.srcRate, b.dstRate)
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, chunk)
	b.mu.Unlock()
}

// EnqueuePCM16 decodes little-endian PCM16 bytes and enqueues the result.
// Both enqueue paths converge on the same queue representation.
func (b *Buffer) EnqueuePCM16(data []byte) {
	b.EnqueueFloat(audio.PCM16BytesToFloat(data))
}

// Pull fills dst from the queued chunks. It copies from the head chunk at
// the read cursor until either dst is satisfied or the chunk is exhausted;
// exhausted chunks are dequeued (counted in ChunkEnds) and the copy
// continues from the next chunk within the same pull. When the queue is
// empty before dst is full, the remainder is zeroed and Underrun is set.
// Pull never blocks.
func (b *Buffer) Pull(dst []float32) PullStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var stats PullStats
	filled := 0
	for filled < len(dst) {
		if len(b.queue) == 0 {
			for i := filled; i < len(dst); i++ {
				dst[i] = 0
			}
			stats.Underrun = true
			return stats
		}

		head := b.queue[0]
		n := copy(dst[filled:], head[b.readIndex:])
		filled += n
		b.readIndex += n

		if b.readIndex == len(head) {
			stats.ChunkEnds++
			b.queue = b.queue[1:]
			b.readIndex = 0
		}
	}
	return stats
}

// Clear discards all queued chunks and resets the cursor. Used on barge-in
// so stale agent audio does not play after a server-side cut.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.queue = nil
	b.readIndex = 0
	b.mu.Unlock()
}

// Idle reports whether no audio remains queued or partially played.
func (b *Buffer) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) == 0 && b.readIndex == 0
}

// Len returns the number of queued chunks (including the partially
// consumed head).
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
