// Package segments tracks who is speaking when during a call.
//
// The platform streams speaker segment lists as the conversation evolves;
// [Synchronizer] holds the latest list in timestamp order and answers
// point-in-time lookups for the UI and the visualizer.
package segments

import (
	"sort"
	"sync"

	"github.com/voxwire/voxwire/pkg/types"
)

const (
	// defaultMaxEntries caps the retained segment list. Conversations long
	// enough to exceed it only need the recent tail for display.
	defaultMaxEntries = 100

	// defaultMaxAge is how far behind the newest segment older entries are
	// kept, in seconds of call time.
	defaultMaxAge = 300.0
)

// Synchronizer holds the current speaker timeline. Safe for concurrent
// use: the transport goroutine replaces while the UI reads.
type Synchronizer struct {
	maxEntries int
	maxAge     float64

	mu       sync.RWMutex
	segments []types.SpeakerSegment
}

// Option is a functional option for configuring a Synchronizer.
type Option func(*Synchronizer)

// WithMaxEntries overrides the retained segment cap.
func WithMaxEntries(n int) Option {
	return func(s *Synchronizer) { s.maxEntries = n }
}

// WithMaxAge overrides the retention window in seconds of call time.
func WithMaxAge(seconds float64) Option {
	return func(s *Synchronizer) { s.maxAge = seconds }
}

// NewSynchronizer creates an empty Synchronizer.
func NewSynchronizer(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		maxEntries: defaultMaxEntries,
		maxAge:     defaultMaxAge,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Replace swaps in a new segment list. The list is sorted by timestamp,
// pruned to the retention window behind its newest entry and capped to the
// most recent maxEntries. The input slice is not retained.
func (s *Synchronizer) Replace(segments []types.SpeakerSegment) {
	sorted := append([]types.SpeakerSegment(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	if len(sorted) > 0 {
		horizon := sorted[len(sorted)-1].Timestamp - s.maxAge
		cut := sort.Search(len(sorted), func(i int) bool {
			return sorted[i].Timestamp >= horizon
		})
		sorted = sorted[cut:]
	}
	if len(sorted) > s.maxEntries {
		sorted = sorted[len(sorted)-s.maxEntries:]
	}

	s.mu.Lock()
	s.segments = sorted
	s.mu.Unlock()
}

// ActiveAt returns the speaker whose segment covers call time t: the last
// segment with a timestamp at or before t. Before the first segment (or
// with no segments at all) the user is assumed to be speaking, since calls
// open on the user's side.
func (s *Synchronizer) ActiveAt(t float64) types.Speaker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.segments), func(i int) bool {
		return s.segments[i].Timestamp > t
	})
	if i == 0 {
		return types.SpeakerUser
	}
	return s.segments[i-1].Speaker
}

// Segments returns a copy of the current timeline.
func (s *Synchronizer) Segments() []types.SpeakerSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.SpeakerSegment(nil), s.segments...)
}

// Len returns the number of retained segments.
func (s *Synchronizer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}
