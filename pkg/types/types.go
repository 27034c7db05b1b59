// Package types defines the shared types used across all voxwire packages.
//
// These types form the lingua franca between the transport, the playback
// pipeline, and the segment synchronizer. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

// Speaker identifies who produced a stretch of call audio.
type Speaker string

const (
	// SpeakerUser is the human on the client side of the call.
	SpeakerUser Speaker = "User"

	// SpeakerAssistant is the remote voice agent.
	SpeakerAssistant Speaker = "Assistant"
)

// IsValid reports whether s is a recognised speaker value.
func (s Speaker) IsValid() bool {
	return s == SpeakerUser || s == SpeakerAssistant
}

// SpeakerSegment marks the point in the call at which a speaker took over,
// together with the transcript of what they said. Segments are produced by
// the remote side on the transport's control channel; arrival order is not
// guaranteed, so consumers must sort by Timestamp before lookups.
type SpeakerSegment struct {
	// Timestamp is the segment start in seconds relative to call start.
	Timestamp float64 `json:"timestamp"`

	// Speaker is who is talking from Timestamp onward.
	Speaker Speaker `json:"speaker"`

	// Transcript is the text spoken during this segment. May arrive empty
	// and be filled in by a later update carrying the same ItemID.
	Transcript string `json:"transcript"`

	// ItemID is the remote conversation item this segment belongs to.
	ItemID string `json:"item_id"`
}

// BarHeight is one bar of the frequency-style visualizer: a normalized
// magnitude paired with the speaker active at that point of the audio.
// Derived and ephemeral — recomputed every visualization frame, never stored.
type BarHeight struct {
	// Height is the normalized bar magnitude in [0, 1].
	Height float64 `json:"height"`

	// Speaker selects the palette for this bar.
	Speaker Speaker `json:"speaker"`
}

// EndReason records why a call reached the Ended state.
type EndReason string

const (
	// EndReasonUserHangup means the local user requested the hang-up.
	EndReasonUserHangup EndReason = "user_hangup"

	// EndReasonAgentHangup means the remote agent requested the hang-up.
	EndReasonAgentHangup EndReason = "agent_hangup"

	// EndReasonRemoteClosed means the transport was closed by the far end
	// without a hang-up exchange.
	EndReasonRemoteClosed EndReason = "remote_closed"

	// EndReasonError means call setup or the transport failed.
	EndReasonError EndReason = "error"

	// EndReasonUnknown is the fallback when no reason was recorded.
	EndReasonUnknown EndReason = "unknown"
)
