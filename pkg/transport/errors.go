package transport

import (
	"errors"
	"fmt"
)

// ErrClosed is returned (wrapped) by sends on a closed transport.
var ErrClosed = errors.New("transport closed")

// Cause classifies transport failures so the lifecycle can map them to an
// end reason without string matching.
type Cause string

const (
	// CausePermissionDenied: the audio device could not be acquired.
	CausePermissionDenied Cause = "permission_denied"
	// CauseNegotiationFailed: session setup (dial, offer/answer) failed.
	CauseNegotiationFailed Cause = "negotiation_failed"
	// CauseNetworkError: an established session broke mid-call.
	CauseNetworkError Cause = "network_error"
)

// Error is a classified transport failure.
type Error struct {
	Cause Cause
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Cause, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CauseOf extracts the classification from err, or CauseNetworkError when
// err carries none.
func CauseOf(err error) Cause {
	var te *Error
	if errors.As(err, &te) {
		return te.Cause
	}
	return CauseNetworkError
}
