package capture

import (
	"errors"

	"github.com/audiolibrelab/snapcapture/internal/wav"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current session state. The session is left unchanged.
	ErrInvalidState = errors.New("invalid capture state")

	// ErrBufferTimeout is returned when the audio runtime does not hand
	// over the recording buffer in time.
	ErrBufferTimeout = errors.New("timed out waiting for recording buffer")

	// ErrDeviceAcquisition is returned by Start when the input cannot be
	// opened. The session stays uninitialized and Start may be retried.
	ErrDeviceAcquisition = errors.New("could not acquire audio input")

	// ErrMissingChannelData aborts an encode when a channel buffer is
	// absent.
	ErrMissingChannelData = wav.ErrMissingChannelData

	// ErrBufferMismatch aborts an encode when a handed-over buffer holds
	// fewer frames than the controller has seen recorded, or a channel is
	// shorter than the buffer's frame count.
	ErrBufferMismatch = errors.New("channel buffer does not match recorded frames")
)
