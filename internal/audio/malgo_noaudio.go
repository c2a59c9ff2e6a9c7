//go:build !cgo || noaudio

// Device capture is only available in cgo builds without the noaudio tag.

package audio

import (
	"log/slog"
)

const deviceSupport = false

// MalgoInput captures from a system audio device. In this build it always
// fails to open.
type MalgoInput struct {
	Device       string
	ChannelCount int
	Logger       *slog.Logger
}

func (in *MalgoInput) Name() string { return "device" }

func (in *MalgoInput) Open(StreamConfig) (Stream, error) {
	return nil, ErrAudioUnavailable
}

// ListDevices always fails in this build.
func ListDevices(*slog.Logger) ([]Device, error) {
	return nil, ErrAudioUnavailable
}
