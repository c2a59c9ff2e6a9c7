// Package audio provides capture inputs that deliver deinterleaved float32
// sample blocks to the capture runtime.
package audio

import (
	"errors"
)

var (
	// ErrAudioUnavailable is returned by device inputs in builds without
	// audio support.
	ErrAudioUnavailable = errors.New("audio devices unavailable in this build")

	// ErrDeviceNotFound is returned when a configured device does not exist.
	ErrDeviceNotFound = errors.New("capture device not found")

	// ErrAmbiguousDevice is returned when a device name matches more than
	// one device.
	ErrAmbiguousDevice = errors.New("capture device name is ambiguous")
)

// DefaultQueueBlocks is the pool size used when none is configured.
const DefaultQueueBlocks = 64

// StreamConfig is passed to Input.Open.
type StreamConfig struct {
	SampleRate  int
	QueueBlocks int
}

func (c StreamConfig) queueBlocks() int {
	if c.QueueBlocks <= 0 {
		return DefaultQueueBlocks
	}
	return c.QueueBlocks
}

// Input opens capture streams.
type Input interface {
	Name() string
	Open(cfg StreamConfig) (Stream, error)
}

// Stream is an opened capture source. Blocks are submitted to Queue after
// Start until Stop or Close.
type Stream interface {
	Queue() *BlockQueue
	Channels() int
	SampleRate() int
	Start() error
	Stop() error
	Close() error
}

// Finite is implemented by streams that end by themselves. Done is closed
// after the last block has been submitted.
type Finite interface {
	Done() <-chan struct{}
}
