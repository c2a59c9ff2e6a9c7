package capture

import (
	"errors"
	"fmt"
)

const (
	controlDepth = 16
	eventDepth   = 64
)

var errControlQueueFull = errors.New("control queue full")

// posted is a control message stamped with the number of input blocks
// submitted when it was posted. The runtime applies it after exactly that
// many blocks.
type posted struct {
	msg  ControlMessage
	mark uint64
}

// Port is the duplex message channel between the controller and the audio
// runtime. Both directions are FIFO. Posting never blocks.
type Port struct {
	control chan posted
	events  chan Event
	mark    func() uint64
}

func newPort(mark func() uint64) *Port {
	return &Port{
		control: make(chan posted, controlDepth),
		events:  make(chan Event, eventDepth),
		mark:    mark,
	}
}

// Post queues a control message for the audio runtime.
func (p *Port) Post(msg ControlMessage) error {
	select {
	case p.control <- posted{msg: msg, mark: p.mark()}:
		return nil
	default:
		return fmt.Errorf("posting %s: %w", msg.Kind, errControlQueueFull)
	}
}

// Events is closed when the audio runtime exits.
func (p *Port) Events() <-chan Event { return p.events }
