package capture

import "fmt"

// ControlKind tags a ControlMessage.
type ControlKind int

const (
	// ControlSetRecording turns recording on or off. Turning it off
	// answers with EventBufferReady.
	ControlSetRecording ControlKind = iota + 1
	// ControlRequestBuffer asks for EventBufferReady without changing
	// the recording flag.
	ControlRequestBuffer
)

func (k ControlKind) String() string {
	switch k {
	case ControlSetRecording:
		return "SetRecording"
	case ControlRequestBuffer:
		return "RequestBuffer"
	}
	return fmt.Sprintf("ControlKind(%d)", int(k))
}

// ControlMessage is sent from the controller to the processor.
type ControlMessage struct {
	Kind      ControlKind
	Recording bool
}

// SetRecording builds a ControlSetRecording message.
func SetRecording(on bool) ControlMessage {
	return ControlMessage{Kind: ControlSetRecording, Recording: on}
}

// RequestBuffer builds a ControlRequestBuffer message.
func RequestBuffer() ControlMessage {
	return ControlMessage{Kind: ControlRequestBuffer}
}

// EventKind tags an Event.
type EventKind int

const (
	EventRecordingLengthUpdated EventKind = iota + 1
	EventMaxLengthReached
	EventBufferReady
	EventTelemetryTick
)

func (k EventKind) String() string {
	switch k {
	case EventRecordingLengthUpdated:
		return "RecordingLengthUpdated"
	case EventMaxLengthReached:
		return "MaxLengthReached"
	case EventBufferReady:
		return "BufferReady"
	case EventTelemetryTick:
		return "TelemetryTick"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is sent from the processor to the controller. Frames holds the
// recorded frame count for length and telemetry events. Buffer is set for
// EventBufferReady and EventMaxLengthReached.
type Event struct {
	Kind   EventKind
	Frames int
	Peak   float32
	Buffer BufferView
}

// carriesBuffer reports whether the event answers a buffer request.
func (e Event) carriesBuffer() bool {
	return e.Kind == EventBufferReady || e.Kind == EventMaxLengthReached
}

// BufferView exposes the recorded prefix of the processor's channel
// buffers. Recording only appends past the prefix, so the samples a view
// exposes never change after it is taken. Holders must treat the samples
// as read-only.
type BufferView struct {
	channels [][]float32
	frames   int
}

// Frames returns the number of recorded frames in the view.
func (v BufferView) Frames() int { return v.frames }

// ChannelCount returns the number of channel slots in the view.
func (v BufferView) ChannelCount() int { return len(v.channels) }

// Channel returns the recorded samples of channel i, or nil when the slot
// is absent.
func (v BufferView) Channel(i int) []float32 {
	if i < 0 || i >= len(v.channels) || v.channels[i] == nil {
		return nil
	}
	return v.channels[i][:v.frames:v.frames]
}

// Channels returns every channel trimmed to the recorded prefix.
func (v BufferView) Channels() [][]float32 {
	out := make([][]float32, len(v.channels))
	for i := range v.channels {
		out[i] = v.Channel(i)
	}
	return out
}

// TelemetryTick is the periodic visualisation notification.
type TelemetryTick struct {
	// Frames is the recorded frame count at the tick.
	Frames int
	// Peak is the absolute peak of the block that triggered the tick.
	Peak float32
}
