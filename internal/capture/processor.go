package capture

import (
	"fmt"
	"math"
)

const (
	// MaxDurationSeconds caps a recording at five minutes.
	MaxDurationSeconds = 300

	// TelemetryRateHz is the target telemetry cadence.
	TelemetryRateHz = 60

	defaultOutboxSize = 256
)

// DefaultMaxFrames returns the frame cap for a sample rate.
func DefaultMaxFrames(sampleRate int) int {
	return sampleRate * MaxDurationSeconds
}

// ProcessorOptions configures a Processor once at construction.
type ProcessorOptions struct {
	Channels   int
	SampleRate int
	// MaxFrames defaults to DefaultMaxFrames(SampleRate).
	MaxFrames int
	// OutboxSize bounds the number of undelivered events.
	OutboxSize int
}

// Processor is the real-time capture unit. HandleMessage and Process are
// only called from the audio runtime goroutine and never allocate, lock or
// block once the processor is built.
type Processor struct {
	channels        int
	sampleRate      int
	maxFrames       int
	publishInterval int

	buffers [][]float32

	recording      bool
	terminated     bool
	recordedFrames int
	sincePublish   int

	outbox *outbox
}

// NewProcessor allocates the channel buffers for opts.MaxFrames frames.
func NewProcessor(opts ProcessorOptions) (*Processor, error) {
	if opts.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", opts.Channels)
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = DefaultMaxFrames(opts.SampleRate)
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaultOutboxSize
	}

	p := &Processor{
		channels:        opts.Channels,
		sampleRate:      opts.SampleRate,
		maxFrames:       opts.MaxFrames,
		publishInterval: opts.SampleRate / TelemetryRateHz,
		buffers:         make([][]float32, opts.Channels),
		outbox:          newOutbox(opts.OutboxSize),
	}
	for ch := range p.buffers {
		p.buffers[ch] = make([]float32, opts.MaxFrames)
	}
	return p, nil
}

// MaxFrames returns the recording capacity in frames.
func (p *Processor) MaxFrames() int { return p.maxFrames }

// RecordedFrames returns the number of frames recorded so far.
func (p *Processor) RecordedFrames() int { return p.recordedFrames }

// Recording reports whether incoming blocks are being recorded.
func (p *Processor) Recording() bool { return p.recording }

// Terminated reports whether the processor reached its frame cap.
func (p *Processor) Terminated() bool { return p.terminated }

// Dropped returns the number of telemetry events discarded by a full
// outbox.
func (p *Processor) Dropped() uint64 { return p.outbox.dropped }

// view copies the channel list so a later allocation in Process cannot
// change a view already handed to the controller.
func (p *Processor) view() BufferView {
	channels := make([][]float32, len(p.buffers))
	copy(channels, p.buffers)
	return BufferView{channels: channels, frames: p.recordedFrames}
}

// HandleMessage applies a control message between blocks.
func (p *Processor) HandleMessage(msg ControlMessage) {
	if p.terminated {
		return
	}
	switch msg.Kind {
	case ControlSetRecording:
		p.recording = msg.Recording
		if !msg.Recording {
			p.outbox.push(Event{Kind: EventBufferReady, Frames: p.recordedFrames, Buffer: p.view()}, true)
		}
	case ControlRequestBuffer:
		p.outbox.push(Event{Kind: EventBufferReady, Frames: p.recordedFrames, Buffer: p.view()}, true)
	}
}

// Process handles one block. in and out hold one slice per channel with
// the same length, at most one block. Input is copied to out unchanged and,
// while recording, appended to the channel buffers. Process returns false
// once the frame cap is reached; later calls do nothing and return false.
func (p *Processor) Process(in, out [][]float32) bool {
	if p.terminated {
		return false
	}

	n := blockFrames(in, out)
	shouldPublish := p.sincePublish >= p.publishInterval

	var peak float32
	for ch := 0; ch < len(out); ch++ {
		dst := out[ch][:n]
		if ch < len(in) && in[ch] != nil {
			copy(dst, in[ch][:n])
		} else {
			clear(dst)
		}
		for _, s := range dst {
			if a := float32(math.Abs(float64(s))); a > peak {
				peak = a
			}
		}
	}

	if p.recording {
		for ch := 0; ch < p.channels; ch++ {
			if p.buffers[ch] == nil {
				p.buffers[ch] = make([]float32, p.maxFrames)
			}
			buf := p.buffers[ch]
			var src []float32
			if ch < len(in) {
				src = in[ch]
			}
			for i := 0; i < n && p.recordedFrames+i < p.maxFrames; i++ {
				if src != nil {
					buf[p.recordedFrames+i] = src[i]
				} else {
					buf[p.recordedFrames+i] = 0
				}
			}
		}

		if p.recordedFrames+n < p.maxFrames {
			p.recordedFrames += n
			if shouldPublish {
				p.outbox.push(Event{Kind: EventRecordingLengthUpdated, Frames: p.recordedFrames}, false)
			}
		} else {
			p.recording = false
			p.terminated = true
			p.recordedFrames = p.maxFrames
			p.outbox.push(Event{Kind: EventMaxLengthReached, Frames: p.recordedFrames, Buffer: p.view()}, true)
			p.outbox.push(Event{Kind: EventRecordingLengthUpdated, Frames: p.recordedFrames}, true)
			return false
		}
	}

	if shouldPublish {
		p.outbox.push(Event{Kind: EventTelemetryTick, Frames: p.recordedFrames, Peak: peak}, false)
		p.sincePublish = 0
	} else {
		p.sincePublish += n
	}
	return true
}

// blockFrames returns the usable frame count of a block.
func blockFrames(in, out [][]float32) int {
	n := -1
	for _, ch := range in {
		if ch != nil && (n < 0 || len(ch) < n) {
			n = len(ch)
		}
	}
	for _, ch := range out {
		if n < 0 || len(ch) < n {
			n = len(ch)
		}
	}
	if n < 0 {
		return 0
	}
	return n
}
