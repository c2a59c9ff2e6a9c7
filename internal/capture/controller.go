// Package capture records audio from an input stream into memory and
// encodes it as WAV on demand.
//
// The Processor runs on a dedicated audio runtime goroutine and talks to
// the Controller only through a Port. The Controller owns the session
// state machine, the one-shot buffer replies and the encoder.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/snapcapture/internal/audio"
	"github.com/audiolibrelab/snapcapture/internal/observe"
	"github.com/audiolibrelab/snapcapture/internal/wav"
)

const (
	DefaultSampleRate    = 44100
	DefaultBufferTimeout = 2 * time.Second
)

// State is the lifecycle state of a capture session.
type State int

const (
	StateUninitialized State = iota
	StateRecording
	StatePaused
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is a point-in-time view of the controller.
type Session struct {
	State          State
	Channels       int
	SampleRate     int
	MaxFrames      int
	RecordedFrames int
}

// Elapsed returns the recorded length as a duration.
func (s Session) Elapsed() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(s.RecordedFrames) * time.Second / time.Duration(s.SampleRate)
}

// Hooks receive notifications from the controller. They run on the
// session's event goroutine, except that RecordingReady also runs on the
// caller of Snapshot when a snapshot completes the recording. Hooks must
// not block; they may call Close.
type Hooks struct {
	LengthChanged  func(frames int)
	Telemetry      func(TelemetryTick)
	RecordingReady func(*EncodedAudio)
}

// Options configures a Controller.
type Options struct {
	Input audio.Input
	// SampleRate defaults to DefaultSampleRate.
	SampleRate int
	// MaxDuration bounds the recording. It is capped at
	// MaxDurationSeconds.
	MaxDuration time.Duration
	// MaxFrames overrides MaxDuration when set.
	MaxFrames int
	// BitDepth defaults to wav.Bits16.
	BitDepth wav.BitDepth
	// ContentType defaults to wav.MIMEType.
	ContentType string
	// BufferTimeout defaults to DefaultBufferTimeout.
	BufferTimeout time.Duration
	QueueBlocks   int
	Hooks         Hooks
	Metrics       *observe.Metrics
	Logger        *slog.Logger
}

// session holds the resources of one opened input.
type session struct {
	stream     audio.Stream
	proc       *Processor
	port       *Port
	engine     *engine
	eventsDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (s *session) closeStream() error {
	s.closeOnce.Do(func() { s.closeErr = s.stream.Close() })
	return s.closeErr
}

// Controller drives a single capture session: it starts and pauses
// recording, requests the recorded buffer from the audio runtime and
// encodes it. Its methods are safe for concurrent use.
type Controller struct {
	opts    Options
	log     *slog.Logger
	metrics *observe.Metrics

	mu             sync.Mutex
	state          State
	sess           *session
	waiter         chan bufferReply
	closed         bool
	channels       int
	sampleRate     int
	maxFrames      int
	recordedFrames int
	inputDone      <-chan struct{}
}

// NewController returns a controller in StateUninitialized. No input is
// opened until Start.
func NewController(opts Options) *Controller {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.BitDepth == 0 {
		opts.BitDepth = wav.Bits16
	}
	if opts.ContentType == "" {
		opts.ContentType = wav.MIMEType
	}
	if opts.BufferTimeout <= 0 {
		opts.BufferTimeout = DefaultBufferTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Controller{
		opts:       opts,
		log:        log,
		metrics:    metrics,
		sampleRate: opts.SampleRate,
	}
}

// Session returns the current session state.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		State:          c.state,
		Channels:       c.channels,
		SampleRate:     c.sampleRate,
		MaxFrames:      c.maxFrames,
		RecordedFrames: c.recordedFrames,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InputDone is closed when a finite input has delivered its last block.
// It is nil for endless inputs or before Start.
func (c *Controller) InputDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputDone
}

func (c *Controller) frameCap(rate int) int {
	limit := DefaultMaxFrames(rate)
	if c.opts.MaxFrames > 0 {
		return c.opts.MaxFrames
	}
	if c.opts.MaxDuration > 0 {
		frames := int(int64(c.opts.MaxDuration) * int64(rate) / int64(time.Second))
		if frames > 0 && frames < limit {
			return frames
		}
	}
	return limit
}

// Start begins recording. The first call opens the input; after Stop it
// resumes recording into the same buffers.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePaused:
		if err := c.sess.port.Post(SetRecording(true)); err != nil {
			return fmt.Errorf("resuming recording: %w", err)
		}
		c.state = StateRecording
		c.log.Info("Recording resumed", "frames", c.recordedFrames)
		return nil
	case StateUninitialized:
	default:
		return fmt.Errorf("start while %s: %w", c.state, ErrInvalidState)
	}

	if c.opts.Input == nil {
		return fmt.Errorf("%w: no input configured", ErrDeviceAcquisition)
	}
	stream, err := c.opts.Input.Open(audio.StreamConfig{
		SampleRate:  c.opts.SampleRate,
		QueueBlocks: c.opts.QueueBlocks,
	})
	if err != nil {
		c.log.Error("Opening input failed", "input", c.opts.Input.Name(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrDeviceAcquisition, c.opts.Input.Name(), err)
	}

	rate := stream.SampleRate()
	proc, err := NewProcessor(ProcessorOptions{
		Channels:   stream.Channels(),
		SampleRate: rate,
		MaxFrames:  c.frameCap(rate),
	})
	if err != nil {
		stream.Close()
		return fmt.Errorf("building processor: %w", err)
	}

	port := newPort(stream.Queue().Submitted)
	sess := &session{
		stream:     stream,
		proc:       proc,
		port:       port,
		engine:     newEngine(proc, stream, port, c.log),
		eventsDone: make(chan struct{}),
	}
	if err := port.Post(SetRecording(true)); err != nil {
		stream.Close()
		return fmt.Errorf("starting recording: %w", err)
	}

	c.metrics.ActiveSessions.Add(ctx, 1)
	go sess.engine.run()
	go c.dispatch(sess)

	if err := stream.Start(); err != nil {
		sess.engine.stop()
		sess.closeStream()
		c.log.Error("Starting input failed", "input", c.opts.Input.Name(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrDeviceAcquisition, c.opts.Input.Name(), err)
	}

	c.sess = sess
	c.state = StateRecording
	c.channels = stream.Channels()
	c.sampleRate = rate
	c.maxFrames = proc.MaxFrames()
	c.recordedFrames = 0
	if f, ok := stream.(audio.Finite); ok {
		c.inputDone = f.Done()
	}
	c.log.Info("Recording started",
		"input", c.opts.Input.Name(),
		"channels", c.channels,
		"sample_rate", rate,
		"max_frames", c.maxFrames)
	return nil
}

// Stop pauses recording and returns everything recorded so far as WAV.
// Recording can be resumed with Start.
func (c *Controller) Stop(ctx context.Context) (*EncodedAudio, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("stop while %s: %w", state, ErrInvalidState)
	}
	if c.waiter != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("stop with a buffer request pending: %w", ErrInvalidState)
	}
	sess := c.sess
	if err := sess.port.Post(SetRecording(false)); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("pausing recording: %w", err)
	}
	reply := make(chan bufferReply, 1)
	c.state = StatePaused
	c.waiter = reply
	c.mu.Unlock()

	ev, err := c.await(ctx, sess, reply)
	if err != nil {
		return nil, err
	}
	reason := observe.ReasonStop
	if ev.Kind == EventMaxLengthReached {
		reason = observe.ReasonMaxLength
	}
	return c.encode(ctx, sess, ev.Buffer, ev.known, reason)
}

// Snapshot encodes the recording so far without changing state.
func (c *Controller) Snapshot(ctx context.Context) (*EncodedAudio, error) {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("snapshot while %s: %w", state, ErrInvalidState)
	}
	if c.waiter != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("snapshot with a buffer request pending: %w", ErrInvalidState)
	}
	sess := c.sess
	if err := sess.port.Post(RequestBuffer()); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("requesting buffer: %w", err)
	}
	reply := make(chan bufferReply, 1)
	c.waiter = reply
	c.mu.Unlock()

	ev, err := c.await(ctx, sess, reply)
	if err != nil {
		return nil, err
	}
	if ev.Kind != EventMaxLengthReached {
		return c.encode(ctx, sess, ev.Buffer, ev.known, observe.ReasonSnapshot)
	}

	enc, err := c.encode(ctx, sess, ev.Buffer, ev.known, observe.ReasonMaxLength)
	if err != nil {
		return nil, err
	}
	if h := c.opts.Hooks.RecordingReady; h != nil {
		h(enc)
	}
	return enc, nil
}

// Close stops the input and discards the recording. It is safe to call in
// any state and more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sess := c.sess
	c.sess = nil
	c.waiter = nil
	c.state = StateFinished
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	sess.engine.stop()
	if err := sess.closeStream(); err != nil {
		return fmt.Errorf("closing input: %w", err)
	}
	c.log.Info("Capture closed")
	return nil
}

func (c *Controller) await(ctx context.Context, sess *session, reply chan bufferReply) (bufferReply, error) {
	timer := time.NewTimer(c.opts.BufferTimeout)
	defer timer.Stop()

	select {
	case ev := <-reply:
		return ev, nil
	case <-sess.eventsDone:
		select {
		case ev := <-reply:
			return ev, nil
		default:
		}
		c.clearWaiter(reply)
		return bufferReply{}, fmt.Errorf("capture closed while waiting for buffer: %w", ErrInvalidState)
	case <-timer.C:
		c.clearWaiter(reply)
		c.metrics.RecordBufferTimeout(ctx)
		c.log.Warn("Buffer request timed out", "timeout", c.opts.BufferTimeout)
		return bufferReply{}, fmt.Errorf("after %s: %w", c.opts.BufferTimeout, ErrBufferTimeout)
	case <-ctx.Done():
		c.clearWaiter(reply)
		return bufferReply{}, ctx.Err()
	}
}

func (c *Controller) clearWaiter(reply chan bufferReply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiter == reply {
		c.waiter = nil
	}
}

// dispatch delivers the session's events until the audio runtime exits,
// then releases the input.
func (c *Controller) dispatch(sess *session) {
	defer c.release(sess)
	for ev := range sess.port.Events() {
		c.handleEvent(sess, ev)
	}
}

func (c *Controller) handleEvent(sess *session, ev Event) {
	switch ev.Kind {
	case EventRecordingLengthUpdated:
		c.mu.Lock()
		current := c.sess == sess
		if current {
			c.recordedFrames = ev.Frames
		}
		c.mu.Unlock()
		if h := c.opts.Hooks.LengthChanged; h != nil && current {
			h(ev.Frames)
		}

	case EventTelemetryTick:
		h := c.opts.Hooks.Telemetry
		if h == nil {
			return
		}
		c.mu.Lock()
		current := c.sess == sess
		c.mu.Unlock()
		if current {
			h(TelemetryTick{Frames: ev.Frames, Peak: ev.Peak})
		}

	case EventBufferReady, EventMaxLengthReached:
		c.mu.Lock()
		if c.sess != sess {
			c.mu.Unlock()
			return
		}
		if ev.Kind == EventMaxLengthReached {
			c.state = StateFinished
			c.recordedFrames = ev.Frames
			c.log.Info("Maximum recording length reached", "frames", ev.Frames)
		}
		known := c.recordedFrames
		if w := c.waiter; w != nil {
			c.waiter = nil
			c.mu.Unlock()
			w <- bufferReply{Event: ev, known: known}
			return
		}
		c.mu.Unlock()

		if ev.Kind != EventMaxLengthReached {
			c.log.Debug("Ignoring unsolicited event", "event", ev.Kind)
			return
		}
		enc, err := c.encode(context.Background(), sess, ev.Buffer, known, observe.ReasonMaxLength)
		if err != nil {
			return
		}
		if h := c.opts.Hooks.RecordingReady; h != nil {
			h(enc)
		}
	}
}

func (c *Controller) release(sess *session) {
	if err := sess.closeStream(); err != nil {
		c.log.Warn("Closing input failed", "error", err)
	}
	ctx := context.Background()
	c.metrics.RecordSessionDrops(ctx, sess.proc.Dropped(), sess.stream.Queue().Overruns())
	c.metrics.ActiveSessions.Add(ctx, -1)
	close(sess.eventsDone)
}

// bufferReply is a buffer hand-over together with the frame count the
// controller had seen from length events when it arrived.
type bufferReply struct {
	Event
	known int
}

// encode turns a handed-over buffer into a WAV file. The view must cover
// the known frame count; the session count then advances to the view's.
func (c *Controller) encode(ctx context.Context, sess *session, view BufferView, known int, reason string) (*EncodedAudio, error) {
	frames := view.Frames()
	if frames < known {
		err := fmt.Errorf("buffer holds %d frames, %d recorded: %w", frames, known, ErrBufferMismatch)
		c.log.Error("Encoding recording failed", "error", err)
		return nil, err
	}

	channels := make([][]float32, sess.stream.Channels())
	for ch := range channels {
		if ch >= len(view.channels) || view.channels[ch] == nil {
			err := fmt.Errorf("channel %d: %w", ch, ErrMissingChannelData)
			c.log.Error("Encoding recording failed", "error", err)
			return nil, err
		}
		if len(view.channels[ch]) < frames {
			err := fmt.Errorf("channel %d holds %d of %d frames: %w", ch, len(view.channels[ch]), frames, ErrBufferMismatch)
			c.log.Error("Encoding recording failed", "error", err)
			return nil, err
		}
		channels[ch] = view.Channel(ch)
	}

	c.mu.Lock()
	if c.sess == sess {
		c.recordedFrames = frames
	}
	c.mu.Unlock()

	format := wav.Format{
		SampleRate: sess.stream.SampleRate(),
		Channels:   len(channels),
		BitDepth:   c.opts.BitDepth,
	}
	start := time.Now()
	data, err := wav.Encode(channels, frames, format)
	if err != nil {
		c.log.Error("Encoding recording failed", "error", err)
		return nil, fmt.Errorf("encoding recording: %w", err)
	}
	elapsed := time.Since(start)
	c.metrics.RecordEncode(ctx, reason, elapsed.Seconds(), len(data))
	c.log.Info("Recording encoded",
		"reason", reason,
		"frames", frames,
		"bytes", len(data),
		"took", elapsed)

	return &EncodedAudio{
		data:        data,
		contentType: c.opts.ContentType,
		format:      format,
		frames:      frames,
	}, nil
}
