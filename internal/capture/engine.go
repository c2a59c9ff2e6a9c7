package capture

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/audiolibrelab/snapcapture/internal/audio"
)

// engine is the audio runtime: a single goroutine that feeds input blocks
// to the processor, applies control messages between blocks and forwards
// the processor's outbox to the controller. Nothing else touches the
// processor.
type engine struct {
	proc   *Processor
	stream audio.Stream
	queue  *audio.BlockQueue
	port   *Port
	log    *slog.Logger

	// processed counts blocks taken from the queue. A control message
	// posted with mark m applies once processed reaches m; until then it
	// is held in pending and no later message is read.
	processed uint64
	pending   posted
	held      bool

	in      [][]float32
	out     [][]float32
	monitor [][]float32

	quit     chan struct{}
	quitOnce sync.Once
	finished chan struct{}
}

func newEngine(proc *Processor, stream audio.Stream, port *Port, log *slog.Logger) *engine {
	channels := stream.Channels()
	e := &engine{
		proc:     proc,
		stream:   stream,
		queue:    stream.Queue(),
		port:     port,
		log:      log,
		in:       make([][]float32, 0, channels),
		out:      make([][]float32, channels),
		monitor:  make([][]float32, channels),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	for ch := range e.monitor {
		e.monitor[ch] = make([]float32, audio.BlockSize)
	}
	return e
}

// run must be started before the input stream so control messages posted
// ahead of the first block apply to it.
func (e *engine) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.finished)
	defer close(e.port.events)

	filled := e.queue.Filled()
	for {
		e.applyDue()
		if e.stopped() {
			return
		}
		if e.proc.Terminated() {
			e.finish()
			return
		}

		var control <-chan posted
		if !e.held {
			control = e.port.control
		}
		var events chan<- Event
		var next Event
		if e.proc.outbox.pending() {
			events = e.port.events
			next = e.proc.outbox.peek()
		}

		select {
		case <-e.quit:
			return
		case pc := <-control:
			e.pending, e.held = pc, true
		case b := <-filled:
			// A message posted before this block was submitted may be
			// ready too; select does not prefer it.
			e.applyDue()
			e.process(b)
		case events <- next:
			e.proc.outbox.pop()
		}
	}
}

// applyDue applies queued control messages in order until it meets one
// whose mark is ahead of the processed blocks, which stays held.
func (e *engine) applyDue() {
	for !e.proc.Terminated() {
		if !e.held {
			select {
			case e.pending = <-e.port.control:
				e.held = true
			default:
				return
			}
		}
		if e.pending.mark > e.processed {
			return
		}
		if !e.ensureRoom() {
			return
		}
		e.proc.HandleMessage(e.pending.msg)
		e.held = false
	}
}

func (e *engine) process(b *audio.Block) {
	defer e.queue.Release(b)
	e.processed++
	if !e.ensureRoom() {
		return
	}
	in := b.Channels(e.in)
	for ch := range e.out {
		e.out[ch] = e.monitor[ch][:b.Frames]
	}
	e.proc.Process(in, e.out)
}

// ensureRoom delivers events until the outbox can take the critical events
// of one more block. It returns false if the engine is asked to quit.
func (e *engine) ensureRoom() bool {
	for e.proc.outbox.free() < outboxReserve {
		select {
		case e.port.events <- e.proc.outbox.peek():
			e.proc.outbox.pop()
		case <-e.quit:
			return false
		}
	}
	return true
}

// finish stops the input after the frame cap and delivers every remaining
// event.
func (e *engine) finish() {
	if err := e.stream.Stop(); err != nil {
		e.log.Warn("Stopping input after max length failed", "error", err)
	}
	for e.proc.outbox.pending() {
		select {
		case e.port.events <- e.proc.outbox.peek():
			e.proc.outbox.pop()
		case <-e.quit:
			return
		}
	}
}

func (e *engine) stopped() bool {
	select {
	case <-e.quit:
		return true
	default:
		return false
	}
}

// stop makes the engine exit without delivering pending events and waits
// for it.
func (e *engine) stop() {
	e.quitOnce.Do(func() { close(e.quit) })
	<-e.finished
}
