package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
)

// ReaderInput reads raw interleaved little-endian float32 frames (f32le)
// from R. The stream ends at EOF; a trailing partial block is submitted
// short and a trailing partial frame is discarded.
type ReaderInput struct {
	R            io.Reader
	ChannelCount int
	Logger       *slog.Logger
}

func (in *ReaderInput) Name() string { return "reader" }

func (in *ReaderInput) Open(cfg StreamConfig) (Stream, error) {
	if in.R == nil {
		return nil, errors.New("reader input has no source")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	channels := in.ChannelCount
	if channels <= 0 {
		channels = 1
	}
	log := in.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &readerStream{
		r:        in.R,
		q:        NewBlockQueue(channels, cfg.queueBlocks()),
		channels: channels,
		rate:     cfg.SampleRate,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log,
	}, nil
}

type readerStream struct {
	r        io.Reader
	q        *BlockQueue
	channels int
	rate     int
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	start  sync.Once

	mu  sync.Mutex
	err error
}

func (s *readerStream) Queue() *BlockQueue    { return s.q }
func (s *readerStream) Channels() int         { return s.channels }
func (s *readerStream) SampleRate() int       { return s.rate }
func (s *readerStream) Done() <-chan struct{} { return s.done }

func (s *readerStream) Start() error {
	s.start.Do(func() { go s.run() })
	return nil
}

func (s *readerStream) Stop() error {
	s.cancel()
	return nil
}

// Close stops the reader goroutine. A read blocked on the underlying reader
// is abandoned rather than waited for.
func (s *readerStream) Close() error {
	s.cancel()
	return nil
}

// Err returns the read error that ended the stream, if any.
func (s *readerStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *readerStream) run() {
	defer close(s.done)

	br := bufio.NewReaderSize(s.r, 64*1024)
	frame := make([]byte, 4*s.channels)
	var cur *Block
	for {
		if cur == nil {
			b, err := s.q.Acquire(s.ctx)
			if err != nil {
				return
			}
			cur = b
		}
		if _, err := io.ReadFull(br, frame); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				s.log.Error("Reading raw audio failed", "error", err)
			}
			break
		}
		for ch := 0; ch < s.channels; ch++ {
			cur.Data[ch][cur.Frames] = math.Float32frombits(binary.LittleEndian.Uint32(frame[4*ch:]))
		}
		cur.Frames++
		if cur.Frames == BlockSize {
			s.q.Submit(cur)
			cur = nil
		}
	}
	if cur.Frames > 0 {
		s.q.Submit(cur)
	} else {
		s.q.Release(cur)
	}
	s.log.Debug("Raw audio input reached end of stream")
}

// EncodeF32LE interleaves channels into the raw format read by ReaderInput.
func EncodeF32LE(channels [][]float32) []byte {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]byte, 0, frames*len(channels)*4)
	for i := 0; i < frames; i++ {
		for _, ch := range channels {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(ch[i]))
		}
	}
	return out
}
