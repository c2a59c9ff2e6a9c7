package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// ToneInput generates a sine wave. It stands in for a microphone when no
// capture hardware is available.
type ToneInput struct {
	Frequency    float64
	Amplitude    float64
	ChannelCount int
	// Duration bounds the stream. Zero means endless.
	Duration time.Duration
	// Unpaced generates blocks as fast as they are consumed instead of in
	// real time.
	Unpaced bool
}

func (in *ToneInput) Name() string { return "tone" }

func (in *ToneInput) Open(cfg StreamConfig) (Stream, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	if in.Frequency <= 0 || in.Frequency >= float64(cfg.SampleRate)/2 {
		return nil, fmt.Errorf("tone frequency %.1f Hz outside (0, %d)", in.Frequency, cfg.SampleRate/2)
	}
	channels := in.ChannelCount
	if channels <= 0 {
		channels = 1
	}
	total := -1
	if in.Duration > 0 {
		total = int(in.Duration.Seconds() * float64(cfg.SampleRate))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &toneStream{
		cfg:      *in,
		q:        NewBlockQueue(channels, cfg.queueBlocks()),
		channels: channels,
		rate:     cfg.SampleRate,
		total:    total,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

type toneStream struct {
	cfg      ToneInput
	q        *BlockQueue
	channels int
	rate     int
	total    int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	start  sync.Once
}

func (s *toneStream) Queue() *BlockQueue    { return s.q }
func (s *toneStream) Channels() int         { return s.channels }
func (s *toneStream) SampleRate() int       { return s.rate }
func (s *toneStream) Done() <-chan struct{} { return s.done }

func (s *toneStream) Start() error {
	s.start.Do(func() { go s.run() })
	return nil
}

func (s *toneStream) Stop() error {
	s.cancel()
	return nil
}

func (s *toneStream) Close() error {
	s.cancel()
	return nil
}

func (s *toneStream) run() {
	defer close(s.done)

	var tick <-chan time.Time
	if !s.cfg.Unpaced {
		period := time.Duration(BlockSize) * time.Second / time.Duration(s.rate)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	step := 2 * math.Pi * s.cfg.Frequency / float64(s.rate)
	frame := 0
	for s.total < 0 || frame < s.total {
		var b *Block
		if tick != nil {
			select {
			case <-tick:
			case <-s.ctx.Done():
				return
			}
			var ok bool
			if b, ok = s.q.TryAcquire(); !ok {
				frame += BlockSize
				continue
			}
		} else {
			var err error
			if b, err = s.q.Acquire(s.ctx); err != nil {
				return
			}
		}

		n := BlockSize
		if s.total >= 0 && s.total-frame < n {
			n = s.total - frame
		}
		for i := 0; i < n; i++ {
			v := float32(s.cfg.Amplitude * math.Sin(step*float64(frame+i)))
			for ch := range b.Data {
				b.Data[ch][i] = v
			}
		}
		b.Frames = n
		frame += n
		s.q.Submit(b)
	}
}
