//go:build cgo && !noaudio

package audio

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

const deviceSupport = true

// MalgoInput captures from a system audio device through miniaudio.
type MalgoInput struct {
	// Device selects the capture device by ID or name. Empty selects the
	// system default.
	Device       string
	ChannelCount int
	Logger       *slog.Logger
}

func (in *MalgoInput) Name() string { return "device" }

func (in *MalgoInput) Open(cfg StreamConfig) (Stream, error) {
	log := in.Logger
	if log == nil {
		log = slog.Default()
	}
	channels := in.ChannelCount
	if channels <= 0 {
		channels = 1
	}

	mctx, err := newMalgoContext(log)
	if err != nil {
		return nil, err
	}
	s := &malgoStream{
		mctx:     mctx,
		q:        NewBlockQueue(channels, cfg.queueBlocks()),
		channels: channels,
		rate:     cfg.SampleRate,
		log:      log,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.Alsa.NoMMap = 1

	if in.Device != "" {
		devices, err := listMalgoDevices(mctx, log)
		if err != nil {
			s.freeContext()
			return nil, fmt.Errorf("listing capture devices: %w", err)
		}
		dev, err := FindDevice(in.Device, devices)
		if err != nil {
			s.freeContext()
			return nil, err
		}
		if dev != nil {
			if s.deviceID, err = parseDeviceID(dev.ID); err != nil {
				s.freeContext()
				return nil, err
			}
			deviceConfig.Capture.DeviceID = s.deviceID.Pointer()
			log.Debug("Selected capture device", "id", dev.ID, "name", dev.Name)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
	})
	if err != nil {
		s.freeContext()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	s.device = device
	return s, nil
}

type malgoStream struct {
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	deviceID malgo.DeviceID
	q        *BlockQueue
	channels int
	rate     int
	log      *slog.Logger

	// cur is only touched from the device callback.
	cur *Block

	closeOnce sync.Once
}

func (s *malgoStream) Queue() *BlockQueue { return s.q }
func (s *malgoStream) Channels() int      { return s.channels }
func (s *malgoStream) SampleRate() int    { return s.rate }

func (s *malgoStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("starting capture device: %w", err)
	}
	return nil
}

func (s *malgoStream) Stop() error {
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("stopping capture device: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	s.closeOnce.Do(func() {
		s.device.Uninit()
		s.freeContext()
	})
	return nil
}

func (s *malgoStream) freeContext() {
	_ = s.mctx.Uninit()
	s.mctx.Free()
}

// onData runs on the driver thread. It rebuffers interleaved float32
// frames into queue blocks and drops the rest of the callback when the
// pool is exhausted.
func (s *malgoStream) onData(_, input []byte, frameCount uint32) {
	stride := 4 * s.channels
	frames := int(frameCount)
	if avail := len(input) / stride; frames > avail {
		frames = avail
	}
	for i := 0; i < frames; i++ {
		if s.cur == nil {
			b, ok := s.q.TryAcquire()
			if !ok {
				return
			}
			s.cur = b
		}
		off := i * stride
		for ch := 0; ch < s.channels; ch++ {
			s.cur.Data[ch][s.cur.Frames] = math.Float32frombits(binary.LittleEndian.Uint32(input[off+4*ch:]))
		}
		s.cur.Frames++
		if s.cur.Frames == BlockSize {
			s.q.Submit(s.cur)
			s.cur = nil
		}
	}
}

func newMalgoContext(log *slog.Logger) (*malgo.AllocatedContext, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("miniaudio", "message", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	return mctx, nil
}

func listMalgoDevices(mctx *malgo.AllocatedContext, log *slog.Logger) ([]Device, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}

	res := make([]Device, 0, len(infos))
	seen := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		full, err := mctx.DeviceInfo(malgo.Capture, info.ID, malgo.Shared)
		if err != nil {
			log.Warn("Unable to get capture device info", "error", err)
			continue
		}
		id := hex.EncodeToString(bytes.TrimRight(full.ID[:], "\x00"))
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, Device{
			ID:        id,
			Name:      full.Name(),
			IsDefault: full.IsDefault == 1,
		})
	}
	return res, nil
}

func parseDeviceID(id string) (malgo.DeviceID, error) {
	var res malgo.DeviceID
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) > len(res) {
		return res, fmt.Errorf("%w: malformed device id %q", ErrDeviceNotFound, id)
	}
	copy(res[:], raw)
	return res, nil
}

// ListDevices returns the capture devices known to the audio backend.
func ListDevices(log *slog.Logger) ([]Device, error) {
	if log == nil {
		log = slog.Default()
	}
	mctx, err := newMalgoContext(log)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()
	return listMalgoDevices(mctx, log)
}
