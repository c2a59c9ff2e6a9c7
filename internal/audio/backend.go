package audio

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/audiolibrelab/snapcapture/internal/config"
)

// InputKind names a capture source.
type InputKind string

const (
	InputKindDevice InputKind = config.InputDevice
	InputKindStdin  InputKind = config.InputStdin
	InputKindTone   InputKind = config.InputTone
)

// NewInput builds the input selected by the configuration. stdin feeds the
// stdin kind and may be nil for the others.
func NewInput(cfg *config.Config, stdin io.Reader, log *slog.Logger) (Input, error) {
	if log == nil {
		log = slog.Default()
	}
	switch determineInput(cfg) {
	case InputKindDevice:
		return &MalgoInput{
			Device:       cfg.Input.Device,
			ChannelCount: cfg.Input.Channels,
			Logger:       log,
		}, nil
	case InputKindStdin:
		if stdin == nil {
			return nil, fmt.Errorf("stdin input selected but no reader given")
		}
		return &ReaderInput{
			R:            stdin,
			ChannelCount: cfg.Input.Channels,
			Logger:       log,
		}, nil
	case InputKindTone:
		return &ToneInput{
			Frequency:    cfg.Input.ToneFrequency,
			Amplitude:    cfg.Input.ToneAmplitude,
			ChannelCount: cfg.Input.Channels,
			Duration:     cfg.Input.ToneDuration,
		}, nil
	}
	return nil, fmt.Errorf("unknown input kind %q", cfg.Input.Kind)
}

func determineInput(cfg *config.Config) InputKind {
	kind := strings.ToLower(strings.TrimSpace(cfg.Input.Kind))
	if kind == "" || kind == "auto" {
		return InputKindDevice
	}
	return InputKind(kind)
}

// AvailableInputs returns the input kinds usable in this build.
func AvailableInputs() []InputKind {
	kinds := []InputKind{InputKindStdin, InputKindTone}
	if deviceSupport {
		kinds = append([]InputKind{InputKindDevice}, kinds...)
	}
	return kinds
}
