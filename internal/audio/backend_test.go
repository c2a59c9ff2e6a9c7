package audio

import (
	"bytes"
	"testing"

	"github.com/audiolibrelab/snapcapture/internal/config"
)

func TestNewInput(t *testing.T) {
	tests := []struct {
		kind     string
		wantName string
	}{
		{config.InputDevice, "device"},
		{"", "device"},
		{"Auto", "device"},
		{config.InputStdin, "reader"},
		{config.InputTone, "tone"},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Input.Kind = tt.kind
		in, err := NewInput(cfg, bytes.NewReader(nil), nil)
		if err != nil {
			t.Errorf("NewInput(%q) error = %v", tt.kind, err)
			continue
		}
		if in.Name() != tt.wantName {
			t.Errorf("NewInput(%q).Name() = %q, want %q", tt.kind, in.Name(), tt.wantName)
		}
	}
}

func TestNewInputErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Input.Kind = config.InputStdin
	if _, err := NewInput(cfg, nil, nil); err == nil {
		t.Error("expected error for stdin input without a reader")
	}

	cfg.Input.Kind = "network"
	if _, err := NewInput(cfg, nil, nil); err == nil {
		t.Error("expected error for unknown input kind")
	}
}

func TestAvailableInputs(t *testing.T) {
	kinds := AvailableInputs()
	seen := map[InputKind]bool{}
	for _, k := range kinds {
		seen[k] = true
	}
	if !seen[InputKindStdin] || !seen[InputKindTone] {
		t.Errorf("AvailableInputs() = %v, want stdin and tone", kinds)
	}
	if seen[InputKindDevice] != deviceSupport {
		t.Errorf("device input listed = %v, build support = %v", seen[InputKindDevice], deviceSupport)
	}
}
