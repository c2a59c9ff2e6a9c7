package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMergeConfigs_SelectionAndFallback(t *testing.T) {
	base := &Config{
		Audio: AudioConfig{
			SampleRate:    44100,
			BitDepth:      16,
			MaxDuration:   300 * time.Second,
			BufferTimeout: 2 * time.Second,
		},
		Input: InputConfig{Kind: InputDevice, Channels: 1},
		Output: OutputConfig{
			Directory:   "~/Audio/Default",
			ContentType: "audio/wave",
		},
	}

	profile := &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			BitDepth:   32,
		},
		Input: InputConfig{Kind: InputTone},
		Output: OutputConfig{
			Directory: "~/Audio/Voice",
		},
	}

	result := mergeConfigs(base, profile)

	if result.Audio.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", result.Audio.SampleRate)
	}
	if result.Audio.BitDepth != 32 {
		t.Errorf("Expected bit depth 32, got %d", result.Audio.BitDepth)
	}
	if result.Audio.MaxDuration != 300*time.Second {
		t.Errorf("Expected inherited max duration 5m, got %s", result.Audio.MaxDuration)
	}
	if result.Audio.BufferTimeout != 2*time.Second {
		t.Errorf("Expected inherited buffer timeout 2s, got %s", result.Audio.BufferTimeout)
	}
	if result.Input.Kind != InputTone {
		t.Errorf("Expected input kind tone, got %s", result.Input.Kind)
	}
	if result.Input.Channels != 1 {
		t.Errorf("Expected inherited channel count 1, got %d", result.Input.Channels)
	}
	if result.Output.Directory != "~/Audio/Voice" {
		t.Errorf("Expected directory ~/Audio/Voice, got %s", result.Output.Directory)
	}
	if result.Output.ContentType != "audio/wave" {
		t.Errorf("Expected inherited content type audio/wave, got %s", result.Output.ContentType)
	}

	inheritance := map[string]string{
		"audio.sample_rate":    "profile-specific",
		"audio.bit_depth":      "profile-specific",
		"audio.max_duration":   "inherited",
		"input.kind":           "profile-specific",
		"input.channels":       "inherited",
		"output.directory":     "profile-specific",
		"output.content_type":  "inherited",
		"output.keep_partials": "inherited",
	}
	for key, want := range inheritance {
		if got := result.Inheritance[key]; got != want {
			t.Errorf("Inheritance[%s] = %q, expected %q", key, got, want)
		}
	}
}

func TestMergeConfigs_EmptyProfile(t *testing.T) {
	base := &defaultConfig
	result := mergeConfigs(base, nil)

	if result.Audio != base.Audio || result.Input != base.Input || result.Output != base.Output {
		t.Errorf("Expected base values to be copied, got %+v", result)
	}
	for _, key := range SettingKeys() {
		if result.Inheritance[key] != "inherited" {
			t.Errorf("Expected %s to be inherited, got %q", key, result.Inheritance[key])
		}
	}
}

func TestMergeConfigs_DoesNotMutateBase(t *testing.T) {
	base := defaultConfig
	profile := &Config{Audio: AudioConfig{SampleRate: 22050}}

	_ = mergeConfigs(&base, profile)

	if base.Audio.SampleRate != 44100 {
		t.Errorf("Base config was modified: sample rate %d", base.Audio.SampleRate)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Audio/SnapCapture", filepath.Join(homeDir, "Audio", "SnapCapture")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"}, // Should not expand bare tilde
	}

	for _, test := range tests {
		result := expandPath(test.input)
		if result != test.expected {
			t.Errorf("expandPath(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Expected default sample rate 44100, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.MaxDuration != 300*time.Second {
		t.Errorf("Expected default max duration 5m, got %s", cfg.Audio.MaxDuration)
	}
	if strings.HasPrefix(cfg.Output.Directory, "~") {
		t.Errorf("Expected expanded output directory, got %s", cfg.Output.Directory)
	}
	if cfg.Profile != DefaultProfile {
		t.Errorf("Expected profile %q, got %q", DefaultProfile, cfg.Profile)
	}
}

func TestLoggingFromRootSection(t *testing.T) {
	configContent := `active_config: default
logging:
  file: /tmp/snapcapture-test.log
  max_backups: 7
configs:
  default:
    output:
      directory: /tmp/snapcapture
`
	configFile := createTempConfig(t, configContent)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.File != "/tmp/snapcapture-test.log" {
		t.Errorf("Expected log file from root section, got %q", cfg.Logging.File)
	}
	if cfg.Logging.MaxBackups != 7 {
		t.Errorf("Expected max_backups 7, got %d", cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Expected default max_size_mb 10, got %d", cfg.Logging.MaxSizeMB)
	}
}
