package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/audiolibrelab/snapcapture/internal/wav"

	"github.com/spf13/viper"
)

// Input kinds.
const (
	InputDevice = "device"
	InputStdin  = "stdin"
	InputTone   = "tone"
)

// Limits enforced by validation.
const (
	MinSampleRate  = 8000
	MaxSampleRate  = 192000
	MaxDuration    = 300 * time.Second
	MaxChannels    = 8
	DefaultProfile = "default"
)

type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Logging      *LoggingConfig     `mapstructure:"logging,omitempty" yaml:"logging,omitempty"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Input   InputConfig   `mapstructure:"input" yaml:"input"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Logging LoggingConfig `mapstructure:"-" yaml:"logging"`

	// Profile is the name of the resolved profile.
	Profile string `mapstructure:"-" yaml:"-"`
	// Inheritance maps a setting path such as "audio.sample_rate" to
	// "inherited" or "profile-specific".
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

type AudioConfig struct {
	SampleRate    int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	BitDepth      int           `mapstructure:"bit_depth" yaml:"bit_depth"`
	MaxDuration   time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	BufferTimeout time.Duration `mapstructure:"buffer_timeout" yaml:"buffer_timeout"`
	QueueBlocks   int           `mapstructure:"queue_blocks" yaml:"queue_blocks"`
}

type InputConfig struct {
	Kind          string        `mapstructure:"kind" yaml:"kind"`     // "device", "stdin", "tone"
	Device        string        `mapstructure:"device" yaml:"device"` // device ID or name, empty for default
	Channels      int           `mapstructure:"channels" yaml:"channels"`
	ToneFrequency float64       `mapstructure:"tone_frequency" yaml:"tone_frequency"`
	ToneAmplitude float64       `mapstructure:"tone_amplitude" yaml:"tone_amplitude"`
	ToneDuration  time.Duration `mapstructure:"tone_duration" yaml:"tone_duration"`
}

type OutputConfig struct {
	Directory    string `mapstructure:"directory" yaml:"directory"`
	ContentType  string `mapstructure:"content_type" yaml:"content_type"`
	KeepPartials bool   `mapstructure:"keep_partials" yaml:"keep_partials"`
}

type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		SampleRate:    44100,
		BitDepth:      16,
		MaxDuration:   MaxDuration,
		BufferTimeout: 2 * time.Second,
		QueueBlocks:   64,
	},
	Input: InputConfig{
		Kind:          InputDevice,
		Channels:      1,
		ToneFrequency: 440,
		ToneAmplitude: 0.5,
	},
	Output: OutputConfig{
		Directory:   filepath.Join("~", "Audio", "SnapCapture"),
		ContentType: "audio/wave",
	},
	Logging: LoggingConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	},
}

// Default returns the built-in configuration, used when no config file
// exists.
func Default() *Config {
	cfg := defaultConfig
	cfg.Profile = DefaultProfile
	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	return &cfg
}

// LoadWithProfile reads configFile and resolves the requested profile. An
// empty profile selects active_config, then "default". Profiles inherit
// every unset value from the "default" profile, which in turn inherits from
// the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := readRootConfig(configFile)
	if err != nil {
		return nil, err
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = DefaultProfile
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists && configName != DefaultProfile {
		return nil, fmt.Errorf("configuration profile '%s' not found (available: %s)",
			configName, strings.Join(profileNames(rootConfig), ", "))
	}

	result := mergeConfigs(&defaultConfig, rootConfig.Configs[DefaultProfile])
	if configName != DefaultProfile {
		result = mergeConfigs(result, selected)
	}
	result.Profile = configName

	if rootConfig.Logging != nil {
		result.Logging = mergeLogging(result.Logging, *rootConfig.Logging)
	}
	result.Output.Directory = expandPath(result.Output.Directory)
	result.Logging.File = expandPath(result.Logging.File)

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return result, nil
}

func readRootConfig(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("SNAPCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if v.IsSet("active_config") {
		rootConfig.ActiveConfig = v.GetString("active_config")
	}
	return &rootConfig, nil
}

// Profiles lists the profile names defined in configFile.
func Profiles(configFile string) ([]string, string, error) {
	rootConfig, err := readRootConfig(configFile)
	if err != nil {
		return nil, "", err
	}
	return profileNames(rootConfig), rootConfig.ActiveConfig, nil
}

func profileNames(rootConfig *RootConfig) []string {
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// mergeConfigs overlays every non-zero value of profile onto base and
// records where each value came from.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: make(map[string]string)}
	if base != nil {
		result.Audio = base.Audio
		result.Input = base.Input
		result.Output = base.Output
		result.Logging = base.Logging
	}
	for _, key := range settingKeys {
		result.Inheritance[key] = "inherited"
	}
	if profile == nil {
		return result
	}

	set := func(key string, apply bool, fn func()) {
		if apply {
			fn()
			result.Inheritance[key] = "profile-specific"
		}
	}
	p := profile
	set("audio.sample_rate", p.Audio.SampleRate != 0, func() { result.Audio.SampleRate = p.Audio.SampleRate })
	set("audio.bit_depth", p.Audio.BitDepth != 0, func() { result.Audio.BitDepth = p.Audio.BitDepth })
	set("audio.max_duration", p.Audio.MaxDuration != 0, func() { result.Audio.MaxDuration = p.Audio.MaxDuration })
	set("audio.buffer_timeout", p.Audio.BufferTimeout != 0, func() { result.Audio.BufferTimeout = p.Audio.BufferTimeout })
	set("audio.queue_blocks", p.Audio.QueueBlocks != 0, func() { result.Audio.QueueBlocks = p.Audio.QueueBlocks })
	set("input.kind", p.Input.Kind != "", func() { result.Input.Kind = p.Input.Kind })
	set("input.device", p.Input.Device != "", func() { result.Input.Device = p.Input.Device })
	set("input.channels", p.Input.Channels != 0, func() { result.Input.Channels = p.Input.Channels })
	set("input.tone_frequency", p.Input.ToneFrequency != 0, func() { result.Input.ToneFrequency = p.Input.ToneFrequency })
	set("input.tone_amplitude", p.Input.ToneAmplitude != 0, func() { result.Input.ToneAmplitude = p.Input.ToneAmplitude })
	set("input.tone_duration", p.Input.ToneDuration != 0, func() { result.Input.ToneDuration = p.Input.ToneDuration })
	set("output.directory", p.Output.Directory != "", func() { result.Output.Directory = p.Output.Directory })
	set("output.content_type", p.Output.ContentType != "", func() { result.Output.ContentType = p.Output.ContentType })
	set("output.keep_partials", p.Output.KeepPartials, func() { result.Output.KeepPartials = true })
	return result
}

var settingKeys = []string{
	"audio.sample_rate", "audio.bit_depth", "audio.max_duration", "audio.buffer_timeout", "audio.queue_blocks",
	"input.kind", "input.device", "input.channels", "input.tone_frequency", "input.tone_amplitude", "input.tone_duration",
	"output.directory", "output.content_type", "output.keep_partials",
}

// SettingKeys returns the setting paths tracked in Config.Inheritance, in
// display order.
func SettingKeys() []string {
	return append([]string(nil), settingKeys...)
}

func mergeLogging(base, override LoggingConfig) LoggingConfig {
	if override.File != "" {
		base.File = override.File
	}
	if override.MaxSizeMB != 0 {
		base.MaxSizeMB = override.MaxSizeMB
	}
	if override.MaxBackups != 0 {
		base.MaxBackups = override.MaxBackups
	}
	if override.MaxAgeDays != 0 {
		base.MaxAgeDays = override.MaxAgeDays
	}
	if override.Compress {
		base.Compress = true
	}
	return base
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be between %d and %d, got %d",
			MinSampleRate, MaxSampleRate, c.Audio.SampleRate))
	}
	if _, err := wav.ParseBitDepth(c.Audio.BitDepth); err != nil {
		errs = append(errs, fmt.Errorf("audio.bit_depth: %w", err))
	}
	if c.Audio.MaxDuration <= 0 || c.Audio.MaxDuration > MaxDuration {
		errs = append(errs, fmt.Errorf("audio.max_duration must be in (0, %s], got %s", MaxDuration, c.Audio.MaxDuration))
	}
	if c.Audio.BufferTimeout <= 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_timeout must be > 0, got %s", c.Audio.BufferTimeout))
	}
	if c.Audio.QueueBlocks < 0 {
		errs = append(errs, fmt.Errorf("audio.queue_blocks must be >= 0, got %d", c.Audio.QueueBlocks))
	}

	switch c.Input.Kind {
	case InputDevice, InputStdin:
	case InputTone:
		if c.Input.ToneFrequency <= 0 || c.Input.ToneFrequency >= float64(c.Audio.SampleRate)/2 {
			errs = append(errs, fmt.Errorf("input.tone_frequency must be between 0 and the Nyquist frequency, got %.1f",
				c.Input.ToneFrequency))
		}
		if c.Input.ToneAmplitude <= 0 || c.Input.ToneAmplitude > 1 {
			errs = append(errs, fmt.Errorf("input.tone_amplitude must be in (0, 1], got %.2f", c.Input.ToneAmplitude))
		}
	default:
		errs = append(errs, fmt.Errorf("input.kind must be '%s', '%s' or '%s', got: %s",
			InputDevice, InputStdin, InputTone, c.Input.Kind))
	}
	if c.Input.Channels < 1 || c.Input.Channels > MaxChannels {
		errs = append(errs, fmt.Errorf("input.channels must be between 1 and %d, got %d", MaxChannels, c.Input.Channels))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output.directory is required"))
	}
	if _, err := wav.NormalizeContentType(c.Output.ContentType); err != nil {
		errs = append(errs, fmt.Errorf("output.content_type: %w", err))
	}

	return errors.Join(errs...)
}
