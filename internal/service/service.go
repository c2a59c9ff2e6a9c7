package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/snapcapture/internal/audio"
	"github.com/audiolibrelab/snapcapture/internal/capture"
	"github.com/audiolibrelab/snapcapture/internal/config"
	"github.com/audiolibrelab/snapcapture/internal/observe"
	"github.com/audiolibrelab/snapcapture/internal/wav"
	"gopkg.in/yaml.v3"
)

// Service represents the core SnapCapture service interface
type Service interface {
	// Recording operations
	StartRecording(ctx context.Context, name string) error
	PauseRecording(ctx context.Context) error
	ResumeRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (*RecordingInfo, error)
	SaveSnapshot(ctx context.Context) (*RecordingInfo, error)
	CancelRecording() error
	GetRecordingStatus() (RecordingStatus, *RecordingSession)
	InputDone() <-chan struct{}

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Information operations
	ListRecordings() ([]RecordingInfo, error)
	InspectRecording(filename string) (*RecordingInfo, error)
	GetLastError() string
}

// RecordingStatus represents the current recording state
type RecordingStatus string

const (
	StatusStandby   RecordingStatus = "STANDBY"
	StatusRecording RecordingStatus = "RECORDING"
	StatusPaused    RecordingStatus = "PAUSED"
	StatusError     RecordingStatus = "ERROR"
)

// RecordingSession contains information about the current recording session
type RecordingSession struct {
	Name           string        `json:"name"`
	StartTime      time.Time     `json:"start_time"`
	OutputFile     string        `json:"output_file"`
	ChannelCount   int           `json:"channel_count"`
	SampleRate     int           `json:"sample_rate"`
	RecordedFrames int           `json:"recorded_frames"`
	MaxFrames      int           `json:"max_frames"`
	Elapsed        time.Duration `json:"elapsed"`
}

// RecordingInfo describes a WAV file in the output directory
type RecordingInfo struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	Size         int64         `json:"size"`
	SizeHuman    string        `json:"size_human"`
	ModTime      time.Time     `json:"mod_time"`
	ModTimeHuman string        `json:"mod_time_human"`
	SampleRate   int           `json:"sample_rate"`
	Channels     int           `json:"channels"`
	BitDepth     int           `json:"bit_depth"`
	Frames       int           `json:"frames"`
	Duration     time.Duration `json:"duration"`
	IsLast       bool          `json:"is_last"`
}

// RecordingIndex is stored as index.yaml in the output directory
type RecordingIndex struct {
	LastRecording string `yaml:"last_recording"`
	LastUpdated   string `yaml:"last_updated"`
}

// Hooks forward controller notifications. Finished is called when a
// recording ends by itself at the maximum length and has been saved, or
// failed to save.
type Hooks struct {
	LengthChanged func(frames int)
	Telemetry     func(capture.TelemetryTick)
	Finished      func(*RecordingInfo, error)
}

// Options carries the collaborators of the service
type Options struct {
	// Stdin feeds the stdin input kind.
	Stdin   io.Reader
	Hooks   Hooks
	Metrics *observe.Metrics
	Logger  *slog.Logger

	// InputLogger receives audio backend messages. Defaults to Logger.
	InputLogger *slog.Logger
}

// SnapCaptureService is the main service implementation
type SnapCaptureService struct {
	cfg        *config.Config
	configFile string
	opts       Options
	log        *slog.Logger

	mu      sync.Mutex
	ctrl    *capture.Controller
	name    string
	started time.Time
	parts   int

	// Index file access
	indexMutex sync.Mutex

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new SnapCapture service instance
func New(cfg *config.Config, configFile string, opts Options) Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.InputLogger == nil {
		opts.InputLogger = opts.Logger
	}
	return &SnapCaptureService{
		cfg:        cfg,
		configFile: configFile,
		opts:       opts,
		log:        opts.Logger,
	}
}

// StartRecording opens the configured input and starts a new recording
func (s *SnapCaptureService) StartRecording(ctx context.Context, name string) error {
	s.log.Debug("Service.StartRecording called", "name", name)
	s.clearLastError()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil {
		return fmt.Errorf("recording %q already in progress: %w", s.name, capture.ErrInvalidState)
	}
	if cleanFileName(name) == "" {
		return fmt.Errorf("invalid recording name %q", name)
	}

	input, err := audio.NewInput(s.cfg, s.opts.Stdin, s.opts.InputLogger)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to select input: %v", err))
		return err
	}
	var ctrl *capture.Controller
	ctrl = capture.NewController(capture.Options{
		Input:         input,
		SampleRate:    s.cfg.Audio.SampleRate,
		MaxDuration:   s.cfg.Audio.MaxDuration,
		BitDepth:      wav.BitDepth(s.cfg.Audio.BitDepth),
		ContentType:   s.cfg.Output.ContentType,
		BufferTimeout: s.cfg.Audio.BufferTimeout,
		QueueBlocks:   s.cfg.Audio.QueueBlocks,
		Hooks: capture.Hooks{
			LengthChanged: s.opts.Hooks.LengthChanged,
			Telemetry:     s.opts.Hooks.Telemetry,
			RecordingReady: func(enc *capture.EncodedAudio) {
				s.onRecordingReady(ctrl, enc)
			},
		},
		Metrics: s.opts.Metrics,
		Logger:  s.log,
	})

	if err := ctrl.Start(ctx); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	s.ctrl = ctrl
	s.name = name
	s.started = time.Now()
	s.parts = 0
	s.log.Info("Recording started", "name", name, "input", input.Name())
	return nil
}

// PauseRecording pauses the recording. With output.keep_partials the
// recording so far is saved as a numbered part.
func (s *SnapCaptureService) PauseRecording(ctx context.Context) error {
	ctrl, name := s.current()
	if ctrl == nil {
		return fmt.Errorf("no recording in progress: %w", capture.ErrInvalidState)
	}
	enc, err := ctrl.Stop(ctx)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to pause recording: %v", err))
		return err
	}
	if !s.cfg.Output.KeepPartials {
		return nil
	}

	s.mu.Lock()
	s.parts++
	part := fmt.Sprintf("%s_part%02d", name, s.parts)
	s.mu.Unlock()
	if _, err := s.save(part, enc); err != nil {
		s.setLastError(fmt.Sprintf("Failed to save partial recording: %v", err))
		return err
	}
	return nil
}

// ResumeRecording continues a paused recording
func (s *SnapCaptureService) ResumeRecording(ctx context.Context) error {
	ctrl, _ := s.current()
	if ctrl == nil {
		return fmt.Errorf("no recording in progress: %w", capture.ErrInvalidState)
	}
	if err := ctrl.Start(ctx); err != nil {
		s.setLastError(fmt.Sprintf("Failed to resume recording: %v", err))
		return err
	}
	return nil
}

// StopRecording finishes the recording, saves it and releases the input
func (s *SnapCaptureService) StopRecording(ctx context.Context) (*RecordingInfo, error) {
	ctrl, name := s.current()
	if ctrl == nil {
		return nil, fmt.Errorf("no recording in progress: %w", capture.ErrInvalidState)
	}

	var enc *capture.EncodedAudio
	var err error
	if ctrl.State() == capture.StatePaused {
		enc, err = ctrl.Snapshot(ctx)
	} else {
		enc, err = ctrl.Stop(ctx)
	}
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return nil, err
	}

	s.release(ctrl)
	info, err := s.save(name, enc)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to save recording: %v", err))
		return nil, err
	}
	s.clearLastError()
	return info, nil
}

// SaveSnapshot saves the recording so far without stopping it
func (s *SnapCaptureService) SaveSnapshot(ctx context.Context) (*RecordingInfo, error) {
	ctrl, name := s.current()
	if ctrl == nil {
		return nil, fmt.Errorf("no recording in progress: %w", capture.ErrInvalidState)
	}
	enc, err := ctrl.Snapshot(ctx)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to take snapshot: %v", err))
		return nil, err
	}
	return s.save(name+"_snapshot", enc)
}

// CancelRecording discards the recording
func (s *SnapCaptureService) CancelRecording() error {
	ctrl, name := s.current()
	if ctrl == nil {
		return nil
	}
	s.release(ctrl)
	s.log.Info("Recording cancelled", "name", name)
	return nil
}

// onRecordingReady runs on the controller's event goroutine when the
// maximum length is reached.
func (s *SnapCaptureService) onRecordingReady(ctrl *capture.Controller, enc *capture.EncodedAudio) {
	s.mu.Lock()
	name := s.name
	current := s.ctrl == ctrl
	s.mu.Unlock()
	if !current {
		return
	}

	s.release(ctrl)
	info, err := s.save(name, enc)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to save recording: %v", err))
	}
	if h := s.opts.Hooks.Finished; h != nil {
		h(info, err)
	}
}

func (s *SnapCaptureService) current() (*capture.Controller, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl, s.name
}

func (s *SnapCaptureService) release(ctrl *capture.Controller) {
	s.mu.Lock()
	if s.ctrl == ctrl {
		s.ctrl = nil
	}
	s.mu.Unlock()
	if err := ctrl.Close(); err != nil {
		s.log.Warn("Closing capture failed", "error", err)
	}
}

// GetRecordingStatus returns the current recording status and session info
func (s *SnapCaptureService) GetRecordingStatus() (RecordingStatus, *RecordingSession) {
	s.mu.Lock()
	ctrl, name, started := s.ctrl, s.name, s.started
	s.mu.Unlock()

	if ctrl == nil {
		if s.GetLastError() != "" {
			return StatusError, nil
		}
		return StatusStandby, nil
	}

	sess := ctrl.Session()
	status := StatusRecording
	if sess.State == capture.StatePaused {
		status = StatusPaused
	}
	return status, &RecordingSession{
		Name:           name,
		StartTime:      started,
		OutputFile:     s.outputPath(name),
		ChannelCount:   sess.Channels,
		SampleRate:     sess.SampleRate,
		RecordedFrames: sess.RecordedFrames,
		MaxFrames:      sess.MaxFrames,
		Elapsed:        sess.Elapsed(),
	}
}

// InputDone is closed when a finite input (stdin or a bounded tone) is
// exhausted. It is nil when nothing is recording.
func (s *SnapCaptureService) InputDone() <-chan struct{} {
	ctrl, _ := s.current()
	if ctrl == nil {
		return nil
	}
	return ctrl.InputDone()
}

// LoadProfile loads a new configuration profile
func (s *SnapCaptureService) LoadProfile(profile string) error {
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil {
		return fmt.Errorf("cannot switch profile while recording %q", s.name)
	}
	s.cfg = newCfg
	return nil
}

// GetConfig returns the current configuration
func (s *SnapCaptureService) GetConfig() *config.Config {
	return s.cfg
}

// Helper functions

func cleanFileName(name string) string {
	// Remove special characters and replace spaces with underscores
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '_' || r == '-' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

func (s *SnapCaptureService) outputPath(name string) string {
	return filepath.Join(s.cfg.Output.Directory, cleanFileName(name)+".wav")
}

// save writes enc next to a temporary name and renames it into place
func (s *SnapCaptureService) save(name string, enc *capture.EncodedAudio) (*RecordingInfo, error) {
	path := s.outputPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapcapture-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	if _, err := enc.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write recording: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to move recording into place: %w", err)
	}

	s.log.Info("Recording saved",
		"path", path,
		"frames", enc.Frames(),
		"duration", enc.Duration(),
		"bytes", enc.Len())

	if err := s.updateIndex(filepath.Base(path)); err != nil {
		s.log.Warn("Failed to update recording index", "error", err)
	}
	return s.InspectRecording(filepath.Base(path))
}

// ListRecordings returns all WAV files in the output directory
func (s *SnapCaptureService) ListRecordings() ([]RecordingInfo, error) {
	dir := s.cfg.Output.Directory
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	last, _ := s.lastRecordingName()

	var recordings []RecordingInfo
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}
		if strings.ToLower(filepath.Ext(file.Name())) != ".wav" {
			continue
		}
		info, err := s.InspectRecording(file.Name())
		if err != nil {
			s.log.Warn("Failed to inspect recording", "file", file.Name(), "error", err)
			continue
		}
		info.IsLast = file.Name() == last
		recordings = append(recordings, *info)
	}

	// Newest first
	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})
	return recordings, nil
}

// InspectRecording reads the header of a recording in the output directory
func (s *SnapCaptureService) InspectRecording(filename string) (*RecordingInfo, error) {
	if filename != filepath.Base(filename) {
		return nil, fmt.Errorf("invalid recording name %q", filename)
	}
	path := filepath.Join(s.cfg.Output.Directory, filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recording not found: %s", filename)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filename, err)
	}
	hdr, err := wav.Inspect(f)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", filename, err)
	}

	return &RecordingInfo{
		Name:         filename,
		Path:         path,
		Size:         stat.Size(),
		SizeHuman:    formatBytes(stat.Size()),
		ModTime:      stat.ModTime(),
		ModTimeHuman: stat.ModTime().Format("2006-01-02 15:04:05"),
		SampleRate:   hdr.SampleRate,
		Channels:     hdr.Channels,
		BitDepth:     hdr.BitDepth,
		Frames:       hdr.Frames,
		Duration:     hdr.Duration,
	}, nil
}

// Helper methods for the recording index

func (s *SnapCaptureService) indexPath() string {
	return filepath.Join(s.cfg.Output.Directory, "index.yaml")
}

func (s *SnapCaptureService) lastRecordingName() (string, error) {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read recording index: %w", err)
	}

	var index RecordingIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return "", fmt.Errorf("failed to parse recording index: %w", err)
	}
	return index.LastRecording, nil
}

func (s *SnapCaptureService) updateIndex(filename string) error {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	data, err := yaml.Marshal(&RecordingIndex{
		LastRecording: filename,
		LastUpdated:   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal recording index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write recording index: %w", err)
	}
	return nil
}

// GetLastError returns the last error message (thread-safe)
func (s *SnapCaptureService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *SnapCaptureService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	s.log.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *SnapCaptureService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
