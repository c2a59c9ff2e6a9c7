package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/audiolibrelab/snapcapture/internal/audio"
	"github.com/audiolibrelab/snapcapture/internal/capture"
	"github.com/audiolibrelab/snapcapture/internal/config"
	"github.com/audiolibrelab/snapcapture/internal/observe"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Input.Kind = config.InputStdin
	cfg.Audio.SampleRate = 8000
	cfg.Output.Directory = t.TempDir()
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, stdin io.Reader, hooks Hooks) *SnapCaptureService {
	t.Helper()
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	svc := New(cfg, "", Options{
		Stdin:   stdin,
		Hooks:   hooks,
		Metrics: metrics,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).(*SnapCaptureService)
	t.Cleanup(func() { svc.CancelRecording() })
	return svc
}

func silence(frames int) io.Reader {
	return bytes.NewReader(audio.EncodeF32LE([][]float32{make([]float32, frames)}))
}

func waitInput(t *testing.T, svc Service) {
	t.Helper()
	select {
	case <-svc.InputDone():
	case <-time.After(5 * time.Second):
		t.Fatal("input did not finish")
	}
}

func TestStartStopSavesRecording(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, silence(8000), Hooks{})
	ctx := context.Background()

	if err := svc.StartRecording(ctx, "Morning Take #1"); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	status, session := svc.GetRecordingStatus()
	if status != StatusRecording || session == nil {
		t.Fatalf("GetRecordingStatus() = %v, %v", status, session)
	}
	if want := filepath.Join(cfg.Output.Directory, "Morning_Take_1.wav"); session.OutputFile != want {
		t.Errorf("OutputFile = %q, want %q", session.OutputFile, want)
	}
	waitInput(t, svc)

	info, err := svc.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	if info.Frames != 8000 || info.Duration != time.Second {
		t.Errorf("saved frames=%d duration=%v, want 8000 / 1s", info.Frames, info.Duration)
	}
	if info.Size != 44+8000*2 {
		t.Errorf("saved size = %d, want %d", info.Size, 44+8000*2)
	}
	if status, _ := svc.GetRecordingStatus(); status != StatusStandby {
		t.Errorf("status after stop = %v, want STANDBY", status)
	}

	recordings, err := svc.ListRecordings()
	if err != nil {
		t.Fatalf("ListRecordings() error = %v", err)
	}
	if len(recordings) != 1 || recordings[0].Name != "Morning_Take_1.wav" || !recordings[0].IsLast {
		t.Errorf("ListRecordings() = %+v", recordings)
	}
}

func TestPauseKeepsPartials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.KeepPartials = true
	svc := newTestService(t, cfg, silence(1000), Hooks{})
	ctx := context.Background()

	if err := svc.StartRecording(ctx, "jam"); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	waitInput(t, svc)
	if err := svc.PauseRecording(ctx); err != nil {
		t.Fatalf("PauseRecording() error = %v", err)
	}
	if status, _ := svc.GetRecordingStatus(); status != StatusPaused {
		t.Errorf("status = %v, want PAUSED", status)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Directory, "jam_part01.wav")); err != nil {
		t.Errorf("partial recording not saved: %v", err)
	}

	info, err := svc.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording() from paused error = %v", err)
	}
	if info.Name != "jam.wav" || info.Frames != 1000 {
		t.Errorf("StopRecording() = %+v", info)
	}
}

func TestMaxLengthFinishesRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audio.MaxDuration = 100 * time.Millisecond
	finished := make(chan *RecordingInfo, 1)
	svc := newTestService(t, cfg, silence(8000), Hooks{
		Finished: func(info *RecordingInfo, err error) {
			if err != nil {
				t.Errorf("Finished error = %v", err)
			}
			finished <- info
		},
	})

	if err := svc.StartRecording(context.Background(), "short"); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	select {
	case info := <-finished:
		if info == nil || info.Frames != 800 {
			t.Fatalf("Finished info = %+v, want 800 frames", info)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("recording did not finish at max length")
	}
	if status, _ := svc.GetRecordingStatus(); status != StatusStandby {
		t.Errorf("status = %v, want STANDBY", status)
	}
}

func TestSaveSnapshot(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, silence(512), Hooks{})
	ctx := context.Background()

	if err := svc.StartRecording(ctx, "idea"); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	waitInput(t, svc)
	info, err := svc.SaveSnapshot(ctx)
	if err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if info.Name != "idea_snapshot.wav" || info.Frames != 512 {
		t.Errorf("SaveSnapshot() = %+v", info)
	}
	if status, _ := svc.GetRecordingStatus(); status != StatusRecording {
		t.Errorf("status = %v, want RECORDING", status)
	}
}

func TestOperationsWithoutRecording(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil, Hooks{})
	ctx := context.Background()

	if err := svc.PauseRecording(ctx); !errors.Is(err, capture.ErrInvalidState) {
		t.Errorf("PauseRecording() error = %v, want ErrInvalidState", err)
	}
	if _, err := svc.StopRecording(ctx); !errors.Is(err, capture.ErrInvalidState) {
		t.Errorf("StopRecording() error = %v, want ErrInvalidState", err)
	}
	if err := svc.CancelRecording(); err != nil {
		t.Errorf("CancelRecording() error = %v", err)
	}
	if svc.InputDone() != nil {
		t.Error("InputDone() should be nil without a recording")
	}
	if err := svc.StartRecording(ctx, "!!!"); err == nil {
		t.Error("expected error for a name without usable characters")
	}
}

func TestStartFailureSetsLastError(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, nil, Hooks{})

	if err := svc.StartRecording(context.Background(), "take"); err == nil {
		t.Fatal("expected error for stdin input without a reader")
	}
	if svc.GetLastError() == "" {
		t.Error("GetLastError() is empty after a failed start")
	}
	if status, _ := svc.GetRecordingStatus(); status != StatusError {
		t.Errorf("status = %v, want ERROR", status)
	}
}

func TestCancelDiscardsRecording(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, silence(256), Hooks{})

	if err := svc.StartRecording(context.Background(), "discard"); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := svc.CancelRecording(); err != nil {
		t.Fatalf("CancelRecording() error = %v", err)
	}
	recordings, err := svc.ListRecordings()
	if err != nil {
		t.Fatalf("ListRecordings() error = %v", err)
	}
	if len(recordings) != 0 {
		t.Errorf("ListRecordings() = %+v, want none", recordings)
	}
}

func TestInspectRecordingRejectsPaths(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil, Hooks{})
	if _, err := svc.InspectRecording("../secret.wav"); err == nil {
		t.Error("expected error for a path outside the output directory")
	}
	if _, err := svc.InspectRecording("missing.wav"); err == nil {
		t.Error("expected error for a missing recording")
	}
}

func TestCleanFileName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"My Song", "My_Song"},
		{"  take-2_final!  ", "take-2_final"},
		{"a/b\\c", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanFileName(tt.in); got != tt.want {
			t.Errorf("cleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{264644, "258.4 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
