package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/audiolibrelab/snapcapture/internal/capture"
	"github.com/audiolibrelab/snapcapture/internal/config"
	"github.com/audiolibrelab/snapcapture/internal/observe"
	"github.com/audiolibrelab/snapcapture/internal/service"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"
)

const progressInterval = 250 * time.Millisecond

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record audio into a WAV file",
	Long: `Record audio from the configured input and save it as <output.directory>/<name>.wav.

While recording, press Enter to pause or resume, type s and Enter to save a
snapshot, and type q and Enter (or press Ctrl+C) to stop and save. With the
stdin input, recording stops at end of input or on Ctrl+C. Recording stops
by itself when the maximum length is reached.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := applyRecordFlags(cmd); err != nil {
			return err
		}
		slog.Info("Record command started", "name", name, "input", cfg.Input.Kind, "profile", cfg.Profile)

		metrics, err := observe.NewMetrics(metricsProvider)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}

		var (
			frames   atomic.Int64
			peakBits atomic.Uint32
			finished = make(chan finishResult, 1)
		)
		var stdin io.Reader
		if cfg.Input.Kind == config.InputStdin {
			stdin = os.Stdin
		}
		svc := service.New(cfg, cfgFile, service.Options{
			Stdin: stdin,
			Hooks: service.Hooks{
				LengthChanged: func(n int) { frames.Store(int64(n)) },
				Telemetry: func(t capture.TelemetryTick) {
					peakBits.Store(math.Float32bits(t.Peak))
				},
				Finished: func(info *service.RecordingInfo, err error) {
					finished <- finishResult{info: info, err: err}
				},
			},
			Metrics:     metrics,
			Logger:      slog.Default(),
			InputLogger: backendLogger(),
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := svc.StartRecording(ctx, name); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		defer svc.CancelRecording()

		var commands <-chan string
		if stdin == nil {
			commands = readCommands(os.Stdin)
			fmt.Fprintln(os.Stderr, "Recording. Enter = pause/resume, s = snapshot, q = stop and save")
		} else {
			fmt.Fprintln(os.Stderr, "Recording from stdin. Ctrl+C stops and saves")
		}

		loopCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(loopCtx)

		g.Go(func() error {
			defer cancel()
			return controlLoop(gctx, svc, commands, finished)
		})
		g.Go(func() error {
			progressLoop(gctx, svc, &frames, &peakBits)
			return nil
		})

		err = g.Wait()
		fmt.Fprintln(os.Stderr)
		return err
	},
}

type finishResult struct {
	info *service.RecordingInfo
	err  error
}

func init() {
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	recordCmd.Flags().StringP("input", "i", "", "input kind: device, stdin or tone (overrides config)")
	recordCmd.Flags().StringP("device", "d", "", "capture device ID or name (overrides config)")
	recordCmd.Flags().IntP("channels", "c", 0, "channel count (overrides config)")
	recordCmd.Flags().Duration("max-duration", 0, "maximum recording length, at most 5m (overrides config)")
	recordCmd.Flags().Bool("keep-partials", false, "save the recording each time it is paused")
}

// applyRecordFlags overlays command line overrides onto the loaded config.
func applyRecordFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("output"); v != "" {
		cfg.Output.Directory = v
	}
	if v, _ := flags.GetString("input"); v != "" {
		cfg.Input.Kind = v
	}
	if v, _ := flags.GetString("device"); v != "" {
		cfg.Input.Device = v
	}
	if v, _ := flags.GetInt("channels"); v != 0 {
		cfg.Input.Channels = v
	}
	if v, _ := flags.GetDuration("max-duration"); v != 0 {
		cfg.Audio.MaxDuration = v
	}
	if v, _ := flags.GetBool("keep-partials"); v {
		cfg.Output.KeepPartials = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// readCommands forwards trimmed input lines. The reader goroutine is left
// blocked on stdin when the command returns.
func readCommands(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
	}()
	return lines
}

func controlLoop(ctx context.Context, svc service.Service, commands <-chan string, finished <-chan finishResult) error {
	inputDone := svc.InputDone()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping recording...")
			return stopAndReport(context.WithoutCancel(ctx), svc)

		case <-inputDone:
			slog.Info("Input exhausted, stopping recording")
			return stopAndReport(ctx, svc)

		case res := <-finished:
			if res.err != nil {
				return fmt.Errorf("failed to save recording: %w", res.err)
			}
			fmt.Fprintf(os.Stderr, "\nMaximum length reached.\n")
			report(res.info)
			return nil

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if err := handleCommand(ctx, svc, line); err != nil {
				if errors.Is(err, errStopRequested) {
					return stopAndReport(ctx, svc)
				}
				slog.Error("Command failed", "command", line, "error", err)
			}
		}
	}
}

var errStopRequested = errors.New("stop requested")

func handleCommand(ctx context.Context, svc service.Service, line string) error {
	switch line {
	case "":
		status, _ := svc.GetRecordingStatus()
		if status == service.StatusPaused {
			if err := svc.ResumeRecording(ctx); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "\nResumed.")
			return nil
		}
		if err := svc.PauseRecording(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "\nPaused. Press Enter to resume.")
		return nil
	case "s", "snapshot":
		info, err := svc.SaveSnapshot(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\nSnapshot saved: %s (%s)\n", info.Path, formatDuration(info.Duration))
		return nil
	case "q", "quit", "stop":
		return errStopRequested
	}
	fmt.Fprintf(os.Stderr, "\nUnknown command %q\n", line)
	return nil
}

func stopAndReport(ctx context.Context, svc service.Service) error {
	info, err := svc.StopRecording(ctx)
	if err != nil {
		if errors.Is(err, capture.ErrInvalidState) {
			// The recording already ended at max length.
			return nil
		}
		return fmt.Errorf("failed to stop recording: %w", err)
	}
	report(info)
	return nil
}

func report(info *service.RecordingInfo) {
	if info == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "\nSaved %s (%s, %s)\n", info.Path, formatDuration(info.Duration), info.SizeHuman)
}

func progressLoop(ctx context.Context, svc service.Service, frames *atomic.Int64, peakBits *atomic.Uint32) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		status, session := svc.GetRecordingStatus()
		if session == nil || session.SampleRate == 0 {
			continue
		}
		n := frames.Load()
		elapsed := time.Duration(n) * time.Second / time.Duration(session.SampleRate)
		limit := time.Duration(session.MaxFrames) * time.Second / time.Duration(session.SampleRate)
		peak := math.Float32frombits(peakBits.Load())
		fmt.Fprintf(os.Stderr, "\r%-9s %s / %s  %s", status, formatDuration(elapsed), formatDuration(limit), meter(peak))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	m := d / time.Minute
	s := float64(d%time.Minute) / float64(time.Second)
	return fmt.Sprintf("%02d:%04.1f", int64(m), s)
}

// meter renders a peak level as a 20 character bar.
func meter(peak float32) string {
	const width = 20
	n := int(math.Round(float64(peak) * width))
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return "[" + strings.Repeat("#", n) + strings.Repeat(" ", width-n) + "]"
}
