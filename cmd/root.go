package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/snapcapture/internal/config"
	"github.com/audiolibrelab/snapcapture/internal/observe"
	"go.opentelemetry.io/otel"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int

	metricsProvider *observe.Provider
	logFile         io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "snapcapture",
	Short: "Record short audio clips to WAV",
	Long: `SnapCapture records audio from a capture device, raw stdin or a test tone
into memory and saves it as a WAV file.

Recordings are capped at five minutes. Recording can be paused and resumed,
and a snapshot of the recording so far can be saved at any time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel, nil)

		if err := loadConfig(); err != nil {
			return err
		}
		if cfg.Logging.File != "" {
			setupLogging(verboseLevel, &cfg.Logging)
		}

		metricsProvider = observe.NewProvider()
		otel.SetMeterProvider(metricsProvider)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsProvider != nil {
			ctx := context.Background()
			metricsProvider.LogSummary(ctx, slog.Default())
			if err := metricsProvider.Shutdown(ctx); err != nil {
				slog.Debug("Metrics shutdown failed", "error", err)
			}
		}
		if logFile != nil {
			return logFile.Close()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/snapcapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=audio backend output")

	// Add subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(playCmd)
}

// loadConfig resolves the config file. A missing default file falls back to
// the built-in configuration; an explicit --config must exist.
func loadConfig() error {
	explicit := cfgFile != ""
	if !explicit {
		cfgFile = os.ExpandEnv("$HOME/.config/snapcapture.yaml")
	}

	if !explicit && profile == "" {
		if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
			slog.Debug("No config file found, using built-in defaults", "path", cfgFile)
			cfg = config.Default()
			return nil
		}
	}

	var err error
	cfg, err = config.LoadWithProfile(cfgFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// setupLogging configures slog based on the verbose level. With a log file
// configured, output is also written to a rotating file.
func setupLogging(level int, file *config.LoggingConfig) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if file != nil && file.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   file.File,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		}
		logFile = rotator
		w = io.MultiWriter(os.Stderr, rotator)
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(w, opts)
	slog.SetDefault(slog.New(handler))
}

// backendLogger returns the logger handed to the audio backend. Its
// messages are only shown at verbose level 2.
func backendLogger() *slog.Logger {
	if verboseLevel >= 2 {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
