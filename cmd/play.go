package cmd

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/audiolibrelab/snapcapture/internal/play"
	"github.com/audiolibrelab/snapcapture/internal/service"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [name]",
	Short: "Play a saved recording",
	Long:  `Play <output.directory>/<name>.wav with the first audio player found on PATH. Without a name, plays the last saved recording.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvePlayTarget(args)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return play.New(slog.Default()).Play(ctx, path)
	},
}

func resolvePlayTarget(args []string) (string, error) {
	if len(args) == 1 {
		return filepath.Join(cfg.Output.Directory, cleanFileName(args[0])+".wav"), nil
	}
	svc := service.New(cfg, cfgFile, service.Options{Logger: slog.Default()})
	recordings, err := svc.ListRecordings()
	if err != nil {
		return "", err
	}
	for _, r := range recordings {
		if r.IsLast {
			return r.Path, nil
		}
	}
	return "", errors.New("no last recording; pass a name")
}
