package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/snapcapture/internal/service"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := service.New(cfg, cfgFile, service.Options{Logger: slog.Default()})
		recordings, err := svc.ListRecordings()
		if err != nil {
			return err
		}
		if len(recordings) == 0 {
			fmt.Printf("No recordings in %s\n", cfg.Output.Directory)
			return nil
		}

		fmt.Printf("Recordings in %s (%d found):\n", cfg.Output.Directory, len(recordings))
		for _, r := range recordings {
			last := ""
			if r.IsLast {
				last = " *"
			}
			fmt.Printf("  %-32s %8s  %10s  %dHz/%dbit/%dch  %s%s\n",
				r.Name, formatDuration(r.Duration), r.SizeHuman,
				r.SampleRate, r.BitDepth, r.Channels, r.ModTimeHuman, last)
		}
		return nil
	},
}
