package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/audiolibrelab/snapcapture/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long:  `List the input kinds supported by this build and the capture devices reported by the audio backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Audio Sources (%s)\n", runtime.GOOS)
		fmt.Printf("=======================================\n\n")

		fmt.Printf("INPUT KINDS:\n")
		for _, kind := range audio.AvailableInputs() {
			marker := " "
			if string(kind) == cfg.Input.Kind {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, kind)
		}
		fmt.Println()

		return listCaptureDevices()
	},
}

// listCaptureDevices lists the capture devices known to the backend
func listCaptureDevices() error {
	devices, err := audio.ListDevices(backendLogger())
	if errors.Is(err, audio.ErrAudioUnavailable) {
		fmt.Printf("CAPTURE DEVICES: not available in this build\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list capture devices: %w", err)
	}

	fmt.Printf("CAPTURE DEVICES (%d found):\n", len(devices))
	for i, d := range devices {
		def := ""
		if d.IsDefault {
			def = " (default)"
		}
		fmt.Printf("  %d. %s%s\n     id: %s\n", i+1, d.Name, def, d.ID)
	}

	if cfg.Input.Device != "" {
		if _, err := audio.FindDevice(cfg.Input.Device, devices); err != nil {
			fmt.Printf("\nConfigured device %q: %v\n", cfg.Input.Device, err)
		}
	}

	fmt.Printf("\nUsage:\n")
	fmt.Printf("  - Configure input.device with a device name or id\n")
	fmt.Printf("  - Leave it empty to record from the system default\n\n")
	return nil
}
