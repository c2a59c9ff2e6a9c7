package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/audiolibrelab/snapcapture/internal/wav"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file.wav]",
	Short: "Show the format of a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := wav.Inspect(f)
		if err != nil {
			return err
		}

		format := "pcm"
		if info.AudioFormat == wav.FormatIEEEFloat {
			format = "ieee-float"
		}
		fmt.Printf("file: %s\n", args[0])
		fmt.Printf("format: %s\n", format)
		fmt.Printf("sample_rate: %d\n", info.SampleRate)
		fmt.Printf("channels: %d\n", info.Channels)
		fmt.Printf("bit_depth: %d\n", info.BitDepth)
		fmt.Printf("frames: %d\n", info.Frames)
		fmt.Printf("duration: %s\n", info.Duration)
		fmt.Printf("data_size: %d\n", info.DataSize)

		if info.AudioFormat != wav.FormatPCM {
			return nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return err
		}
		buf, err := wav.DecodePCM(f)
		if err != nil {
			return err
		}
		peak := wav.PeakLevel(buf)
		if peak > 0 {
			fmt.Printf("peak: %.3f (%.1f dBFS)\n", peak, 20*math.Log10(peak))
		} else {
			fmt.Printf("peak: 0 (silence)\n")
		}
		return nil
	},
}
