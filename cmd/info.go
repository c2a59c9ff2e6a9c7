package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/snapcapture/internal/config"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show resolved configuration and the output path for a recording",
	Long:  `Display the resolved configuration with inheritance indicators and the file path a recording with the given name would be saved to. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cleanName := cleanFileName(args[0])

		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("output_wav: %s\n", filepath.Join(cfg.Output.Directory, cleanName+".wav"))
		fmt.Printf("clean_name: %s\n", cleanName)

		fmt.Printf("\n=== RESOLVED CONFIGURATION (%s) ===\n", cfg.Profile)
		section := ""
		for _, key := range config.SettingKeys() {
			group, field, _ := strings.Cut(key, ".")
			if group != section {
				section = group
				fmt.Printf("\n[%s]\n", strings.ToUpper(group[:1])+group[1:])
			}
			fmt.Printf("%s: %v %s\n", field, settingValue(cfg, key), getInheritanceIndicator(cfg.Inheritance[key]))
		}
		return nil
	},
}

// cleanFileName matches the file naming used when saving recordings
func cleanFileName(name string) string {
	// Allows: letters, numbers, spaces, hyphens, underscores
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

func settingValue(c *config.Config, key string) any {
	switch key {
	case "audio.sample_rate":
		return c.Audio.SampleRate
	case "audio.bit_depth":
		return c.Audio.BitDepth
	case "audio.max_duration":
		return c.Audio.MaxDuration
	case "audio.buffer_timeout":
		return c.Audio.BufferTimeout
	case "audio.queue_blocks":
		return c.Audio.QueueBlocks
	case "input.kind":
		return c.Input.Kind
	case "input.device":
		return c.Input.Device
	case "input.channels":
		return c.Input.Channels
	case "input.tone_frequency":
		return c.Input.ToneFrequency
	case "input.tone_amplitude":
		return c.Input.ToneAmplitude
	case "input.tone_duration":
		return c.Input.ToneDuration
	case "output.directory":
		return c.Output.Directory
	case "output.content_type":
		return c.Output.ContentType
	case "output.keep_partials":
		return c.Output.KeepPartials
	}
	return "?"
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[built-in]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
