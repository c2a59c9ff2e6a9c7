// Package play hands saved recordings to an external audio player.
package play

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// DefaultPlayers lists the players tried, in order of preference. Every one
// of them can play a PCM or float WAV file directly.
var DefaultPlayers = []string{"pw-play", "paplay", "aplay", "ffplay", "mpv", "vlc"}

type Player struct {
	players  []string
	lookPath func(string) (string, error)
	log      *slog.Logger
	out      io.Writer
}

func New(log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	return &Player{
		players:  DefaultPlayers,
		lookPath: exec.LookPath,
		log:      log,
		out:      os.Stdout,
	}
}

// Play blocks until the player exits or ctx is cancelled.
func (p *Player) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file not found: %s", path)
	}

	player, bin, err := p.findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	fmt.Fprintf(p.out, "Playing: %s\n", path)
	p.log.Info("Starting playback", "file", path, "player", player)

	cmd := exec.CommandContext(ctx, bin, playerArgs(player, path)...)
	cmd.Stdout = p.out
	cmd.Stderr = p.out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	fmt.Fprintln(p.out, "Playback completed")
	return nil
}

func (p *Player) findAudioPlayer() (string, string, error) {
	for _, player := range p.players {
		if bin, err := p.lookPath(player); err == nil {
			return player, bin, nil
		}
	}
	return "", "", fmt.Errorf("tried: %s", strings.Join(p.players, ", "))
}

func playerArgs(player, path string) []string {
	switch player {
	case "vlc":
		return []string{"--play-and-exit", path}
	case "mpv":
		return []string{"--no-video", path}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "error", path}
	default:
		return []string{path}
	}
}
