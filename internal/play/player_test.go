package play

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestPlayer(players []string, found map[string]string) (*Player, *bytes.Buffer) {
	var out bytes.Buffer
	return &Player{
		players: players,
		lookPath: func(name string) (string, error) {
			if bin, ok := found[name]; ok {
				return bin, nil
			}
			return "", exec.ErrNotFound
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out: &out,
	}, &out
}

func TestFindAudioPlayerPreference(t *testing.T) {
	p, _ := newTestPlayer([]string{"pw-play", "aplay", "mpv"}, map[string]string{
		"aplay": "/usr/bin/aplay",
		"mpv":   "/usr/bin/mpv",
	})
	player, bin, err := p.findAudioPlayer()
	if err != nil {
		t.Fatalf("findAudioPlayer() error = %v", err)
	}
	if player != "aplay" || bin != "/usr/bin/aplay" {
		t.Errorf("findAudioPlayer() = %q, %q", player, bin)
	}
}

func TestFindAudioPlayerNone(t *testing.T) {
	p, _ := newTestPlayer([]string{"aplay", "mpv"}, nil)
	_, _, err := p.findAudioPlayer()
	if err == nil {
		t.Fatal("expected error when no player is installed")
	}
	if !strings.Contains(err.Error(), "aplay, mpv") {
		t.Errorf("error %q should list the players tried", err)
	}
}

func TestPlayerArgs(t *testing.T) {
	tests := []struct {
		player string
		want   []string
	}{
		{"vlc", []string{"--play-and-exit", "a.wav"}},
		{"mpv", []string{"--no-video", "a.wav"}},
		{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "error", "a.wav"}},
		{"aplay", []string{"a.wav"}},
		{"pw-play", []string{"a.wav"}},
	}
	for _, tt := range tests {
		if got := playerArgs(tt.player, "a.wav"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("playerArgs(%q) = %v, want %v", tt.player, got, tt.want)
		}
	}
}

func TestPlayMissingFile(t *testing.T) {
	p, _ := newTestPlayer([]string{"aplay"}, map[string]string{"aplay": "/usr/bin/aplay"})
	err := p.Play(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if err == nil || !strings.Contains(err.Error(), "audio file not found") {
		t.Fatalf("Play() error = %v", err)
	}
}

func TestPlayRunsPlayer(t *testing.T) {
	bin, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, out := newTestPlayer([]string{"aplay"}, map[string]string{"aplay": bin})
	if err := p.Play(context.Background(), path); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if !strings.Contains(out.String(), "Playback completed") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPlayReportsPlayerFailure(t *testing.T) {
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, _ := newTestPlayer([]string{"mpv"}, map[string]string{"mpv": bin})
	err = p.Play(context.Background(), path)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Play() error = %v, want exit error", err)
	}
}
