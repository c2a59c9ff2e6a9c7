package wav

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"
)

func TestRoundTripGoAudio(t *testing.T) {
	const frames = 441
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range left {
		left[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		right[i] = -left[i] / 2
	}
	f := Format{SampleRate: 44100, Channels: 2, BitDepth: Bits16}
	out, err := Encode([][]float32{left, right}, frames, f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	buf, err := DecodePCM(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("DecodePCM: %v", err)
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != 44100 {
		t.Errorf("decoded format %+v", buf.Format)
	}
	if buf.SourceBitDepth != 16 {
		t.Errorf("decoded bit depth %d, want 16", buf.SourceBitDepth)
	}
	if len(buf.Data) != frames*2 {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), frames*2)
	}
	for i := 0; i < frames; i++ {
		if got, want := buf.Data[2*i], int(pcm16(left[i])); got != want {
			t.Fatalf("frame %d left: got %d, want %d", i, got, want)
		}
		if got, want := buf.Data[2*i+1], int(pcm16(right[i])); got != want {
			t.Fatalf("frame %d right: got %d, want %d", i, got, want)
		}
	}

	if peak := PeakLevel(buf); peak < 0.99 || peak > 1 {
		t.Errorf("peak level %.3f, want close to 1", peak)
	}
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		frames int
	}{
		{"pcm16 mono", Format{SampleRate: 44100, Channels: 1, BitDepth: Bits16}, 44100},
		{"float stereo", Format{SampleRate: 48000, Channels: 2, BitDepth: Bits32Float}, 24000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chans := make([][]float32, tt.format.Channels)
			for i := range chans {
				chans[i] = make([]float32, tt.frames)
			}
			out, err := Encode(chans, tt.frames, tt.format)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			info, err := Inspect(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if info.SampleRate != tt.format.SampleRate || info.Channels != tt.format.Channels ||
				info.BitDepth != int(tt.format.BitDepth) || info.AudioFormat != tt.format.AudioFormat() {
				t.Errorf("unexpected info %+v", info)
			}
			if info.Frames != tt.frames {
				t.Errorf("frames %d, want %d", info.Frames, tt.frames)
			}
			wantDur := time.Duration(tt.frames) * time.Second / time.Duration(tt.format.SampleRate)
			if info.Duration != wantDur {
				t.Errorf("duration %v, want %v", info.Duration, wantDur)
			}
		})
	}
}

func TestDecodePCMRejectsFloat(t *testing.T) {
	out, err := Encode([][]float32{{0.1, 0.2}}, 2, Format{SampleRate: 8000, Channels: 1, BitDepth: Bits32Float})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodePCM(bytes.NewReader(out)); !errors.Is(err, ErrFormat) {
		t.Errorf("DecodePCM on float data: got %v, want ErrFormat", err)
	}
}

func TestNormalizeContentType(t *testing.T) {
	for _, ct := range []string{"audio/wave", "audio/wav", "AUDIO/WAV", "audio/wav; codecs=1"} {
		got, err := NormalizeContentType(ct)
		if err != nil {
			t.Errorf("NormalizeContentType(%q): %v", ct, err)
			continue
		}
		if got != MIMEType {
			t.Errorf("NormalizeContentType(%q) = %q, want %q", ct, got, MIMEType)
		}
	}
	if _, err := NormalizeContentType("audio/mpeg"); !errors.Is(err, ErrFormat) {
		t.Errorf("audio/mpeg: got %v, want ErrFormat", err)
	}
	if _, err := NormalizeContentType(""); err == nil {
		t.Error("empty content type accepted")
	}
}
