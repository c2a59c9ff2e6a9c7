package wav

import (
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// MIMEType is the content type attached to encoded recordings.
const MIMEType = "audio/wave"

// NormalizeContentType maps the accepted WAV media types onto MIMEType.
// Parameters are ignored.
func NormalizeContentType(ct string) (string, error) {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q: %w", ct, err)
	}
	switch strings.ToLower(mt) {
	case "audio/wave", "audio/wav", "audio/x-wav", "audio/vnd.wave":
		return MIMEType, nil
	}
	return "", fmt.Errorf("%w: content type %q", ErrFormat, ct)
}

// Info summarizes a decoded WAV header.
type Info struct {
	SampleRate  int
	Channels    int
	BitDepth    int
	AudioFormat int
	Frames      int
	DataSize    int64
	Duration    time.Duration
}

// Inspect reads the header chunks of a WAV stream and locates its data
// chunk.
func Inspect(r io.ReadSeeker) (Info, error) {
	d := gowav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return Info{}, fmt.Errorf("reading wav header: %w", err)
	}
	if d.NumChans == 0 || d.BitDepth == 0 || d.SampleRate == 0 {
		return Info{}, fmt.Errorf("%w: incomplete fmt chunk", ErrFormat)
	}
	if err := d.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("locating data chunk: %w", err)
	}

	info := Info{
		SampleRate:  int(d.SampleRate),
		Channels:    int(d.NumChans),
		BitDepth:    int(d.BitDepth),
		AudioFormat: int(d.WavAudioFormat),
		DataSize:    d.PCMLen(),
	}
	frameSize := int64(info.Channels) * int64(info.BitDepth/8)
	if frameSize > 0 {
		info.Frames = int(info.DataSize / frameSize)
	}
	info.Duration = time.Duration(info.Frames) * time.Second / time.Duration(info.SampleRate)
	return info, nil
}

// DecodePCM decodes an integer PCM stream into an interleaved buffer.
// Float streams are rejected.
func DecodePCM(r io.ReadSeeker) (*audio.IntBuffer, error) {
	d := gowav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("reading wav header: %w", err)
	}
	if d.WavAudioFormat != FormatPCM {
		return nil, fmt.Errorf("%w: format tag %d is not integer PCM", ErrFormat, d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding pcm: %w", err)
	}
	return buf, nil
}

// PeakLevel returns the largest absolute sample of buf scaled to [0, 1].
func PeakLevel(buf *audio.IntBuffer) float64 {
	if buf == nil || buf.SourceBitDepth <= 0 {
		return 0
	}
	full := float64(int64(1) << (buf.SourceBitDepth - 1))
	var peak int
	for _, v := range buf.Data {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak) / full
}
