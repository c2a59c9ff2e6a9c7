package capture

import (
	"bytes"
	"io"
	"time"

	"github.com/audiolibrelab/snapcapture/internal/wav"
)

// EncodedAudio is an immutable WAV file produced from a recording.
type EncodedAudio struct {
	data        []byte
	contentType string
	format      wav.Format
	frames      int
}

// Bytes returns a copy of the encoded file.
func (e *EncodedAudio) Bytes() []byte { return bytes.Clone(e.data) }

// Len returns the size of the encoded file.
func (e *EncodedAudio) Len() int { return len(e.data) }

// ContentType returns the media type of the file.
func (e *EncodedAudio) ContentType() string { return e.contentType }

// Format returns the sample format of the file.
func (e *EncodedAudio) Format() wav.Format { return e.format }

// Frames returns the number of frames in the file.
func (e *EncodedAudio) Frames() int { return e.frames }

// Duration returns the length of the recording.
func (e *EncodedAudio) Duration() time.Duration {
	if e.format.SampleRate == 0 {
		return 0
	}
	return time.Duration(e.frames) * time.Second / time.Duration(e.format.SampleRate)
}

// Reader returns a reader over the encoded file.
func (e *EncodedAudio) Reader() *bytes.Reader { return bytes.NewReader(e.data) }

// WriteTo writes the encoded file to w.
func (e *EncodedAudio) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(e.data)
	return int64(n), err
}
