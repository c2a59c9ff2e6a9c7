// Package wav encodes captured float32 channel buffers into RIFF/WAVE
// containers and inspects existing WAV files.
//
// The encoder writes the canonical 44-byte header followed by interleaved
// little-endian samples, either as 16-bit signed PCM or as 32-bit IEEE
// float.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// BitDepth selects the sample encoding of the data chunk.
type BitDepth int

const (
	// Bits16 encodes samples as 16-bit signed integer PCM (format tag 1).
	Bits16 BitDepth = 16
	// Bits32Float encodes samples as 32-bit IEEE-754 floats (format tag 3).
	Bits32Float BitDepth = 32
)

// WAVE format tags.
const (
	FormatPCM       = 1
	FormatIEEEFloat = 3
)

// HeaderSize is the size of the RIFF, fmt and data chunk headers written by
// Encode.
const HeaderSize = 44

var (
	// ErrMissingChannelData is returned when a channel named by the format
	// has no sample buffer.
	ErrMissingChannelData = errors.New("no data buffer for channel")

	// ErrFrameCount is returned when a channel holds fewer samples than the
	// requested frame count.
	ErrFrameCount = errors.New("channel shorter than frame count")

	// ErrFormat is returned for formats that cannot be encoded.
	ErrFormat = errors.New("unsupported wav format")
)

// Format describes the shape of the encoded stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   BitDepth
}

// BytesPerSample returns the size of one sample of one channel.
func (f Format) BytesPerSample() int { return int(f.BitDepth) / 8 }

// BlockAlign returns the size of one interleaved frame.
func (f Format) BlockAlign() int { return f.Channels * f.BytesPerSample() }

// ByteRate returns the number of data bytes per second of audio.
func (f Format) ByteRate() int { return f.SampleRate * f.BlockAlign() }

// AudioFormat returns the WAVE format tag for the bit depth.
func (f Format) AudioFormat() int {
	if f.BitDepth == Bits32Float {
		return FormatIEEEFloat
	}
	return FormatPCM
}

// Validate reports whether f can be encoded.
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrFormat, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrFormat, f.SampleRate)
	}
	if f.BitDepth != Bits16 && f.BitDepth != Bits32Float {
		return fmt.Errorf("%w: bit depth %d", ErrFormat, f.BitDepth)
	}
	return nil
}

// ParseBitDepth converts a configured bit depth into a BitDepth.
func ParseBitDepth(bits int) (BitDepth, error) {
	switch BitDepth(bits) {
	case Bits16, Bits32Float:
		return BitDepth(bits), nil
	}
	return 0, fmt.Errorf("%w: bit depth %d (want 16 or 32)", ErrFormat, bits)
}

// EncodedSize returns the total size of a file holding frames frames.
func EncodedSize(frames int, f Format) int {
	return HeaderSize + frames*f.BlockAlign()
}

// Encode interleaves the first frames samples of every channel and returns
// a complete WAV file. channels must hold at least f.Channels buffers, each
// at least frames long. The same input always yields the same bytes.
func Encode(channels [][]float32, frames int, f Format) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if frames < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", ErrFormat, frames)
	}
	for ch := 0; ch < f.Channels; ch++ {
		if ch >= len(channels) || channels[ch] == nil {
			return nil, fmt.Errorf("%w %d", ErrMissingChannelData, ch)
		}
		if len(channels[ch]) < frames {
			return nil, fmt.Errorf("%w: channel %d has %d samples, need %d",
				ErrFrameCount, ch, len(channels[ch]), frames)
		}
	}

	dataSize := uint64(frames) * uint64(f.BlockAlign())
	if dataSize > math.MaxUint32-36 {
		return nil, fmt.Errorf("%w: data size %d overflows RIFF", ErrFormat, dataSize)
	}

	buf := make([]byte, HeaderSize+int(dataSize))
	writeHeader(buf, f, uint32(dataSize))

	off := HeaderSize
	switch f.BitDepth {
	case Bits16:
		for i := 0; i < frames; i++ {
			for ch := 0; ch < f.Channels; ch++ {
				binary.LittleEndian.PutUint16(buf[off:], uint16(pcm16(channels[ch][i])))
				off += 2
			}
		}
	case Bits32Float:
		for i := 0; i < frames; i++ {
			for ch := 0; ch < f.Channels; ch++ {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(channels[ch][i]))
				off += 4
			}
		}
	}
	return buf, nil
}

func writeHeader(buf []byte, f Format, dataSize uint32) {
	le := binary.LittleEndian
	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], 36+dataSize)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], uint16(f.AudioFormat()))
	le.PutUint16(buf[22:24], uint16(f.Channels))
	le.PutUint32(buf[24:28], uint32(f.SampleRate))
	le.PutUint32(buf[28:32], uint32(f.ByteRate()))
	le.PutUint16(buf[32:34], uint16(f.BlockAlign()))
	le.PutUint16(buf[34:36], uint16(f.BitDepth))
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], dataSize)
}

// pcm16 clamps s to [-1, 1] and scales it asymmetrically so that -1 maps
// to -32768 and +1 to 32767. The fraction is truncated toward zero. NaN
// encodes as silence.
func pcm16(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v < -1:
		v = -1
	case v > 1:
		v = 1
	}
	if v < 0 {
		return int16(v * 32768)
	}
	return int16(v * 32767)
}
