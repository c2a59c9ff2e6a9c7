package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2, BitDepth: Bits16}
	left := []float32{0, 0.5, -0.5}
	right := []float32{1, -1, 0}

	out, err := Encode([][]float32{left, right}, 3, f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	le := binary.LittleEndian
	if len(out) != HeaderSize+3*2*2 {
		t.Fatalf("unexpected length %d", len(out))
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"riff", string(out[0:4]), "RIFF"},
		{"chunk size", le.Uint32(out[4:8]), uint32(36 + 12)},
		{"wave", string(out[8:12]), "WAVE"},
		{"fmt", string(out[12:16]), "fmt "},
		{"fmt size", le.Uint32(out[16:20]), uint32(16)},
		{"format", le.Uint16(out[20:22]), uint16(FormatPCM)},
		{"channels", le.Uint16(out[22:24]), uint16(2)},
		{"sample rate", le.Uint32(out[24:28]), uint32(44100)},
		{"byte rate", le.Uint32(out[28:32]), uint32(44100 * 4)},
		{"block align", le.Uint16(out[32:34]), uint16(4)},
		{"bits", le.Uint16(out[34:36]), uint16(16)},
		{"data", string(out[36:40]), "data"},
		{"data size", le.Uint32(out[40:44]), uint32(12)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}

	// Interleaved L0 R0 L1 R1 L2 R2.
	want := []int16{0, 32767, 16383, -32768, -16384, 0}
	for i, w := range want {
		got := int16(le.Uint16(out[HeaderSize+2*i:]))
		if got != w {
			t.Errorf("sample %d: got %d, want %d", i, got, w)
		}
	}
}

func TestEncodeDataSize(t *testing.T) {
	tests := []struct {
		frames   int
		channels int
		depth    BitDepth
	}{
		{0, 1, Bits16},
		{1, 1, Bits16},
		{128, 2, Bits16},
		{1000, 1, Bits32Float},
		{257, 3, Bits32Float},
	}
	for _, tt := range tests {
		f := Format{SampleRate: 48000, Channels: tt.channels, BitDepth: tt.depth}
		chans := make([][]float32, tt.channels)
		for i := range chans {
			chans[i] = make([]float32, tt.frames)
		}
		out, err := Encode(chans, tt.frames, f)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", tt, err)
		}
		dataSize := tt.frames * tt.channels * int(tt.depth) / 8
		if got := binary.LittleEndian.Uint32(out[40:44]); int(got) != dataSize {
			t.Errorf("%+v: data size %d, want %d", tt, got, dataSize)
		}
		if got := binary.LittleEndian.Uint32(out[4:8]); int(got) != 36+dataSize {
			t.Errorf("%+v: chunk size %d, want %d", tt, got, 36+dataSize)
		}
		if len(out) != EncodedSize(tt.frames, f) {
			t.Errorf("%+v: len %d, EncodedSize %d", tt, len(out), EncodedSize(tt.frames, f))
		}
	}
}

func TestEncodeSilence(t *testing.T) {
	chans := [][]float32{make([]float32, 64)}
	out, err := Encode(chans, 64, Format{SampleRate: 8000, Channels: 1, BitDepth: Bits16})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i, b := range out[HeaderSize:] {
		if b != 0 {
			t.Fatalf("byte %d of data is %#x, want 0", i, b)
		}
	}
}

func TestPCM16Clamping(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		in   float32
		want uint16
	}{
		{1.5, 0x7FFF},
		{1, 0x7FFF},
		{-1, 0x8000},
		{-1.5, 0x8000},
		{0, 0x0000},
		{nan, 0x0000},
		{float32(math.Inf(1)), 0x7FFF},
		{float32(math.Inf(-1)), 0x8000},
	}
	for _, tt := range tests {
		if got := uint16(pcm16(tt.in)); got != tt.want {
			t.Errorf("pcm16(%v) = %#04x, want %#04x", tt.in, got, tt.want)
		}
	}
}

func TestEncodeFloatVerbatim(t *testing.T) {
	samples := []float32{1.5, -2, 0.25, float32(math.Copysign(0, -1))}
	out, err := Encode([][]float32{samples}, len(samples), Format{SampleRate: 44100, Channels: 1, BitDepth: Bits32Float})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := binary.LittleEndian.Uint16(out[20:22]); got != FormatIEEEFloat {
		t.Errorf("format tag %d, want %d", got, FormatIEEEFloat)
	}
	for i, s := range samples {
		got := binary.LittleEndian.Uint32(out[HeaderSize+4*i:])
		if got != math.Float32bits(s) {
			t.Errorf("sample %d: bits %#08x, want %#08x", i, got, math.Float32bits(s))
		}
	}
}

func TestEncodeMissingChannel(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2, BitDepth: Bits16}

	_, err := Encode([][]float32{make([]float32, 4)}, 4, f)
	if !errors.Is(err, ErrMissingChannelData) {
		t.Errorf("short channel list: got %v, want ErrMissingChannelData", err)
	}

	_, err = Encode([][]float32{make([]float32, 4), nil}, 4, f)
	if !errors.Is(err, ErrMissingChannelData) {
		t.Errorf("nil channel: got %v, want ErrMissingChannelData", err)
	}

	_, err = Encode([][]float32{make([]float32, 4), make([]float32, 2)}, 4, f)
	if !errors.Is(err, ErrFrameCount) {
		t.Errorf("short channel: got %v, want ErrFrameCount", err)
	}
}

func TestEncodeInvalidFormat(t *testing.T) {
	chans := [][]float32{make([]float32, 1)}
	for _, f := range []Format{
		{SampleRate: 0, Channels: 1, BitDepth: Bits16},
		{SampleRate: 44100, Channels: 0, BitDepth: Bits16},
		{SampleRate: 44100, Channels: 1, BitDepth: 24},
	} {
		if _, err := Encode(chans, 1, f); !errors.Is(err, ErrFormat) {
			t.Errorf("Encode(%+v): got %v, want ErrFormat", f, err)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	chans := [][]float32{{0.1, 0.2, 0.3}, {-0.1, -0.2, -0.3}}
	f := Format{SampleRate: 22050, Channels: 2, BitDepth: Bits16}
	a, err := Encode(chans, 3, f)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(chans, 3, f)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding the same input twice produced different bytes")
	}
}

func TestEncodeUsesFramePrefix(t *testing.T) {
	chans := [][]float32{{0.5, 0.5, 0.9, 0.9}}
	out, err := Encode(chans, 2, Format{SampleRate: 8000, Channels: 1, BitDepth: Bits16})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != HeaderSize+4 {
		t.Errorf("len %d, want %d", len(out), HeaderSize+4)
	}
}

func TestParseBitDepth(t *testing.T) {
	if d, err := ParseBitDepth(16); err != nil || d != Bits16 {
		t.Errorf("ParseBitDepth(16) = %v, %v", d, err)
	}
	if d, err := ParseBitDepth(32); err != nil || d != Bits32Float {
		t.Errorf("ParseBitDepth(32) = %v, %v", d, err)
	}
	if _, err := ParseBitDepth(8); !errors.Is(err, ErrFormat) {
		t.Errorf("ParseBitDepth(8) error = %v", err)
	}
}
