package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildHeaderFields(t *testing.T) {
	samples := []int16{1, -1, 32767, -32768}
	b, err := Build(CD, samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(b) != HeaderSize+len(samples)*2 {
		t.Fatalf("unexpected length: %d", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE header")
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); got != uint32(36+len(samples)*2) {
		t.Fatalf("riff size: got %d", got)
	}
	if got := binary.LittleEndian.Uint16(b[22:24]); got != 1 {
		t.Fatalf("channels: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != 44100 {
		t.Fatalf("sample rate: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[28:32]); got != 88200 {
		t.Fatalf("byte rate: got %d", got)
	}
	if got := binary.LittleEndian.Uint16(b[34:36]); got != 16 {
		t.Fatalf("bits: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != 8 {
		t.Fatalf("data len: got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(b[48:50])); got != 32767 {
		t.Fatalf("third sample: got %d", got)
	}
}

func TestDecodeStereo(t *testing.T) {
	f := CD.WithChannels(2)
	in := []int16{10, 20, 30, 40, 50, 60}
	b, err := Build(f, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	gotF, out, err := Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotF != f {
		t.Fatalf("format mismatch: want=%+v got=%+v", f, gotF)
	}
	if len(out) != len(in) || f.Frames(len(out)) != 3 {
		t.Fatalf("sample count mismatch: %d", len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("sample %d: want=%d got=%d", i, in[i], out[i])
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode(bytes.NewReader([]byte("RIFF"))); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	junk := make([]byte, HeaderSize)
	copy(junk, "JUNK")
	if _, _, err := Decode(bytes.NewReader(junk)); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestEncodeRejectsUnsupportedFormat(t *testing.T) {
	for _, f := range []Format{
		{SampleRate: 44100, Channels: 1, BitsPerSample: 24},
		{SampleRate: 44100, Channels: 6, BitsPerSample: 16},
		{SampleRate: 0, Channels: 1, BitsPerSample: 16},
	} {
		if _, err := Build(f, nil); !errors.Is(err, ErrUnsupportedEncoding) {
			t.Fatalf("format %+v: expected ErrUnsupportedEncoding, got %v", f, err)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.wav")
	if err := WriteFile(path, CD, []int16{1, 2, 3}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if entries, _ := os.ReadDir(filepath.Dir(path)); len(entries) != 1 {
		t.Fatalf("temp file left behind: %v", entries)
	}
	_, samples, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("want 3 samples, got %d", len(samples))
	}
}

func TestDataSizeRejectsRIFFOverflow(t *testing.T) {
	if _, err := dataSize(maxDataBytes / 2); err != nil {
		t.Fatalf("largest payload rejected: %v", err)
	}
	if _, err := dataSize(maxDataBytes/2 + 1); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestDecodeTruncatedHugeDataChunk(t *testing.T) {
	b, err := Build(CD, []int16{1, 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Claim almost 4 GiB of data while only 4 bytes follow.
	binary.LittleEndian.PutUint32(b[40:44], 0xFFFFFFFE)
	if _, _, err := Decode(bytes.NewReader(b)); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestDecodeSpansReadBlocks(t *testing.T) {
	samples := make([]int16, decodeBlock) // two blocks of bytes
	for i := range samples {
		samples[i] = int16(i)
	}
	b, err := Build(CD, samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, got, err := Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(samples) || got[len(got)-1] != samples[len(samples)-1] {
		t.Fatalf("want %d samples ending %d, got %d", len(samples), samples[len(samples)-1], len(got))
	}
}
