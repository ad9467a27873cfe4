// Package wav reads and writes canonical RIFF/WAVE files holding 16-bit
// little-endian PCM.
package wav

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the size of the canonical RIFF + fmt + data header.
	HeaderSize = 44
	pcmFormat  = 1
)

var (
	ErrInvalidHeader       = errors.New("wav: invalid header")
	ErrUnsupportedEncoding = errors.New("wav: unsupported encoding")
	ErrTooLarge            = errors.New("wav: data exceeds the 4 GiB RIFF limit")
)

// maxDataBytes keeps the RIFF chunk size (36 + data) within a uint32.
const maxDataBytes = math.MaxUint32 - (HeaderSize - 8)

// decodeBlock is how many bytes Decode reads at a time.
const decodeBlock = 64 << 10

func dataSize(samples int) (uint32, error) {
	if samples < 0 || uint64(samples)*2 > maxDataBytes {
		return 0, fmt.Errorf("%w: %d samples", ErrTooLarge, samples)
	}
	return uint32(samples * 2), nil
}

// Format describes the sample layout of a WAV file.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// CD is the fixed output format used for recordings: 44.1 kHz, 16-bit, mono.
var CD = Format{SampleRate: 44100, Channels: 1, BitsPerSample: 16}

// WithChannels returns f with the channel count replaced.
func (f Format) WithChannels(n int) Format {
	f.Channels = n
	return f
}

func (f Format) blockAlign() int { return f.Channels * f.BitsPerSample / 8 }

func (f Format) byteRate() int { return f.SampleRate * f.blockAlign() }

// Validate reports whether f can be encoded by this package.
func (f Format) Validate() error {
	if f.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedEncoding, f.BitsPerSample)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedEncoding, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedEncoding, f.SampleRate)
	}
	return nil
}

// Frames returns the number of sample frames held by n interleaved samples.
func (f Format) Frames(samples int) int {
	if f.Channels <= 0 {
		return 0
	}
	return samples / f.Channels
}

// Encode writes a WAV header for f followed by samples as little-endian
// interleaved PCM.
func Encode(w io.Writer, f Format, samples []int16) error {
	if err := f.Validate(); err != nil {
		return err
	}
	dataLen, err := dataSize(len(samples))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	bw.WriteString("RIFF")
	binary.Write(bw, binary.LittleEndian, uint32(4+(8+16)+8)+dataLen)
	bw.WriteString("WAVE")
	bw.WriteString("fmt ")
	binary.Write(bw, binary.LittleEndian, uint32(16))
	binary.Write(bw, binary.LittleEndian, uint16(pcmFormat))
	binary.Write(bw, binary.LittleEndian, uint16(f.Channels))
	binary.Write(bw, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(bw, binary.LittleEndian, uint32(f.byteRate()))
	binary.Write(bw, binary.LittleEndian, uint16(f.blockAlign()))
	binary.Write(bw, binary.LittleEndian, uint16(f.BitsPerSample))
	bw.WriteString("data")
	binary.Write(bw, binary.LittleEndian, dataLen)
	if err := binary.Write(bw, binary.LittleEndian, samples); err != nil {
		return err
	}
	return bw.Flush()
}

// Build returns the encoded WAV bytes for samples.
func Build(f Format, samples []int16) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(samples)*2))
	if err := Encode(buf, f, samples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a canonical PCM WAV stream and returns its format and
// interleaved samples.
func Decode(r io.Reader) (Format, []int16, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Format{}, nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" || string(hdr[12:16]) != "fmt " || string(hdr[36:40]) != "data" {
		return Format{}, nil, ErrInvalidHeader
	}
	if tag := binary.LittleEndian.Uint16(hdr[20:22]); tag != pcmFormat {
		return Format{}, nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedEncoding, tag)
	}
	f := Format{
		Channels:      int(binary.LittleEndian.Uint16(hdr[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(hdr[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(hdr[34:36])),
	}
	if err := f.Validate(); err != nil {
		return Format{}, nil, err
	}
	dataLen := binary.LittleEndian.Uint32(hdr[40:44])
	if dataLen%2 != 0 {
		return Format{}, nil, fmt.Errorf("%w: odd data length %d", ErrInvalidHeader, dataLen)
	}
	// The header length is untrusted; grow with the data actually read.
	var samples []int16
	buf := make([]byte, decodeBlock)
	for remaining := int64(dataLen); remaining > 0; {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return Format{}, nil, fmt.Errorf("%w: short data chunk: %v", ErrInvalidHeader, err)
		}
		for i := int64(0); i < n; i += 2 {
			samples = append(samples, int16(binary.LittleEndian.Uint16(buf[i:])))
		}
		remaining -= n
	}
	return f, samples, nil
}
