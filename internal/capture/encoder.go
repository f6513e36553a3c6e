package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
)

// Encoder turns PCM chunks into a finished audio artifact.
type Encoder interface {
	Write(pcm []byte) error
	Finalize() ([]byte, error)
	MIMEType() string
}

// WAV layout constants.
const (
	wavHeaderSize    = 44
	wavAudioFormat   = 1 // PCM
	wavSubchunk1Size = 16
)

// WAVEncoder wraps PCM in a RIFF/WAVE container for playback.
type WAVEncoder struct {
	mu        sync.Mutex
	format    Format
	buf       bytes.Buffer
	finalized bool
}

// NewWAVEncoder creates an encoder for the given PCM format.
func NewWAVEncoder(f Format) *WAVEncoder {
	return &WAVEncoder{format: f}
}

func (e *WAVEncoder) MIMEType() string { return "audio/wav" }

func (e *WAVEncoder) Write(pcm []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return fmt.Errorf("write after finalize")
	}
	e.buf.Write(pcm)
	return nil
}

// Finalize returns the complete WAV file. It may be called once.
//
//nolint:gosec // sizes are bounded by the recording length
func (e *WAVEncoder) Finalize() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return nil, fmt.Errorf("already finalized")
	}
	e.finalized = true

	f := e.format
	dataSize := e.buf.Len()
	blockAlign := f.Channels * f.BitsPerSample / 8

	out := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	out.WriteString("RIFF")
	_ = binary.Write(out, binary.LittleEndian, uint32(36+dataSize))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	_ = binary.Write(out, binary.LittleEndian, uint32(wavSubchunk1Size))
	_ = binary.Write(out, binary.LittleEndian, uint16(wavAudioFormat))
	_ = binary.Write(out, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(out, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(out, binary.LittleEndian, uint32(f.BytesPerSecond()))
	_ = binary.Write(out, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(out, binary.LittleEndian, uint16(f.BitsPerSample))
	out.WriteString("data")
	_ = binary.Write(out, binary.LittleEndian, uint32(dataSize))
	out.Write(e.buf.Bytes())
	return out.Bytes(), nil
}

// PCMEncoder keeps headerless PCM, the form transcription services accept.
type PCMEncoder struct {
	mu        sync.Mutex
	format    Format
	buf       bytes.Buffer
	finalized bool
}

// NewPCMEncoder creates a pass-through encoder.
func NewPCMEncoder(f Format) *PCMEncoder {
	return &PCMEncoder{format: f}
}

func (e *PCMEncoder) MIMEType() string {
	return fmt.Sprintf("audio/L%d;rate=%d;channels=%d", e.format.BitsPerSample, e.format.SampleRate, e.format.Channels)
}

func (e *PCMEncoder) Write(pcm []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return fmt.Errorf("write after finalize")
	}
	e.buf.Write(pcm)
	return nil
}

func (e *PCMEncoder) Finalize() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return nil, fmt.Errorf("already finalized")
	}
	e.finalized = true
	// non-nil even when empty so dual-mode artifacts keep their raw stream
	return append([]byte{}, e.buf.Bytes()...), nil
}

// ParseWAV returns the format and PCM payload of a file written by
// WAVEncoder.
func ParseWAV(data []byte) (Format, []byte, error) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("not a wav file")
	}
	f := Format{
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
	}
	size := int(binary.LittleEndian.Uint32(data[40:44]))
	if wavHeaderSize+size > len(data) {
		return Format{}, nil, fmt.Errorf("truncated wav data: want %d bytes, have %d", size, len(data)-wavHeaderSize)
	}
	return f, data[wavHeaderSize : wavHeaderSize+size], nil
}
