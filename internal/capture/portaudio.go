//go:build portaudio

package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/logger"
)

// framesPerBuffer is 100ms of audio at the default rate.
const framesPerBuffer = 1600

// PortAudioMicrophone opens the system default input device.
type PortAudioMicrophone struct {
	Format Format
}

// DefaultMicrophone returns the hardware microphone capturing in f.
func DefaultMicrophone(f Format) Microphone {
	return &PortAudioMicrophone{Format: f}
}

// RequestAccess opens the default input stream. Opening fails when the
// operating system has not granted this process microphone access.
func (m *PortAudioMicrophone) RequestAccess(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := m.Format
	if format.SampleRate == 0 {
		format = DefaultFormat
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	in := make([]int16, framesPerBuffer*format.Channels)
	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), framesPerBuffer, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", critique.ErrPermissionDenied, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", critique.ErrPermissionDenied, err)
	}
	if err := ctx.Err(); err != nil {
		stream.Stop()
		stream.Close()
		_ = portaudio.Terminate()
		return nil, err
	}

	s := &portAudioStream{
		format: format,
		stream: stream,
		in:     in,
		chunks: make(chan []byte, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

type portAudioStream struct {
	format Format
	stream *portaudio.Stream
	in     []int16
	chunks chan []byte
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *portAudioStream) Format() Format        { return s.format }
func (s *portAudioStream) Chunks() <-chan []byte { return s.chunks }

// Close stops the device, which turns the system microphone indicator off.
func (s *portAudioStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("stop input stream: %w", stopErr)
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close input stream: %w", closeErr)
		}
		_ = portaudio.Terminate()
	})
	return err
}

func (s *portAudioStream) run() {
	defer close(s.done)
	defer close(s.chunks)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			logger.Debug("portaudio read", "error", err)
			continue
		}
		buf := make([]byte, len(s.in)*2)
		for i, v := range s.in {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
		}
		select {
		case s.chunks <- buf:
		case <-s.stop:
			return
		}
	}
}
