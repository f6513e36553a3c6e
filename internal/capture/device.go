// Package capture records the critic's narration from the microphone into
// one or two independently encoded streams.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/Shofol/CritVid-sub002/internal/critique"
)

// Format describes little-endian PCM delivered by a device stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is 16 kHz mono PCM16, what speech transcription expects.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

// BytesPerSecond returns the PCM data rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// Stream is an open microphone. Chunks delivers PCM buffers as they become
// available; Close stops every underlying track and closes the Chunks channel.
type Stream interface {
	Format() Format
	Chunks() <-chan []byte
	Close() error
}

// Microphone grants access to a capture device. RequestAccess blocks on the
// platform permission prompt and must return when ctx is cancelled. A
// refusal is reported as an error wrapping critique.ErrPermissionDenied.
type Microphone interface {
	RequestAccess(ctx context.Context) (Stream, error)
}

// SilentMicrophone produces real-time silence. It stands in for hardware on
// machines without an audio device and in tests.
type SilentMicrophone struct {
	Format        Format
	ChunkInterval time.Duration // default 100ms
	PromptDelay   time.Duration // simulated permission prompt
	Deny          bool          // refuse access after the prompt
}

// RequestAccess implements Microphone.
func (m *SilentMicrophone) RequestAccess(ctx context.Context) (Stream, error) {
	if m.PromptDelay > 0 {
		timer := time.NewTimer(m.PromptDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Deny {
		return nil, critique.ErrPermissionDenied
	}

	format := m.Format
	if format.SampleRate == 0 {
		format = DefaultFormat
	}
	interval := m.ChunkInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	s := &silentStream{
		format: format,
		chunks: make(chan []byte, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(interval)
	return s, nil
}

type silentStream struct {
	format Format
	chunks chan []byte
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *silentStream) Format() Format        { return s.format }
func (s *silentStream) Chunks() <-chan []byte { return s.chunks }

func (s *silentStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *silentStream) run(interval time.Duration) {
	defer close(s.done)
	defer close(s.chunks)

	size := int(float64(s.format.BytesPerSecond()) * interval.Seconds())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			select {
			case s.chunks <- make([]byte, size):
			case <-s.stop:
				return
			}
		}
	}
}
