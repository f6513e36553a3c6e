package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/logger"
)

// State is the recorder lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateRecording:
		return "recording"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Mode selects how many encodings are produced from the microphone.
type Mode int

const (
	// ModeSingle records the preview stream only.
	ModeSingle Mode = iota
	// ModeDual records a preview WAV and a raw PCM stream for transcription.
	ModeDual
)

// DefaultTickInterval is how often the elapsed counter is published.
const DefaultTickInterval = 100 * time.Millisecond

// sinkBuffer is the number of chunks an encoder may fall behind by.
const sinkBuffer = 64

// Config configures a Recorder.
type Config struct {
	Mode         Mode
	TickInterval time.Duration
	// OnTick receives the elapsed recording time every TickInterval.
	OnTick func(elapsed time.Duration)
	// Now is the wall clock, replaceable in tests.
	Now func() time.Time
}

// Recorder captures microphone audio. States move Idle → Requesting →
// Recording → Idle, or Idle → Requesting → Idle when access fails.
type Recorder struct {
	mic Microphone
	cfg Config

	mu        sync.Mutex
	state     State
	gen       int // bumped on every discard so a pending request can tell
	cancelReq context.CancelFunc
	stream    Stream
	format    Format
	sinks     []*sink
	quit      chan struct{}
	pumpDone  chan struct{}
	tickStop  chan struct{}
	startedAt time.Time
	elapsed   time.Duration
	artifact  *critique.AudioArtifact
}

// NewRecorder creates an idle recorder reading from mic.
func NewRecorder(mic Microphone, cfg Config) *Recorder {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Recorder{mic: mic, cfg: cfg}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Mode returns the configured capture mode.
func (r *Recorder) Mode() Mode {
	return r.cfg.Mode
}

// Elapsed returns the running recording time, or the length of the last
// recording when idle.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRecording {
		return r.cfg.Now().Sub(r.startedAt)
	}
	return r.elapsed
}

// Artifact returns the audio held from the last completed recording.
func (r *Recorder) Artifact() *critique.AudioArtifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact
}

// Start requests microphone access and begins encoding. It blocks while the
// permission prompt is open; Discard or cancelling ctx abandons the request.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		logger.Warn("audio capture start ignored", "state", r.state)
		return critique.ErrAlreadyRecording
	}
	reqCtx, cancel := context.WithCancel(ctx)
	r.state = StateRequesting
	r.cancelReq = cancel
	gen := r.gen
	r.mu.Unlock()

	stream, err := r.mic.RequestAccess(reqCtx)

	r.mu.Lock()
	defer r.mu.Unlock()
	cancel()
	abandoned := r.gen != gen
	if !abandoned {
		r.cancelReq = nil
		r.state = StateIdle
	}

	switch {
	case err != nil && errors.Is(err, critique.ErrPermissionDenied):
		logger.Warn("microphone access denied", "error", err)
		return err
	case err != nil:
		return fmt.Errorf("request microphone: %w", err)
	case abandoned:
		_ = stream.Close()
		return context.Canceled
	}

	r.begin(stream)
	return nil
}

// begin wires the device stream to the encoders. Callers hold r.mu.
func (r *Recorder) begin(stream Stream) {
	r.stream = stream
	r.format = stream.Format()
	r.artifact = nil
	r.elapsed = 0
	r.startedAt = r.cfg.Now()

	r.sinks = []*sink{newSink(NewWAVEncoder(r.format))}
	if r.cfg.Mode == ModeDual {
		r.sinks = append(r.sinks, newSink(NewPCMEncoder(r.format)))
	}
	r.quit = make(chan struct{})
	r.pumpDone = make(chan struct{})
	r.tickStop = make(chan struct{})

	go pump(stream.Chunks(), r.sinks, r.quit, r.pumpDone)
	go r.tick(r.tickStop)

	r.state = StateRecording
	logger.Debug("audio capture started", "sampleRate", r.format.SampleRate, "dual", r.cfg.Mode == ModeDual)
}

// Stop finalizes the encoders, releases the microphone and returns the
// recorded artifact.
func (r *Recorder) Stop(ctx context.Context) (*critique.AudioArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		logger.Warn("audio capture stop ignored", "state", r.state)
		return nil, critique.ErrNotRecording
	}

	elapsed := r.cfg.Now().Sub(r.startedAt)
	sinks := r.sinks
	r.release()

	results := make([][]byte, len(sinks))
	g, _ := errgroup.WithContext(ctx)
	for i, s := range sinks {
		g.Go(func() error {
			data, err := s.finish()
			if err != nil {
				return fmt.Errorf("finalize %s: %w", s.enc.MIMEType(), err)
			}
			results[i] = data
			return nil
		})
	}
	err := g.Wait()
	r.state = StateIdle
	r.elapsed = elapsed
	if err != nil {
		return nil, err
	}

	a := &critique.AudioArtifact{
		Preview:    results[0],
		MIMEType:   sinks[0].enc.MIMEType(),
		SampleRate: r.format.SampleRate,
		Channels:   r.format.Channels,
		Duration:   elapsed,
	}
	if len(results) > 1 {
		a.Raw = results[1]
	}
	r.artifact = a
	logger.Debug("audio capture stopped", "duration", elapsed, "bytes", len(a.Preview))
	return a, nil
}

// Clear drops the held artifact and resets the elapsed time. It refuses to
// run while a capture is active.
func (r *Recorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		logger.Warn("audio clear refused during capture", "state", r.state)
		return critique.ErrAlreadyRecording
	}
	r.artifact = nil
	r.elapsed = 0
	return nil
}

// Discard cancels a pending permission request, releases the microphone and
// drops any audio. It is safe to call in any state, any number of times.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cancelReq != nil {
		r.cancelReq()
		r.cancelReq = nil
	}
	if r.state == StateRecording {
		sinks := r.sinks
		r.release()
		for _, s := range sinks {
			<-s.done
		}
	}
	r.state = StateIdle
	r.artifact = nil
	r.elapsed = 0
}

// release closes the device stream and waits for buffered chunks to reach
// the encoders. Callers hold r.mu.
func (r *Recorder) release() {
	close(r.tickStop)
	if err := r.stream.Close(); err != nil {
		logger.Warn("close microphone stream", "error", err)
	}
	close(r.quit)
	<-r.pumpDone
	r.stream = nil
	r.sinks = nil
}

func (r *Recorder) tick(stop <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state != StateRecording {
				r.mu.Unlock()
				return
			}
			elapsed := r.cfg.Now().Sub(r.startedAt)
			r.mu.Unlock()
			if r.cfg.OnTick != nil {
				r.cfg.OnTick(elapsed)
			}
		}
	}
}

// sink is one encoder task with its own queue, fed from the shared stream.
type sink struct {
	enc  Encoder
	ch   chan []byte
	done chan struct{}
	err  error
}

func newSink(enc Encoder) *sink {
	s := &sink{enc: enc, ch: make(chan []byte, sinkBuffer), done: make(chan struct{})}
	go s.run()
	return s
}

func (s *sink) run() {
	defer close(s.done)
	for chunk := range s.ch {
		if s.err != nil {
			continue
		}
		s.err = s.enc.Write(chunk)
	}
}

func (s *sink) finish() ([]byte, error) {
	<-s.done
	if s.err != nil {
		return nil, s.err
	}
	return s.enc.Finalize()
}

// pump fans every chunk out to all sinks. After quit it drains what the
// stream already buffered, then closes the sink queues.
func pump(chunks <-chan []byte, sinks []*sink, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		for _, s := range sinks {
			close(s.ch)
		}
	}()
	deliver := func(chunk []byte) {
		for _, s := range sinks {
			s.ch <- chunk
		}
	}
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			deliver(chunk)
		case <-quit:
			for {
				select {
				case chunk, ok := <-chunks:
					if !ok {
						return
					}
					deliver(chunk)
				default:
					return
				}
			}
		}
	}
}
