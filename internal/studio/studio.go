// Package studio ties the drawing engine, audio capture and transport
// recorder into one critique session, saves it, and replays it against the
// video.
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/drawing"
	"github.com/Shofol/CritVid-sub002/internal/logger"
	"github.com/Shofol/CritVid-sub002/internal/media"
	"github.com/Shofol/CritVid-sub002/internal/metrics"
	"github.com/Shofol/CritVid-sub002/internal/store"
	"github.com/Shofol/CritVid-sub002/internal/transport"
)

// State is the recording state of a Synchronizer.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateSaving:
		return "saving"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Capture is the audio side of a recording. *capture.Recorder implements it.
type Capture interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*critique.AudioArtifact, error)
	Discard()
	Elapsed() time.Duration
}

// Config tunes recording and replay.
type Config struct {
	// DriftTolerance is the audio/video drift tolerated before a soft
	// correction. Default 100ms.
	DriftTolerance time.Duration
	// HardDrift is the drift above which audio is seeked. Default 300ms.
	HardDrift time.Duration
	// DesyncWarnAfter is the number of consecutive hard corrections that
	// trigger a desync warning. Default 3.
	DesyncWarnAfter int
	// StrictTransport replays the recorded play/pause/seek log against the
	// video instead of leaving the viewer in control.
	StrictTransport bool
	// SettleTimeout bounds the wait for the video to confirm the rewind
	// that opens a recording. Default 500ms.
	SettleTimeout time.Duration

	Now   func() time.Time
	NewID func() string
}

func (c Config) withDefaults() Config {
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = 100 * time.Millisecond
	}
	if c.HardDrift < c.DriftTolerance {
		c.HardDrift = 300 * time.Millisecond
		if c.HardDrift < c.DriftTolerance {
			c.HardDrift = c.DriftTolerance
		}
	}
	if c.DesyncWarnAfter < 1 {
		c.DesyncWarnAfter = 3
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 500 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

// Synchronizer records and replays critique sessions for one video.
type Synchronizer struct {
	audio     Capture
	engine    *drawing.Engine
	store     store.Store
	metrics   *metrics.Metrics
	transport *transport.Recorder
	cfg       Config

	mu        sync.Mutex
	video     media.Video
	state     State
	gen       uint64
	contentID string
	origin    time.Time
	pending   *critique.Session
	replay    *Replay
	// cancelStart aborts the video cue of a StartSession in flight.
	cancelStart context.CancelFunc
}

// New wires a Synchronizer. A nil m records into unregistered collectors.
func New(video media.Video, audio Capture, engine *drawing.Engine, st store.Store, m *metrics.Metrics, cfg Config) *Synchronizer {
	cfg = cfg.withDefaults()
	if m == nil {
		m = metrics.New(nil)
	}
	return &Synchronizer{
		video:     video,
		audio:     audio,
		engine:    engine,
		store:     st,
		metrics:   m,
		transport: transport.NewRecorder(cfg.Now),
		cfg:       cfg,
	}
}

// State returns the recording state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ContentID returns the content id of the current or last recording.
func (s *Synchronizer) ContentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentID
}

// Pending returns a copy of the stopped, unsaved session, or nil.
func (s *Synchronizer) Pending() *critique.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Clone()
}

// Elapsed returns the audio recording time.
func (s *Synchronizer) Elapsed() time.Duration {
	return s.audio.Elapsed()
}

// Engine returns the drawing engine.
func (s *Synchronizer) Engine() *drawing.Engine { return s.engine }

// SetVideo rebinds the synchronizer to a new video element, as after the
// player reconnects. A running replay is stopped. It fails while recording,
// since the transport log is attached to the old element.
func (s *Synchronizer) SetVideo(video media.Video) error {
	s.mu.Lock()
	if s.state == StateRecording {
		s.mu.Unlock()
		return critique.ErrAlreadyRecording
	}
	s.video = video
	replay := s.replay
	s.replay = nil
	s.mu.Unlock()

	if replay != nil {
		replay.Stop()
	}
	return nil
}

func (s *Synchronizer) currentVideo() media.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

// Actions returns the transport log recorded so far.
func (s *Synchronizer) Actions() []critique.TransportAction {
	return s.transport.Actions()
}

// StartSession begins recording a critique of contentID. Audio capture starts
// first and its start is the origin of every transport timestamp; then the
// video is rewound and played, and only then is the transport log attached,
// opening with the forced play at zero.
func (s *Synchronizer) StartSession(ctx context.Context, contentID string) error {
	if contentID == "" {
		return critique.ErrInvalidContentID
	}

	s.mu.Lock()
	if st := s.state; st != StateIdle {
		s.mu.Unlock()
		logger.Warn("start ignored", "state", st, "contentId", contentID)
		return critique.ErrAlreadyRecording
	}
	s.state = StateRecording
	s.gen++
	gen := s.gen
	s.contentID = contentID
	s.pending = nil
	replay := s.replay
	s.replay = nil
	cueCtx, cancel := context.WithCancel(ctx)
	s.cancelStart = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		if s.gen == gen {
			s.cancelStart = nil
		}
		s.mu.Unlock()
	}()

	if replay != nil {
		replay.Stop()
	}
	s.engine.ClearAll()
	s.transport.Reset()

	// The permission prompt may block; Discard cancels it through the
	// capture unit, so the lock is not held here.
	if err := s.audio.Start(ctx); err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.state = StateIdle
		}
		s.mu.Unlock()
		if errors.Is(err, critique.ErrPermissionDenied) {
			logger.Warn("microphone permission denied", "contentId", contentID, "error", err)
		}
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		// discarded while waiting for the microphone
		s.mu.Unlock()
		s.audio.Discard()
		return context.Canceled
	}
	s.origin = s.cfg.Now()
	origin := s.origin
	video := s.video
	s.mu.Unlock()

	if err := s.cue(cueCtx, video); err != nil {
		s.abort(gen)
		if errors.Is(err, context.Canceled) && !s.current(gen) {
			return context.Canceled
		}
		return err
	}
	if err := s.transport.Start(video, origin, true); err != nil {
		s.abort(gen)
		return fmt.Errorf("start transport log: %w", err)
	}

	if !s.current(gen) {
		// discarded while the video was being cued
		if err := video.Pause(); err != nil {
			logger.Warn("pause video failed", "error", err)
		}
		s.transport.Reset()
		s.audio.Discard()
		return context.Canceled
	}

	s.metrics.SessionsStarted.Inc()
	logger.Info("critique recording started", "contentId", contentID)
	return nil
}

// cue rewinds and plays the video. It waits for the rewind's seeked
// notification first, so a player that reports events late cannot leave it
// behind for the transport log to pick up as the critic's seek.
func (s *Synchronizer) cue(ctx context.Context, video media.Video) error {
	seeked := make(chan struct{}, 1)
	unsubscribe := video.Subscribe(func(ev media.Event) {
		if ev.Type != media.EventSeeked {
			return
		}
		select {
		case seeked <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := video.SetCurrentTime(0); err != nil {
		return fmt.Errorf("rewind video: %w", err)
	}
	timer := time.NewTimer(s.cfg.SettleTimeout)
	defer timer.Stop()
	select {
	case <-seeked:
	case <-timer.C:
		logger.Warn("video rewind not confirmed", "timeout", s.cfg.SettleTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := video.Play(); err != nil {
		return fmt.Errorf("play video: %w", err)
	}
	return nil
}

// current reports whether gen is still the live recording generation.
func (s *Synchronizer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Synchronizer) abort(gen uint64) {
	s.audio.Discard()
	s.transport.Reset()
	s.mu.Lock()
	if s.gen == gen {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// PointerDown starts a stroke tagged with the video's current time. It
// reports whether the engine took the gesture.
func (s *Synchronizer) PointerDown(p drawing.Pointer) bool {
	if !s.engine.DrawMode() {
		return false
	}
	return s.engine.PointerDown(p, s.currentVideo().CurrentTime())
}

func (s *Synchronizer) PointerMove(p drawing.Pointer) bool {
	return s.engine.PointerMove(p)
}

func (s *Synchronizer) PointerUp() (critique.Stroke, bool) {
	return s.engine.PointerUp()
}

// StopSession ends the recording and assembles the session in memory. It is
// not persisted until Save.
func (s *Synchronizer) StopSession(ctx context.Context) (*critique.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		logger.Warn("stop ignored", "state", s.state)
		return nil, critique.ErrNotRecording
	}

	artifact, err := s.audio.Stop(ctx)
	if errors.Is(err, critique.ErrNotRecording) {
		// still waiting on the microphone
		return nil, err
	}
	if s.engine.Drawing() {
		s.engine.PointerUp()
	}
	if terr := s.transport.Stop(); terr != nil {
		logger.Debug("transport log already stopped", "error", terr)
	}
	if perr := s.video.Pause(); perr != nil {
		logger.Warn("pause video failed", "error", perr)
	}
	s.state = StateIdle
	// a StartSession still cueing the video must not reattach the log
	s.gen++
	if err != nil {
		return nil, fmt.Errorf("stop audio: %w", err)
	}

	s.pending = &critique.Session{
		ID:               s.cfg.NewID(),
		ContentID:        s.contentID,
		Audio:            artifact,
		Strokes:          s.engine.Strokes(),
		TransportActions: s.transport.Actions(),
		CreatedAt:        s.cfg.Now().UTC(),
	}
	logger.Info("critique recording stopped",
		"contentId", s.contentID,
		"audio", artifact.Duration,
		"strokes", len(s.pending.Strokes),
		"actions", len(s.pending.TransportActions))
	return s.pending.Clone(), nil
}

// Save persists the pending session under contentID, replacing any earlier
// session for it. On failure the pending session is kept for a retry.
func (s *Synchronizer) Save(ctx context.Context, contentID string) error {
	if contentID == "" {
		return critique.ErrInvalidContentID
	}

	s.mu.Lock()
	switch {
	case s.state == StateRecording:
		s.mu.Unlock()
		return critique.ErrAlreadyRecording
	case s.state == StateSaving:
		s.mu.Unlock()
		return fmt.Errorf("save %q: already saving", contentID)
	case s.pending == nil:
		s.mu.Unlock()
		return critique.ErrNothingToSave
	}
	s.state = StateSaving
	gen := s.gen
	sess := s.pending.Clone()
	s.mu.Unlock()

	sess.ContentID = contentID
	start := time.Now()
	err := s.store.Save(ctx, sess)
	s.metrics.SaveLatency.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.state = StateIdle
	}
	if err != nil {
		s.metrics.SaveFailures.Inc()
		logger.Error("save critique failed", "contentId", contentID, "error", err)
		return critique.NewStorageError("save", contentID, err)
	}
	if s.gen == gen {
		s.pending = nil
		s.contentID = contentID
	}
	s.metrics.SessionsSaved.Inc()
	logger.Info("critique saved", "contentId", contentID, "id", sess.ID)
	return nil
}

// Discard abandons the current recording or pending session: the microphone
// is released (cancelling a pending permission prompt) and all logs are
// cleared. Safe to call in any state, any number of times.
func (s *Synchronizer) Discard() {
	s.mu.Lock()
	had := s.state == StateRecording || s.pending != nil
	s.gen++
	s.state = StateIdle
	s.pending = nil
	cancelStart := s.cancelStart
	s.cancelStart = nil
	s.mu.Unlock()

	if cancelStart != nil {
		cancelStart()
	}
	s.audio.Discard()
	s.transport.Reset()
	s.engine.ClearAll()

	if had {
		s.metrics.SessionsDiscarded.Inc()
		logger.Info("critique discarded")
	}
}

// Load reads the saved session for contentID.
func (s *Synchronizer) Load(ctx context.Context, contentID string) (*critique.Session, error) {
	if contentID == "" {
		return nil, critique.ErrInvalidContentID
	}
	sess, err := s.store.Load(ctx, contentID)
	if err != nil {
		return nil, critique.NewStorageError("load", contentID, err)
	}
	return sess, nil
}

// Close stops any replay.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	replay := s.replay
	s.replay = nil
	s.mu.Unlock()
	if replay != nil {
		replay.Stop()
	}
}
