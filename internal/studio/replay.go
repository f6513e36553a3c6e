package studio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/drawing"
	"github.com/Shofol/CritVid-sub002/internal/logger"
	"github.com/Shofol/CritVid-sub002/internal/media"
	"github.com/Shofol/CritVid-sub002/internal/metrics"
	"github.com/Shofol/CritVid-sub002/internal/transport"
)

// Playback rates used to pull audio back into sync without a seek.
const (
	catchUpRate  = 1.05
	fallBackRate = 0.95
)

// Replay plays a saved session back against the video. The video is the
// clock: every timeupdate, seeked, play and pause notification re-syncs the
// narration audio and redraws the strokes visible at that moment.
type Replay struct {
	session *critique.Session
	video   media.Video
	audio   media.AudioPlayer
	engine  *drawing.Engine
	metrics *metrics.Metrics
	cfg     Config

	mu          sync.Mutex
	stopped     bool
	hardStreak  int
	rate        float64
	unsubscribe func()
	cancel      context.CancelFunc
	scriptDone  chan struct{}
}

// Replay loads session into the drawing engine and starts following the
// video. audio may be nil when there is no narration player. The returned
// Replay runs until Stop, a new recording, or Close.
func (s *Synchronizer) Replay(ctx context.Context, session *critique.Session, audio media.AudioPlayer) (*Replay, error) {
	if session == nil {
		return nil, critique.ErrNothingToSave
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, critique.ErrAlreadyRecording
	}
	prev := s.replay
	s.replay = nil
	video := s.video
	s.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	s.engine.ExitDrawMode()
	s.engine.Load(session.Strokes)

	r := &Replay{
		session: session,
		video:   video,
		audio:   audio,
		engine:  s.engine,
		metrics: s.metrics,
		cfg:     s.cfg,
		rate:    1,
	}
	if audio != nil {
		if err := audio.Pause(); err != nil {
			logger.Warn("pause narration failed", "error", err)
		}
	}
	r.Tick(video.CurrentTime())
	unsubscribe := video.Subscribe(r.handle)

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	if s.cfg.StrictTransport && len(session.TransportActions) > 0 {
		sctx, cancel := context.WithCancel(ctx)
		r.cancel = cancel
		r.scriptDone = make(chan struct{})
		go r.runScript(sctx, r.scriptDone)
	}
	r.mu.Unlock()

	s.mu.Lock()
	s.replay = r
	s.mu.Unlock()

	logger.Info("critique replay started",
		"contentId", session.ContentID,
		"strokes", len(session.Strokes),
		"audio", session.Duration(),
		"strict", s.cfg.StrictTransport)
	return r, nil
}

// Session returns the session being replayed.
func (r *Replay) Session() *critique.Session { return r.session }

func (r *Replay) runScript(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := transport.Script(r.session.TransportActions).Run(ctx, r.video)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("transport replay failed", "error", err)
	}
}

func (r *Replay) handle(ev media.Event) {
	switch ev.Type {
	case media.EventPlay:
		r.sync(ev.CurrentTime, true, false)
	case media.EventPause, media.EventEnded:
		r.sync(ev.CurrentTime, false, false)
	case media.EventSeeked:
		r.sync(ev.CurrentTime, !r.video.Paused(), true)
	case media.EventTimeUpdate:
		r.sync(ev.CurrentTime, !r.video.Paused(), false)
	}
}

// Tick re-syncs audio and redraws for video time t, reading the play state
// from the video.
func (r *Replay) Tick(t float64) {
	r.sync(t, !r.video.Paused(), false)
}

// sync is one replay tick. Audio position and play state are corrected and
// the overlay is redrawn in the same call.
func (r *Replay) sync(t float64, playing, seeked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.audio != nil {
		r.syncAudio(t, playing, seeked)
	}
	r.engine.Render(t)
}

func (r *Replay) syncAudio(t float64, playing, seeked bool) {
	end := r.session.Duration().Seconds()
	if end > 0 && t >= end {
		// narration is over; hold it at its end
		if !r.audio.Paused() {
			r.warnOnErr("pause narration", r.audio.Pause())
		}
		r.setRate(1)
		r.hardStreak = 0
		return
	}

	drift := r.audio.CurrentTime() - t
	abs := math.Abs(drift)
	r.metrics.ReplayDrift.Observe(abs)

	switch {
	case seeked:
		// the viewer moved the video; follow without counting it as drift
		if abs > r.cfg.DriftTolerance.Seconds() {
			r.warnOnErr("seek narration", r.audio.SetCurrentTime(t))
		}
		r.setRate(1)
		r.hardStreak = 0

	case abs > r.cfg.HardDrift.Seconds():
		r.warnOnErr("seek narration", r.audio.SetCurrentTime(t))
		r.setRate(1)
		r.hardStreak++
		r.metrics.DriftCorrections.WithLabelValues(metrics.CorrectionHard).Inc()
		if r.hardStreak%r.cfg.DesyncWarnAfter == 0 {
			r.metrics.DesyncWarnings.Inc()
			logger.Warn("narration out of sync",
				"contentId", r.session.ContentID,
				"videoTime", t,
				"drift", time.Duration(drift*float64(time.Second)),
				"consecutiveHardCorrections", r.hardStreak)
		}

	case abs > r.cfg.DriftTolerance.Seconds():
		r.hardStreak = 0
		if _, ok := r.audio.(media.RateAdjuster); ok && playing {
			if drift > 0 {
				r.setRate(fallBackRate)
			} else {
				r.setRate(catchUpRate)
			}
		} else {
			r.warnOnErr("seek narration", r.audio.SetCurrentTime(t))
		}
		r.metrics.DriftCorrections.WithLabelValues(metrics.CorrectionSoft).Inc()

	default:
		r.hardStreak = 0
		r.setRate(1)
	}

	switch {
	case playing && r.audio.Paused():
		r.warnOnErr("play narration", r.audio.Play())
	case !playing && !r.audio.Paused():
		r.warnOnErr("pause narration", r.audio.Pause())
	}
}

func (r *Replay) setRate(rate float64) {
	if r.rate == rate {
		return
	}
	ra, ok := r.audio.(media.RateAdjuster)
	if !ok {
		return
	}
	if err := ra.SetPlaybackRate(rate); err != nil {
		logger.Warn("set narration rate failed", "rate", rate, "error", err)
		return
	}
	r.rate = rate
}

func (r *Replay) warnOnErr(op string, err error) {
	if err != nil {
		logger.Warn(op+" failed", "contentId", r.session.ContentID, "error", err)
	}
}

// Stop detaches from the video, stops a transport script and pauses the
// narration. Idempotent.
func (r *Replay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	unsub, cancel, done := r.unsubscribe, r.cancel, r.scriptDone
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	if r.audio != nil && !r.audio.Paused() {
		r.warnOnErr("pause narration", r.audio.Pause())
	}
	r.mu.Lock()
	r.setRate(1)
	r.mu.Unlock()
}
