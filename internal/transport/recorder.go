// Package transport logs what the critic did with the video (play, pause,
// seek) while a critique is being recorded, and can act the log out again.
package transport

import (
	"sync"
	"time"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/media"
)

// Recorder appends a TransportAction for every transport notification the
// video emits between Start and Stop.
type Recorder struct {
	now func() time.Time

	mu          sync.Mutex
	active      bool
	origin      time.Time
	actions     []critique.TransportAction
	playing     *bool
	unsubscribe func()
}

// NewRecorder creates a recorder using now as the wall clock; nil means
// time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Start attaches to video. origin is the recording start every timestamp is
// measured from. With autoplay, the log opens with a play action at zero so
// replay always has a reference point.
func (r *Recorder) Start(video media.Video, origin time.Time, autoplay bool) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return critique.ErrAlreadyRecording
	}
	r.active = true
	r.origin = origin
	r.actions = r.actions[:0]
	r.playing = nil
	if autoplay {
		r.actions = append(r.actions, critique.TransportAction{Type: critique.ActionPlay})
		r.setPlaying(true)
	}
	r.mu.Unlock()

	unsub := video.Subscribe(r.handle)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		// stopped while subscribing
		unsub()
		return nil
	}
	r.unsubscribe = unsub
	return nil
}

// Stop detaches from the video. Events after Stop are not recorded.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return critique.ErrNotRecording
	}
	r.active = false
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return nil
}

// Active reports whether the recorder is attached.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Actions returns a copy of the log in arrival order.
func (r *Recorder) Actions() []critique.TransportAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]critique.TransportAction(nil), r.actions...)
}

// Reset detaches, if needed, and empties the log.
func (r *Recorder) Reset() {
	_ = r.Stop()
	r.mu.Lock()
	r.actions = nil
	r.mu.Unlock()
}

func (r *Recorder) handle(ev media.Event) {
	var typ critique.ActionType
	switch ev.Type {
	case media.EventPlay:
		typ = critique.ActionPlay
	case media.EventPause:
		typ = critique.ActionPause
	case media.EventSeeked:
		typ = critique.ActionSeek
	default:
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	ts := r.now().Sub(r.origin).Milliseconds()
	if ts < 0 {
		ts = 0
	}
	if n := len(r.actions); n > 0 && ts < r.actions[n-1].TimestampMS {
		ts = r.actions[n-1].TimestampMS
	}

	// A play while playing or a pause while paused changes nothing. Every
	// seek is kept, however small.
	if typ == critique.ActionPlay || typ == critique.ActionPause {
		want := typ == critique.ActionPlay
		if r.playing != nil && *r.playing == want {
			return
		}
		r.setPlaying(want)
	}

	r.actions = append(r.actions, critique.TransportAction{
		Type:        typ,
		TimestampMS: ts,
		VideoTime:   ev.CurrentTime,
	})
}

func (r *Recorder) setPlaying(v bool) {
	r.playing = &v
}
