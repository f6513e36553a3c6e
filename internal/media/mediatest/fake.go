// Package mediatest provides in-memory playback elements for tests.
package mediatest

import (
	"sync"

	"github.com/Shofol/CritVid-sub002/internal/media"
)

// Element is a scriptable playback element. Calls are recorded in Calls.
type Element struct {
	mu     sync.Mutex
	time   float64
	paused bool
	rate   float64
	Calls  []string
}

func (e *Element) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

func (e *Element) SetCurrentTime(seconds float64) error {
	e.mu.Lock()
	e.time = seconds
	e.Calls = append(e.Calls, "seek")
	e.mu.Unlock()
	return nil
}

func (e *Element) Play() error {
	e.mu.Lock()
	e.paused = false
	e.Calls = append(e.Calls, "play")
	e.mu.Unlock()
	return nil
}

func (e *Element) Pause() error {
	e.mu.Lock()
	e.paused = true
	e.Calls = append(e.Calls, "pause")
	e.mu.Unlock()
	return nil
}

func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Advance moves the element clock without recording a call, as natural
// playback would.
func (e *Element) Advance(seconds float64) {
	e.mu.Lock()
	e.time += seconds
	e.mu.Unlock()
}

// Set jumps the clock without recording a call.
func (e *Element) Set(seconds float64) {
	e.mu.Lock()
	e.time = seconds
	e.mu.Unlock()
}

// CallLog returns a copy of the recorded calls.
func (e *Element) CallLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.Calls...)
}

// ResetCalls clears the call log.
func (e *Element) ResetCalls() {
	e.mu.Lock()
	e.Calls = nil
	e.mu.Unlock()
}

// Video is a fake media.Video. Play, Pause and SetCurrentTime emit the
// matching notification to subscribers, like a browser video element.
type Video struct {
	Element

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(media.Event)
}

// NewVideo returns a paused video at time zero.
func NewVideo() *Video {
	return &Video{Element: Element{paused: true, rate: 1}, subs: make(map[int]func(media.Event))}
}

func (v *Video) Subscribe(fn func(media.Event)) func() {
	v.subMu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.subMu.Unlock()
	return func() {
		v.subMu.Lock()
		delete(v.subs, id)
		v.subMu.Unlock()
	}
}

// Subscribers returns the number of attached listeners.
func (v *Video) Subscribers() int {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	return len(v.subs)
}

func (v *Video) Play() error {
	_ = v.Element.Play()
	v.Emit(media.EventPlay)
	return nil
}

func (v *Video) Pause() error {
	_ = v.Element.Pause()
	v.Emit(media.EventPause)
	return nil
}

func (v *Video) SetCurrentTime(seconds float64) error {
	_ = v.Element.SetCurrentTime(seconds)
	v.Emit(media.EventSeeked)
	return nil
}

// Emit delivers an event stamped with the current time to every listener.
func (v *Video) Emit(t media.EventType) {
	ev := media.Event{Type: t, CurrentTime: v.CurrentTime()}
	v.subMu.Lock()
	fns := make([]func(media.Event), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Audio is a fake media.AudioPlayer that also supports rate adjustment.
type Audio struct {
	Element
}

// NewAudio returns a paused audio element at time zero.
func NewAudio() *Audio {
	return &Audio{Element: Element{paused: true, rate: 1}}
}

func (a *Audio) SetPlaybackRate(rate float64) error {
	a.mu.Lock()
	a.rate = rate
	a.Calls = append(a.Calls, "rate")
	a.mu.Unlock()
	return nil
}

// Rate returns the last playback rate set.
func (a *Audio) Rate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}
