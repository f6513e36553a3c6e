// Package media defines the playback surfaces the studio drives: the video
// element being critiqued and the narration audio played back against it.
package media

// EventType is a playback notification.
type EventType string

const (
	EventPlay       EventType = "play"
	EventPause      EventType = "pause"
	EventSeeked     EventType = "seeked"
	EventTimeUpdate EventType = "timeupdate"
	EventEnded      EventType = "ended"
)

// Event is a notification from a playback element. CurrentTime is the
// element's position in seconds when the event fired.
type Event struct {
	Type        EventType
	CurrentTime float64
}

// Element is the transport surface shared by video and audio.
type Element interface {
	CurrentTime() float64
	SetCurrentTime(seconds float64) error
	Play() error
	Pause() error
	Paused() bool
}

// Video is the element under critique. Subscribe registers a listener for
// its notifications and returns a function that removes it.
type Video interface {
	Element
	Subscribe(fn func(Event)) (unsubscribe func())
}

// AudioPlayer plays a session's narration during replay.
type AudioPlayer interface {
	Element
}

// RateAdjuster is implemented by players that can nudge playback speed,
// used to soft-correct small drift without an audible seek.
type RateAdjuster interface {
	SetPlaybackRate(rate float64) error
}
