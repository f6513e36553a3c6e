package player

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Shofol/CritVid-sub002/internal/logger"
	"github.com/Shofol/CritVid-sub002/internal/media"
)

var subscribedEvents = []string{
	string(media.EventPlay),
	string(media.EventPause),
	string(media.EventSeeked),
	string(media.EventTimeUpdate),
	string(media.EventEnded),
}

// Track is one element owned by the player daemon: the video under critique
// or the narration audio. It implements media.Video, media.AudioPlayer and
// media.RateAdjuster.
type Track struct {
	name   string
	socket string
	cmd    *Client

	mu     sync.Mutex
	time   float64
	paused bool
	events *Client
	nextID int
	subs   map[int]func(media.Event)
	done   chan struct{}

	lost     chan struct{}
	lostOnce sync.Once
}

// Dial connects to the daemon at socket and binds to the named track.
func Dial(socket, track string) (*Track, error) {
	c, err := Connect(socket)
	if err != nil {
		return nil, err
	}
	t := &Track{
		name:   track,
		socket: socket,
		cmd:    c,
		paused: true,
		subs:   make(map[int]func(media.Event)),
		lost:   make(chan struct{}),
	}
	if _, err := t.status(); err != nil {
		c.Close()
		return nil, fmt.Errorf("bind %s track: %w", track, err)
	}
	return t, nil
}

// Name returns the track name.
func (t *Track) Name() string { return t.name }

// Done is closed when the track's event stream ends, whether the daemon went
// away or the track was closed.
func (t *Track) Done() <-chan struct{} { return t.lost }

// Load points the track at a media file.
func (t *Track) Load(source string) error {
	resp, err := t.cmd.Do(Command{Cmd: "load", Track: t.name, Source: source})
	if err != nil {
		return err
	}
	t.update(resp)
	return nil
}

// Duration asks the daemon for the loaded media length in seconds.
func (t *Track) Duration() (float64, error) {
	resp, err := t.status()
	if err != nil {
		return 0, err
	}
	if resp.Duration == nil {
		return 0, nil
	}
	return *resp.Duration, nil
}

// CurrentTime asks the daemon for the playback position. If the daemon
// cannot be reached the last known position is returned.
func (t *Track) CurrentTime() float64 {
	if _, err := t.status(); err != nil {
		logger.Debug("player status failed", "track", t.name, "error", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.time
}

func (t *Track) SetCurrentTime(seconds float64) error {
	resp, err := t.cmd.Do(Command{Cmd: "seek", Track: t.name, Time: Float64Ptr(seconds)})
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.time = seconds
	t.mu.Unlock()
	t.update(resp)
	return nil
}

func (t *Track) Play() error {
	resp, err := t.cmd.Do(Command{Cmd: "play", Track: t.name})
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
	t.update(resp)
	return nil
}

func (t *Track) Pause() error {
	resp, err := t.cmd.Do(Command{Cmd: "pause", Track: t.name})
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
	t.update(resp)
	return nil
}

// Paused reports the last known paused state.
func (t *Track) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *Track) SetPlaybackRate(rate float64) error {
	_, err := t.cmd.Do(Command{Cmd: "rate", Track: t.name, Rate: Float64Ptr(rate)})
	return err
}

// Subscribe registers fn for this track's notifications. The first
// subscriber opens a second connection dedicated to the event stream;
// listeners are called serially from its reader goroutine.
func (t *Track) Subscribe(fn func(media.Event)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	needStream := t.events == nil
	t.mu.Unlock()

	if needStream {
		if err := t.openStream(); err != nil {
			logger.Error("player subscribe failed", "track", t.name, "error", err)
		}
	}

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Track) openStream() error {
	c, err := Connect(t.socket)
	if err != nil {
		return err
	}
	if _, err := c.Do(Command{Cmd: "subscribe", Track: t.name, Events: subscribedEvents}); err != nil {
		c.Close()
		return err
	}

	t.mu.Lock()
	if t.events != nil {
		// lost a race with another subscriber
		t.mu.Unlock()
		c.Close()
		return nil
	}
	t.events = c
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go t.readLoop(c, done)
	return nil
}

func (t *Track) readLoop(c *Client, done chan struct{}) {
	defer close(done)
	defer t.lostOnce.Do(func() { close(t.lost) })
	for {
		ev, err := c.ReadEvent()
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				logger.Debug("player event stream ended", "track", t.name, "error", err)
			}
			return
		}
		if ev.Track != "" && ev.Track != t.name {
			continue
		}
		t.dispatch(media.Event{Type: media.EventType(ev.Event), CurrentTime: ev.CurrentTime})
	}
}

func (t *Track) dispatch(ev media.Event) {
	t.mu.Lock()
	t.time = ev.CurrentTime
	switch ev.Type {
	case media.EventPlay:
		t.paused = false
	case media.EventPause, media.EventEnded:
		t.paused = true
	}
	fns := make([]func(media.Event), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Close hangs up both connections and waits for the event reader to exit.
func (t *Track) Close() error {
	t.mu.Lock()
	events, done := t.events, t.done
	t.events = nil
	t.mu.Unlock()

	err := t.cmd.Close()
	if events != nil {
		events.Close()
		<-done
	}
	return err
}

func (t *Track) status() (Response, error) {
	resp, err := t.cmd.Do(Command{Cmd: "status", Track: t.name})
	if err != nil {
		return resp, err
	}
	t.update(resp)
	return resp, nil
}

func (t *Track) update(resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if resp.CurrentTime != nil {
		t.time = *resp.CurrentTime
	}
	if resp.Paused != nil {
		t.paused = *resp.Paused
	}
}
