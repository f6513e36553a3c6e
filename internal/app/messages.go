package app

import (
	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/media"
	"github.com/Shofol/CritVid-sub002/internal/store"
	"github.com/Shofol/CritVid-sub002/internal/studio"
)

// PlayerConnectedMsg is sent when the player tracks are bound.
type PlayerConnectedMsg struct {
	Player Player
}

// PlayerConnectErrorMsg is sent when the player daemon cannot be reached.
type PlayerConnectErrorMsg struct {
	Err error
}

// PlayerDisconnectedMsg is sent when the video track's event stream ends.
type PlayerDisconnectedMsg struct {
	done <-chan struct{} // Done channel of the player that went away
}

// VideoEventMsg wraps a playback notification from the video track.
type VideoEventMsg struct {
	Event  media.Event
	events <-chan media.Event // nil for events not read from a connection
}

// SessionStartedMsg carries the result of starting a recording.
type SessionStartedMsg struct {
	Err error
}

// SessionStoppedMsg carries the session assembled when recording stopped.
type SessionStoppedMsg struct {
	Session *critique.Session
	Err     error
}

// SessionSavedMsg carries the result of a save.
type SessionSavedMsg struct {
	ContentID string
	Err       error
}

// ReplayStartedMsg carries a running replay, or why it could not start.
type ReplayStartedMsg struct {
	ContentID string
	Replay    *studio.Replay
	Err       error
}

// SessionsLoadedMsg carries the saved critiques for the list panel.
type SessionsLoadedMsg struct {
	Sessions []store.Summary
	Err      error
}

// CommandErrorMsg reports a failed player command.
type CommandErrorMsg struct {
	Op  string
	Err error
}

// TickMsg refreshes the elapsed recording time.
type TickMsg struct{}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
