// Package player provides the client and protocol types for driving an
// external player daemon over a Unix socket using NDJSON. The daemon owns the
// real video and audio elements; Track exposes one of them as a media element.
package player

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Track names understood by the daemon.
const (
	TrackVideo = "video"
	TrackAudio = "audio"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string   `json:"cmd"`
	Track  string   `json:"track,omitempty"`
	Time   *float64 `json:"time,omitempty"`
	Rate   *float64 `json:"rate,omitempty"`
	Source string   `json:"source,omitempty"`
	Events []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK          bool     `json:"ok"`
	Error       string   `json:"error,omitempty"`
	Track       string   `json:"track,omitempty"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	Paused      *bool    `json:"paused,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Rate        *float64 `json:"rate,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event       string  `json:"event"`
	Track       string  `json:"track"`
	CurrentTime float64 `json:"currentTime"`
}

// Float64Ptr returns a pointer to v. Convenience for building commands.
func Float64Ptr(v float64) *float64 { return &v }

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool { return &b }
