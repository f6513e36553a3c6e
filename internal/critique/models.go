// Package critique holds the critique session model shared by the recorder,
// the stores and the replay engine.
package critique

import (
	"fmt"
	"strings"
	"time"
)

// Point is a stroke vertex in normalized canvas space: X and Y are fractions
// of the canvas width and height, so strokes survive a resize.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous freehand gesture over the video.
type Stroke struct {
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	Width     float64 `json:"width"`
	Timestamp float64 `json:"timestamp"` // video seconds when the stroke began
	Duration  float64 `json:"duration"`  // seconds visible once Timestamp is reached
}

// End returns the video time at which the stroke stops being visible.
func (s Stroke) End() float64 {
	return s.Timestamp + s.Duration
}

// VisibleAt reports whether t lies inside [Timestamp, Timestamp+Duration].
func (s Stroke) VisibleAt(t float64) bool {
	return s.Timestamp <= t && t <= s.End()
}

// ActionType is a video transport action.
type ActionType string

const (
	ActionPlay  ActionType = "play"
	ActionPause ActionType = "pause"
	ActionSeek  ActionType = "seek"
)

// TransportAction is one play/pause/seek observed while recording.
type TransportAction struct {
	Type        ActionType `json:"type"`
	TimestampMS int64      `json:"timestamp_ms"` // wall-clock offset from recording start
	VideoTime   float64    `json:"videoTime"`    // seconds into the video
}

// AudioArtifact is the encoded narration of a session. Raw is only present
// when the session was captured in dual-audio mode.
type AudioArtifact struct {
	Preview    []byte        `json:"preview"`
	Raw        []byte        `json:"raw"`
	MIMEType   string        `json:"mimeType"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
}

// Dual reports whether the artifact carries a raw transcription stream.
func (a *AudioArtifact) Dual() bool {
	return a != nil && a.Raw != nil
}

// Extension returns the file extension for the preview stream.
func (a *AudioArtifact) Extension() string {
	switch {
	case strings.HasPrefix(a.MIMEType, "audio/wav"):
		return ".wav"
	case strings.HasPrefix(a.MIMEType, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(a.MIMEType, "audio/ogg"):
		return ".ogg"
	}
	return ".pcm"
}

// Session is a saved critique: the audio, strokes and transport log recorded
// in one pass over one video.
type Session struct {
	ID               string            `json:"id"`
	ContentID        string            `json:"contentId"`
	Audio            *AudioArtifact    `json:"audio"`
	Strokes          []Stroke          `json:"strokes"`
	TransportActions []TransportAction `json:"transportActions"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// Duration returns the recorded audio length, or zero without audio.
func (s *Session) Duration() time.Duration {
	if s.Audio == nil {
		return 0
	}
	return s.Audio.Duration
}

// Validate checks the invariants a stored session must hold.
func (s *Session) Validate() error {
	if s.ContentID == "" {
		return ErrInvalidContentID
	}
	for i, st := range s.Strokes {
		if len(st.Points) == 0 {
			return fmt.Errorf("stroke %d: no points", i)
		}
		if st.Duration < 0 {
			return fmt.Errorf("stroke %d: negative duration %v", i, st.Duration)
		}
		for _, p := range st.Points {
			if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
				return fmt.Errorf("stroke %d: point (%v, %v) not normalized", i, p.X, p.Y)
			}
		}
	}
	var last int64
	for i, a := range s.TransportActions {
		if a.TimestampMS < last {
			return fmt.Errorf("transport action %d: timestamp %dms before %dms", i, a.TimestampMS, last)
		}
		last = a.TimestampMS
	}
	return nil
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Audio != nil {
		a := *s.Audio
		a.Preview = cloneBytes(s.Audio.Preview)
		a.Raw = cloneBytes(s.Audio.Raw)
		out.Audio = &a
	}
	if s.Strokes != nil {
		out.Strokes = make([]Stroke, len(s.Strokes))
		for i, st := range s.Strokes {
			st.Points = append([]Point(nil), st.Points...)
			out.Strokes[i] = st
		}
	}
	if s.TransportActions != nil {
		out.TransportActions = append([]TransportAction(nil), s.TransportActions...)
	}
	return &out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
