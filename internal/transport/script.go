package transport

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/media"
)

// alignTolerance is how far the video may be from a recorded play position
// before a Script seeks it into place.
const alignTolerance = 0.25

// Script is a recorded transport log that can be acted out again.
type Script []critique.TransportAction

// Run acts the script out against video: each action is issued at its
// recorded offset from the moment Run is called. It returns when the script
// is exhausted or ctx is cancelled.
func (s Script) Run(ctx context.Context, video media.Element) error {
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for i, a := range s {
		wait := time.Until(start.Add(time.Duration(a.TimestampMS) * time.Millisecond))
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := apply(video, a); err != nil {
			return fmt.Errorf("transport action %d (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

func apply(video media.Element, a critique.TransportAction) error {
	switch a.Type {
	case critique.ActionPlay:
		if math.Abs(video.CurrentTime()-a.VideoTime) > alignTolerance {
			if err := video.SetCurrentTime(a.VideoTime); err != nil {
				return err
			}
		}
		return video.Play()
	case critique.ActionPause:
		return video.Pause()
	case critique.ActionSeek:
		return video.SetCurrentTime(a.VideoTime)
	}
	return fmt.Errorf("unknown action type %q", a.Type)
}
