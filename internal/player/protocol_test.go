package player

import (
	"testing"
)

func TestCommandMarshalSeek(t *testing.T) {
	cmd := Command{
		Cmd:   "seek",
		Track: TrackVideo,
		Time:  Float64Ptr(12.5),
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Command
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Cmd != "seek" {
		t.Errorf("cmd = %q, want %q", got.Cmd, "seek")
	}
	if got.Track != TrackVideo {
		t.Errorf("track = %q, want %q", got.Track, TrackVideo)
	}
	if got.Time == nil || *got.Time != 12.5 {
		t.Errorf("time = %v, want 12.5", got.Time)
	}
}

func TestCommandSeekToZeroKeepsTime(t *testing.T) {
	data, err := json.Marshal(Command{Cmd: "seek", Track: TrackAudio, Time: Float64Ptr(0)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if v, ok := raw["time"]; !ok || v != 0.0 {
		t.Errorf("time = %v (present %v), want explicit 0", v, ok)
	}
}

func TestCommandOmitsEmptyFields(t *testing.T) {
	cmd := Command{Cmd: "pause", Track: TrackVideo}
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	for _, key := range []string{"time", "rate", "source", "events"} {
		if _, ok := raw[key]; ok {
			t.Errorf("pause command should omit %s", key)
		}
	}
}

func TestResponseStatus(t *testing.T) {
	j := `{"ok":true,"track":"video","currentTime":4.25,"paused":false,"duration":120,"source":"/tmp/routine.mp4"}`

	var resp Response
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !resp.OK {
		t.Error("ok = false, want true")
	}
	if resp.CurrentTime == nil || *resp.CurrentTime != 4.25 {
		t.Errorf("currentTime = %v, want 4.25", resp.CurrentTime)
	}
	if resp.Paused == nil || *resp.Paused {
		t.Errorf("paused = %v, want false", resp.Paused)
	}
	if resp.Duration == nil || *resp.Duration != 120 {
		t.Errorf("duration = %v, want 120", resp.Duration)
	}
}

func TestResponseError(t *testing.T) {
	j := `{"ok":false,"error":"no media loaded"}`

	var resp Response
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.OK {
		t.Error("ok = true, want false")
	}
	if resp.Error != "no media loaded" {
		t.Errorf("error = %q, want %q", resp.Error, "no media loaded")
	}
}

func TestEventTimeUpdate(t *testing.T) {
	j := `{"event":"timeupdate","track":"video","currentTime":7.5}`

	var ev Event
	if err := json.Unmarshal([]byte(j), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if ev.Event != "timeupdate" {
		t.Errorf("event = %q, want %q", ev.Event, "timeupdate")
	}
	if ev.Track != TrackVideo {
		t.Errorf("track = %q, want %q", ev.Track, TrackVideo)
	}
	if ev.CurrentTime != 7.5 {
		t.Errorf("currentTime = %v, want 7.5", ev.CurrentTime)
	}
}

func TestBoolPtr(t *testing.T) {
	p := BoolPtr(true)
	if p == nil || !*p {
		t.Error("BoolPtr(true) should return pointer to true")
	}

	p = BoolPtr(false)
	if p == nil || *p {
		t.Error("BoolPtr(false) should return pointer to false")
	}
}
