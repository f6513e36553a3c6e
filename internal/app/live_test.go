package app

import (
	"fmt"
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Shofol/CritVid-sub002/internal/capture"
	"github.com/Shofol/CritVid-sub002/internal/player"
	"github.com/Shofol/CritVid-sub002/internal/store"
)

// TestLiveStudioFlow records a short critique against a running player daemon.
// Skipped if the daemon isn't running.
func TestLiveStudioFlow(t *testing.T) {
	sockPath := player.SocketPath()
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("player not running")
	}

	video, err := player.Dial(sockPath, player.TrackVideo)
	if err != nil {
		t.Fatalf("dial video: %v", err)
	}
	p := Player{Video: video, LoadVideo: video.Load, Close: video.Close, Done: video.Done()}

	m := New(Deps{
		ContentID: "live-test",
		Dial:      func() (Player, error) { return p, nil },
		Capture:   capture.NewRecorder(&capture.SilentMicrophone{Format: capture.DefaultFormat}, capture.Config{}),
		Store:     store.NewMemoryStore(),
	})
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = applyUpdate(m, PlayerConnectedMsg{Player: p})
	defer m.shutdown()
	fmt.Println("=== Connected View ===")
	fmt.Println(m.View())

	m, _ = applyUpdate(m, startCmd(m.ctx, m.sync, m.contentID)())
	if m.errorMessage != "" {
		t.Fatalf("start: %s", m.errorMessage)
	}

	// Let the video run and fold its events into the model.
	deadline := time.After(3 * time.Second)
	events := 0
collect:
	for {
		select {
		case ev := <-m.events:
			m, _ = applyUpdate(m, VideoEventMsg{Event: ev})
			events++
		case <-deadline:
			break collect
		}
	}
	fmt.Printf("Video events: %d, time %.2fs\n", events, m.videoTime)

	m, _ = applyUpdate(m, stopCmd(m.ctx, m.sync)())
	if m.pending == nil {
		t.Fatalf("stop: %s", m.errorMessage)
	}
	fmt.Printf("Recorded %s of narration, %d transport actions\n",
		m.pending.Duration(), len(m.pending.TransportActions))

	fmt.Println("\n=== Final View ===")
	fmt.Println(m.View())

	if events == 0 {
		t.Error("expected video events while recording")
	}
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	newModel, cmd := m.Update(msg)
	return newModel.(Model), cmd
}
