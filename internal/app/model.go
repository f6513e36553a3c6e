package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/drawing"
	"github.com/Shofol/CritVid-sub002/internal/logger"
	"github.com/Shofol/CritVid-sub002/internal/media"
	"github.com/Shofol/CritVid-sub002/internal/metrics"
	"github.com/Shofol/CritVid-sub002/internal/store"
	"github.com/Shofol/CritVid-sub002/internal/studio"
	"github.com/Shofol/CritVid-sub002/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// Player is the set of playback tracks the studio drives.
type Player struct {
	Video     media.Video
	Narration media.AudioPlayer // nil when there is no audio track

	// LoadVideo and LoadNarration point a track at a media file. Either may
	// be nil when the track is fed some other way.
	LoadVideo     func(source string) error
	LoadNarration func(source string) error
	Close         func() error
	// Done is closed when the connection to the player is lost. Nil means
	// the player never reports it.
	Done <-chan struct{}
}

// Deps are the services the studio is built on.
type Deps struct {
	ContentID string
	Source    string // video file loaded into the player once connected
	Dial      func() (Player, error)
	Capture   studio.Capture
	Store     store.Store
	Metrics   *metrics.Metrics
	Studio    studio.Config
	Drawing   drawing.Config
}

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusSessions PanelFocus = iota
	FocusCanvas
)

// Screen rows above the overlay: header, status, divider, panel title.
const canvasTop = 4

// Model is the root bubbletea model for the critique studio.
type Model struct {
	deps Deps
	ctx  context.Context

	// Connection state
	player           Player
	connected        bool
	connError        string
	reconnecting     bool
	reconnectAttempt int
	events           chan media.Event
	eventsQuit       chan struct{}
	unsubscribe      func()

	// Studio
	sync       *studio.Synchronizer
	engine     *drawing.Engine
	canvas     *ui.CellCanvas
	contentID  string
	starting   bool
	elapsed    time.Duration
	pending    *critique.Session
	replay     *studio.Replay
	replayID   string
	colorIndex int

	// Video
	videoTime   float64
	videoPaused bool

	// Saved critiques
	sessions []store.Summary
	selected int

	// UI state
	focusedPanel PanelFocus
	width        int
	height       int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string
}

// New creates a Model with default state.
func New(deps Deps) Model {
	canvas := ui.NewCellCanvas(0, 0)
	engine := drawing.NewEngine(canvas, deps.Drawing)
	return Model{
		deps:         deps,
		ctx:          context.Background(),
		engine:       engine,
		canvas:       canvas,
		contentID:    deps.ContentID,
		videoPaused:  true,
		focusedPanel: FocusCanvas,
		statusText:   "Connecting to player...",
	}
}

// Init returns the initial command: connect to the player.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.deps.Dial)
}

// connectCmd binds the video and narration tracks.
func connectCmd(dial func() (Player, error)) tea.Cmd {
	return func() tea.Msg {
		if dial == nil {
			return PlayerConnectErrorMsg{Err: errors.New("no player configured")}
		}
		p, err := dial()
		if err != nil {
			return PlayerConnectErrorMsg{Err: err}
		}
		return PlayerConnectedMsg{Player: p}
	}
}

// waitForEventCmd delivers the next video notification. It gives up
// quietly once quit is closed.
func waitForEventCmd(events <-chan media.Event, quit <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-events:
			return VideoEventMsg{Event: ev, events: events}
		case <-quit:
			return nil
		}
	}
}

// waitForDisconnectCmd reports when the player connection is lost.
func waitForDisconnectCmd(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return PlayerDisconnectedMsg{done: done}
	}
}

func loadVideoCmd(load func(string) error, source string) tea.Cmd {
	return func() tea.Msg {
		if err := load(source); err != nil {
			return CommandErrorMsg{Op: "load video", Err: err}
		}
		return nil
	}
}

func startCmd(ctx context.Context, s *studio.Synchronizer, contentID string) tea.Cmd {
	return func() tea.Msg {
		return SessionStartedMsg{Err: s.StartSession(ctx, contentID)}
	}
}

func stopCmd(ctx context.Context, s *studio.Synchronizer) tea.Cmd {
	return func() tea.Msg {
		sess, err := s.StopSession(ctx)
		return SessionStoppedMsg{Session: sess, Err: err}
	}
}

func saveCmd(ctx context.Context, s *studio.Synchronizer, contentID string) tea.Cmd {
	return func() tea.Msg {
		return SessionSavedMsg{ContentID: contentID, Err: s.Save(ctx, contentID)}
	}
}

// replayCmd loads the saved critique, hands its narration to the audio
// track and starts following the video.
func replayCmd(ctx context.Context, s *studio.Synchronizer, p Player, contentID string) tea.Cmd {
	return func() tea.Msg {
		sess, err := s.Load(ctx, contentID)
		if err != nil {
			return ReplayStartedMsg{ContentID: contentID, Err: err}
		}
		narration := p.Narration
		if sess.Audio == nil {
			narration = nil
		}
		if narration != nil && p.LoadNarration != nil {
			path, err := writeNarration(sess)
			if err != nil {
				return ReplayStartedMsg{ContentID: contentID, Err: fmt.Errorf("export narration: %w", err)}
			}
			if err := p.LoadNarration(path); err != nil {
				return ReplayStartedMsg{ContentID: contentID, Err: fmt.Errorf("load narration: %w", err)}
			}
		}
		r, err := s.Replay(ctx, sess, narration)
		return ReplayStartedMsg{ContentID: contentID, Replay: r, Err: err}
	}
}

// writeNarration puts the preview stream where the player daemon can read it.
func writeNarration(sess *critique.Session) (string, error) {
	dir := filepath.Join(os.TempDir(), "critvid")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, sess.ID+sess.Audio.Extension())
	if err := os.WriteFile(path, sess.Audio.Preview, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func listSessionsCmd(ctx context.Context, st store.Store) tea.Cmd {
	return func() tea.Msg {
		if st == nil {
			return SessionsLoadedMsg{}
		}
		sessions, err := st.List(ctx)
		return SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

func playPauseCmd(video media.Video) tea.Cmd {
	return func() tea.Msg {
		var err error
		if video.Paused() {
			err = video.Play()
		} else {
			err = video.Pause()
		}
		if err != nil {
			return CommandErrorMsg{Op: "play/pause", Err: err}
		}
		return nil
	}
}

func seekCmd(video media.Video, delta float64) tea.Cmd {
	return func() tea.Msg {
		t := max(0, video.CurrentTime()+delta)
		if err := video.SetCurrentTime(t); err != nil {
			return CommandErrorMsg{Op: "seek", Err: err}
		}
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		cols, rows := m.canvasSize()
		m.canvas.Resize(cols, rows)
		m.engine.Resize(float64(cols), float64(rows))
		return m, nil

	case PlayerConnectedMsg:
		m.player = msg.Player
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		if m.sync == nil {
			m.sync = studio.New(msg.Player.Video, m.deps.Capture, m.engine, m.deps.Store, m.deps.Metrics, m.deps.Studio)
		} else if err := m.sync.SetVideo(msg.Player.Video); err != nil {
			logger.Warn("rebind video failed", "error", err)
			m.errorMessage = "reconnected while still recording: " + err.Error()
			m.errorTransient = false
		}
		m.events = make(chan media.Event, 256)
		m.eventsQuit = make(chan struct{})
		events := m.events
		m.unsubscribe = msg.Player.Video.Subscribe(func(ev media.Event) {
			select {
			case events <- ev:
			default:
				// the UI is behind; it catches up on the next event
			}
		})
		m.videoTime = msg.Player.Video.CurrentTime()
		m.videoPaused = msg.Player.Video.Paused()
		m.engine.Render(m.videoTime)

		cmds := []tea.Cmd{
			waitForEventCmd(m.events, m.eventsQuit),
			waitForDisconnectCmd(msg.Player.Done),
			listSessionsCmd(m.ctx, m.deps.Store),
		}
		if m.deps.Source != "" && msg.Player.LoadVideo != nil {
			cmds = append(cmds, loadVideoCmd(msg.Player.LoadVideo, m.deps.Source))
		}
		return m, tea.Batch(cmds...)

	case PlayerConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Player not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case PlayerDisconnectedMsg:
		if msg.done != m.player.Done {
			// a player already replaced
			return m, nil
		}
		logger.Warn("player disconnected")
		m.connected = false
		m.connError = "player connection lost"
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		if m.replay != nil {
			m.replay.Stop()
			m.replay = nil
			m.replayID = ""
		}
		var cmds []tea.Cmd
		if m.sync != nil && m.sync.State() == studio.StateRecording {
			// keep what was recorded so far as the pending critique
			cmds = append(cmds, stopCmd(m.ctx, m.sync))
		}
		m.dropPlayer()
		cmds = append(cmds, reconnectCmd(m.reconnectAttempt))
		return m, tea.Batch(cmds...)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.deps.Dial)

	case VideoEventMsg:
		if msg.events != nil && msg.events != m.events {
			// from a connection that has since been dropped
			return m, nil
		}
		m.videoTime = msg.Event.CurrentTime
		switch msg.Event.Type {
		case media.EventPlay:
			m.videoPaused = false
		case media.EventPause, media.EventEnded:
			m.videoPaused = true
		}
		if m.replay == nil {
			// a replay redraws from its own subscription
			m.engine.Render(m.videoTime)
		}
		if m.eventsQuit == nil {
			return m, nil
		}
		return m, waitForEventCmd(m.events, m.eventsQuit)

	case SessionStartedMsg:
		m.starting = false
		if msg.Err != nil {
			switch {
			case errors.Is(msg.Err, context.Canceled):
				m.statusText = "Discarded"
				return m, nil
			case errors.Is(msg.Err, critique.ErrPermissionDenied):
				m.errorMessage = msg.Err.Error() + ". " + critique.PermissionHint
				m.errorTransient = false
				m.statusText = "Idle"
				return m, nil
			}
			return m.transientError(msg.Err)
		}
		m.replay = nil
		m.replayID = ""
		m.pending = nil
		m.elapsed = 0
		m.errorMessage = ""
		m.statusText = "Recording"
		return m, tickCmd()

	case SessionStoppedMsg:
		m.engine.ExitDrawMode()
		if msg.Err != nil {
			return m.transientError(msg.Err)
		}
		m.pending = msg.Session
		m.elapsed = msg.Session.Duration()
		m.statusText = "Stopped. Press s to save, x to discard"
		return m, nil

	case SessionSavedMsg:
		if msg.Err != nil {
			m.errorMessage = msg.Err.Error() + " (press s to retry)"
			m.errorTransient = false
			m.statusText = "Save failed"
			return m, nil
		}
		m.pending = nil
		m.errorMessage = ""
		m.statusText = "Saved " + msg.ContentID
		return m, listSessionsCmd(m.ctx, m.deps.Store)

	case ReplayStartedMsg:
		if msg.Err != nil {
			return m.transientError(msg.Err)
		}
		m.replay = msg.Replay
		m.replayID = msg.ContentID
		m.statusText = "Replaying " + msg.ContentID
		return m, nil

	case SessionsLoadedMsg:
		if msg.Err != nil {
			logger.Warn("list critiques failed", "error", msg.Err)
			return m, nil
		}
		m.sessions = msg.Sessions
		if m.selected >= len(m.sessions) {
			m.selected = max(0, len(m.sessions)-1)
		}
		return m, nil

	case CommandErrorMsg:
		return m.transientError(fmt.Errorf("%s: %w", msg.Op, msg.Err))

	case TickMsg:
		if m.sync == nil || m.sync.State() != studio.StateRecording {
			return m, nil
		}
		m.elapsed = m.sync.Elapsed()
		return m, tickCmd()

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) transientError(err error) (tea.Model, tea.Cmd) {
	m.errorMessage = err.Error()
	m.errorTransient = true
	return m, clearTransientErrorCmd()
}

func (m Model) state() studio.State {
	if m.sync == nil {
		return studio.StateIdle
	}
	return m.sync.State()
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.shutdown()
		return m, tea.Quit

	case KeySpace:
		if !m.connected || m.sync == nil || m.starting {
			return m, nil
		}
		switch m.sync.State() {
		case studio.StateIdle:
			m.starting = true
			m.statusText = "Waiting for microphone..."
			return m, startCmd(m.ctx, m.sync, m.contentID)
		case studio.StateRecording:
			return m, stopCmd(m.ctx, m.sync)
		}
		return m, nil

	case KeyDraw:
		if m.state() != studio.StateRecording {
			return m.transientError(errors.New("draw mode is available while recording"))
		}
		if m.engine.DrawMode() {
			m.engine.ExitDrawMode()
		} else {
			m.engine.EnterDrawMode()
		}
		return m, nil

	case KeyCycleColor:
		m.colorIndex = (m.colorIndex + 1) % len(palette)
		m.engine.SetColor(palette[m.colorIndex])
		return m, nil

	case KeySave:
		if m.sync == nil {
			return m, nil
		}
		if m.pending == nil {
			return m.transientError(critique.ErrNothingToSave)
		}
		m.statusText = "Saving..."
		return m, saveCmd(m.ctx, m.sync, m.contentID)

	case KeyDiscard:
		if m.sync == nil {
			return m, nil
		}
		if m.replay != nil {
			m.replay.Stop()
			m.replay = nil
			m.replayID = ""
		}
		m.sync.Discard()
		m.pending = nil
		m.elapsed = 0
		m.errorMessage = ""
		m.statusText = "Discarded"
		return m, nil

	case KeyReplay:
		if m.replay != nil {
			m.stopReplay()
			return m, nil
		}
		return m.startReplay(m.contentID)

	case KeyPlayPause:
		if !m.connected {
			return m, nil
		}
		return m, playPauseCmd(m.player.Video)

	case KeyLeft, KeyRight:
		if !m.connected {
			return m, nil
		}
		delta := seekStep
		if msg.String() == KeyLeft {
			delta = -seekStep
		}
		return m, seekCmd(m.player.Video, delta)

	case KeyTab:
		if m.focusedPanel == FocusSessions {
			m.focusedPanel = FocusCanvas
		} else {
			m.focusedPanel = FocusSessions
		}
		return m, nil

	case KeyJ, KeyDown:
		if m.focusedPanel == FocusSessions && m.selected < len(m.sessions)-1 {
			m.selected++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.focusedPanel == FocusSessions && m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyEnter:
		if m.focusedPanel == FocusSessions && m.selected < len(m.sessions) {
			if m.replay != nil {
				m.stopReplay()
			}
			return m.startReplay(m.sessions[m.selected].ContentID)
		}
		return m, nil

	case KeyRefreshList:
		return m, listSessionsCmd(m.ctx, m.deps.Store)
	}

	return m, nil
}

func (m Model) startReplay(contentID string) (tea.Model, tea.Cmd) {
	if !m.connected || m.sync == nil {
		return m, nil
	}
	if m.sync.State() != studio.StateIdle {
		return m.transientError(critique.ErrAlreadyRecording)
	}
	m.statusText = "Loading " + contentID + "..."
	return m, replayCmd(m.ctx, m.sync, m.player, contentID)
}

func (m *Model) stopReplay() {
	m.replay.Stop()
	m.replay = nil
	m.replayID = ""
	m.engine.ClearAll()
	m.statusText = "Replay stopped"
}

// handleMouse turns left-button gestures over the overlay into strokes.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.sync == nil {
		return m, nil
	}
	left := m.canvasLeft()
	// cell centres, so the stroke lands in the cell that was clicked
	p := drawing.Pointer{
		X:    float64(msg.X-left) + 0.5,
		Y:    float64(msg.Y-canvasTop) + 0.5,
		Kind: drawing.PointerMouse,
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !m.insideCanvas(msg.X, msg.Y) {
			return m, nil
		}
		m.sync.PointerDown(p)
	case tea.MouseActionMotion:
		if m.engine.Drawing() {
			m.sync.PointerMove(p)
		}
	case tea.MouseActionRelease:
		if m.engine.Drawing() {
			m.sync.PointerUp()
		}
	}
	return m, nil
}

func (m *Model) shutdown() {
	if m.replay != nil {
		m.replay.Stop()
		m.replay = nil
	}
	if m.sync != nil {
		if m.starting || m.sync.State() == studio.StateRecording {
			m.sync.Discard()
		}
		m.sync.Close()
	}
	m.dropPlayer()
}

// dropPlayer detaches from the current player and closes it.
func (m *Model) dropPlayer() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.eventsQuit != nil {
		close(m.eventsQuit)
		m.eventsQuit = nil
	}
	if m.player.Close != nil {
		if err := m.player.Close(); err != nil {
			logger.Warn("close player failed", "error", err)
		}
	}
	m.player = Player{}
}

func (m Model) sessionPanelWidth() int {
	if m.width == 0 {
		return 24
	}
	return max(20, m.width*25/100)
}

func (m Model) canvasLeft() int {
	return m.sessionPanelWidth() + 1
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// header, status, two dividers, error, footer
	return max(3, m.height-6)
}

// canvasSize is the overlay grid below the panel title.
func (m Model) canvasSize() (cols, rows int) {
	return max(1, m.width-m.canvasLeft()), m.contentHeight() - 1
}

func (m Model) insideCanvas(x, y int) bool {
	cols, rows := m.canvasSize()
	x -= m.canvasLeft()
	y -= canvasTop
	return x >= 0 && y >= 0 && x < cols && y < rows
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderMainContent())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("CRITVID")
	content := ui.DimStyle.Render(" — " + m.contentID)
	color := " " + ui.Swatch(m.engine.Config().Color)
	return title + content + color
}

func (m Model) renderStatusBar() string {
	var dot string
	switch {
	case m.starting:
		dot = ui.SavingStyle.Render("◌ MIC")
	case m.state() == studio.StateRecording:
		dot = ui.RecordingDotStyle.Render("● REC " + formatDuration(m.elapsed))
	case m.state() == studio.StateSaving:
		dot = ui.SavingStyle.Render("◌ SAVING")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	var badges string
	if m.engine.DrawMode() {
		badges += "  " + ui.DrawBadgeStyle.Render("✎ DRAW")
	}
	if m.replay != nil {
		badges += "  " + ui.ReplayBadgeStyle.Render("▶ REPLAY "+m.replayID)
	}
	if m.pending != nil {
		badges += "  " + ui.PendingStyle.Render(fmt.Sprintf("unsaved %s, %d strokes", formatDuration(m.pending.Duration()), len(m.pending.Strokes)))
	}

	play := "⏸"
	if !m.videoPaused {
		play = "▶"
	}
	clock := "  " + ui.TimestampStyle.Render(play+" "+formatClock(m.videoTime))

	return dot + badges + clock + "  " + ui.StatusStyle.Render(m.statusText)
}

func (m Model) renderMainContent() string {
	listW := m.sessionPanelWidth()
	contentH := m.contentHeight()

	list := strings.Split(m.renderSessionPanel(listW, contentH), "\n")
	overlay := strings.Split(m.renderCanvasPanel(contentH), "\n")
	divider := ui.DividerStyle.Render("│")

	rows := make([]string, contentH)
	for i := range rows {
		l := strings.Repeat(" ", listW)
		if i < len(list) {
			l = list[i]
		}
		r := ""
		if i < len(overlay) {
			r = overlay[i]
		}
		rows[i] = l + divider + r
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderSessionPanel(width, height int) string {
	title := fmt.Sprintf("CRITIQUES (%d)", len(m.sessions))
	var header string
	if m.focusedPanel == FocusSessions {
		header = ui.PanelTitleActiveStyle.Render(title)
	} else {
		header = ui.PanelTitleStyle.Render(title)
	}

	lines := []string{padRight(header, width)}
	if len(m.sessions) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No saved critiques"))
	}
	for i, s := range m.sessions {
		line := fmt.Sprintf("%s %s %d✎", s.ContentID, formatDuration(s.Duration), s.Strokes)
		if i == m.selected && m.focusedPanel == FocusSessions {
			line = ui.SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, truncateToWidth(line, width))
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderCanvasPanel(height int) string {
	var header string
	if m.focusedPanel == FocusCanvas {
		header = ui.PanelTitleActiveStyle.Render("OVERLAY")
	} else {
		header = ui.PanelTitleStyle.Render("OVERLAY")
	}

	lines := []string{header}
	switch {
	case !m.connected && m.reconnecting:
		lines = append(lines, "", ui.ErrorTextStyle.Render("  Player disconnected. Reconnecting..."))
	case !m.connected:
		lines = append(lines, ui.DimStyle.Render("  Connecting to player..."))
	case m.canvas.Painted() == 0 && m.state() == studio.StateIdle && m.replay == nil:
		lines = append(lines, "", ui.DimStyle.Render("  Press Space to record a critique"))
	default:
		lines = append(lines, m.canvas.Lines()...)
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	var parts []string
	if m.connected {
		switch m.state() {
		case studio.StateRecording:
			parts = append(parts, key("Space", "Stop"), key("d", "Draw"), key("c", "Color"))
		default:
			parts = append(parts, key("Space", "Record"))
			if m.pending != nil {
				parts = append(parts, key("s", "Save"))
			}
			if m.replay != nil {
				parts = append(parts, key("r", "Stop replay"))
			} else {
				parts = append(parts, key("r", "Replay"))
			}
		}
		parts = append(parts, key("x", "Discard"), key("p", "Play/Pause"), key("←→", "Seek"), key("Tab", "Focus"))
	}
	parts = append(parts, key("q", "Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func formatClock(seconds float64) string {
	return fmt.Sprintf("%05.1fs", seconds)
}

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}
