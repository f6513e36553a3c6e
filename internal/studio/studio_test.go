package studio

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shofol/CritVid-sub002/internal/capture"
	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/drawing"
	"github.com/Shofol/CritVid-sub002/internal/media"
	"github.com/Shofol/CritVid-sub002/internal/media/mediatest"
	"github.com/Shofol/CritVid-sub002/internal/metrics"
	"github.com/Shofol/CritVid-sub002/internal/store"
)

// flakyStore fails the next n saves.
type flakyStore struct {
	store.Store
	failures atomic.Int32
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) Save(ctx context.Context, s *critique.Session) error {
	if f.failures.Add(-1) >= 0 {
		return errDiskFull
	}
	return f.Store.Save(ctx, s)
}

type harness struct {
	sync    *Synchronizer
	video   *mediatest.Video
	audio   *capture.Recorder
	mic     *capture.SilentMicrophone
	store   *flakyStore
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	return newHarnessOn(t, cfg, nil)
}

// newHarnessOn builds a harness whose synchronizer drives wrap(video)
// instead of the fake video itself.
func newHarnessOn(t *testing.T, cfg Config, wrap func(*mediatest.Video) media.Video) *harness {
	t.Helper()
	h := &harness{
		video:   mediatest.NewVideo(),
		mic:     &capture.SilentMicrophone{ChunkInterval: 5 * time.Millisecond},
		store:   &flakyStore{Store: store.NewMemoryStore()},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.audio = capture.NewRecorder(h.mic, capture.Config{Mode: capture.ModeDual})
	engine := drawing.NewEngine(nil, drawing.Config{})
	engine.Resize(1000, 500)
	var video media.Video = h.video
	if wrap != nil {
		video = wrap(h.video)
	}
	h.sync = New(video, h.audio, engine, h.store, h.metrics, cfg)
	t.Cleanup(func() {
		h.sync.Discard()
		h.sync.Close()
	})
	return h
}

func (h *harness) draw(t *testing.T, at float64, points ...drawing.Pointer) critique.Stroke {
	t.Helper()
	h.video.Set(at)
	h.sync.Engine().EnterDrawMode()
	require.True(t, h.sync.PointerDown(points[0]))
	for _, p := range points[1:] {
		require.True(t, h.sync.PointerMove(p))
	}
	s, ok := h.sync.PointerUp()
	require.True(t, ok)
	return s
}

func TestStartStopRecordsOnePlayAction(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	assert.Equal(t, StateRecording, h.sync.State())
	assert.False(t, h.video.Paused(), "recording plays the video")

	sess, err := h.sync.StopSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, []critique.TransportAction{{Type: critique.ActionPlay, TimestampMS: 0, VideoTime: 0}}, sess.TransportActions)
	assert.Equal(t, StateIdle, h.sync.State())
	assert.True(t, h.video.Paused(), "stop pauses the video")
	assert.Equal(t, 0, h.video.Subscribers(), "transport log detached")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SessionsStarted))
}

func TestStartRewindsVideo(t *testing.T) {
	h := newHarness(t, Config{})
	h.video.Set(42)

	require.NoError(t, h.sync.StartSession(context.Background(), "vid-1"))

	assert.Equal(t, 0.0, h.video.CurrentTime())
	assert.Equal(t, []string{"seek", "play"}, h.video.CallLog())
	assert.Len(t, h.sync.Actions(), 1, "the rewind is part of the forced start, not a seek action")
}

// laggyVideo hands notifications to its listeners lag after they fire, from
// a goroutine per listener, the way the player daemon's event stream does.
type laggyVideo struct {
	*mediatest.Video
	lag time.Duration
}

type delayedEvent struct {
	ev media.Event
	at time.Time
}

func (v *laggyVideo) Subscribe(fn func(media.Event)) func() {
	queue := make(chan delayedEvent, 64)
	stop := make(chan struct{})
	unsubscribe := v.Video.Subscribe(func(ev media.Event) {
		select {
		case queue <- delayedEvent{ev: ev, at: time.Now()}:
		case <-stop:
		}
	})
	go func() {
		for {
			select {
			case <-stop:
				return
			case d := <-queue:
				select {
				case <-stop:
					return
				case <-time.After(time.Until(d.at.Add(v.lag))):
				}
				fn(d.ev)
			}
		}
	}()
	var once sync.Once
	return func() {
		unsubscribe()
		once.Do(func() { close(stop) })
	}
}

func TestStartStopWithLateEvents(t *testing.T) {
	h := newHarnessOn(t, Config{}, func(v *mediatest.Video) media.Video {
		return &laggyVideo{Video: v, lag: 80 * time.Millisecond}
	})
	h.video.Set(12)
	ctx := context.Background()

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	time.Sleep(150 * time.Millisecond)
	sess, err := h.sync.StopSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, []critique.TransportAction{{Type: critique.ActionPlay, TimestampMS: 0, VideoTime: 0}}, sess.TransportActions)
}

func TestStartSettlesWithoutSeekedEvent(t *testing.T) {
	h := newHarnessOn(t, Config{SettleTimeout: 20 * time.Millisecond}, func(v *mediatest.Video) media.Video {
		return &laggyVideo{Video: v, lag: time.Hour}
	})

	require.NoError(t, h.sync.StartSession(context.Background(), "vid-1"))
	assert.Equal(t, StateRecording, h.sync.State())
	assert.False(t, h.video.Paused())
}

// hookedVideo runs onSubscribe once, on the first Subscribe call.
type hookedVideo struct {
	*mediatest.Video
	onSubscribe func()
}

func (v *hookedVideo) Subscribe(fn func(media.Event)) func() {
	if hook := v.onSubscribe; hook != nil {
		v.onSubscribe = nil
		hook()
	}
	return v.Video.Subscribe(fn)
}

func TestDiscardWhileCueingVideo(t *testing.T) {
	hooked := &hookedVideo{}
	h := newHarnessOn(t, Config{}, func(v *mediatest.Video) media.Video {
		hooked.Video = v
		return hooked
	})
	hooked.onSubscribe = func() { h.sync.Discard() }

	err := h.sync.StartSession(context.Background(), "vid-1")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateIdle, h.sync.State())
	assert.True(t, h.video.Paused(), "video left paused")
	assert.Equal(t, capture.StateIdle, h.audio.State())
	assert.Empty(t, h.sync.Actions())
	assert.Equal(t, 0, h.video.Subscribers())
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.SessionsStarted))

	// the next start is unaffected
	require.NoError(t, h.sync.StartSession(context.Background(), "vid-1"))
	assert.Equal(t, StateRecording, h.sync.State())
}

func TestStartRequiresContentID(t *testing.T) {
	h := newHarness(t, Config{})
	assert.ErrorIs(t, h.sync.StartSession(context.Background(), ""), critique.ErrInvalidContentID)
	assert.Equal(t, StateIdle, h.sync.State())
}

func TestInvalidTransitions(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	_, err := h.sync.StopSession(ctx)
	assert.ErrorIs(t, err, critique.ErrNotRecording)
	assert.ErrorIs(t, h.sync.Save(ctx, "vid-1"), critique.ErrNothingToSave)

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	assert.ErrorIs(t, h.sync.StartSession(ctx, "vid-1"), critique.ErrAlreadyRecording)
	assert.ErrorIs(t, h.sync.Save(ctx, "vid-1"), critique.ErrAlreadyRecording)
}

func TestPermissionDenied(t *testing.T) {
	h := newHarness(t, Config{})
	h.mic.Deny = true

	err := h.sync.StartSession(context.Background(), "vid-1")

	assert.ErrorIs(t, err, critique.ErrPermissionDenied)
	assert.Equal(t, StateIdle, h.sync.State())
	assert.Equal(t, capture.StateIdle, h.audio.State())
	assert.Nil(t, h.sync.Pending())
	assert.Empty(t, h.sync.Actions())
	assert.True(t, h.video.Paused(), "video untouched")
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.SessionsStarted))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	h.draw(t, 1.0, drawing.Pointer{X: 100, Y: 100}, drawing.Pointer{X: 200, Y: 150})
	h.video.Set(3)
	h.video.Pause()
	time.Sleep(40 * time.Millisecond)
	h.draw(t, 3.0, drawing.Pointer{X: 500, Y: 250, Kind: drawing.PointerTouch})

	elapsedBeforeStop := h.audio.Elapsed()
	stopped, err := h.sync.StopSession(ctx)
	require.NoError(t, err)
	require.NoError(t, h.sync.Save(ctx, "vid-1"))
	assert.Nil(t, h.sync.Pending(), "saved session is no longer pending")

	loaded, err := h.sync.Load(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, stopped.Strokes, loaded.Strokes)
	assert.Equal(t, stopped.TransportActions, loaded.TransportActions)
	assert.InDelta(t, h.audio.Elapsed().Seconds(), loaded.Duration().Seconds(), 0.05)
	assert.GreaterOrEqual(t, loaded.Duration(), elapsedBeforeStop)
	assert.True(t, loaded.Audio.Dual())
	assert.NotEmpty(t, loaded.ID)

	require.Len(t, loaded.TransportActions, 2)
	assert.Equal(t, critique.ActionPause, loaded.TransportActions[1].Type)
	assert.Equal(t, 3.0, loaded.TransportActions[1].VideoTime)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SessionsSaved))
}

func TestDrawnStrokeVisibleAfterReload(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	stroke := h.draw(t, 2.0, drawing.Pointer{X: 10, Y: 10})
	assert.Equal(t, 2.0, stroke.Timestamp)
	assert.Equal(t, drawing.DefaultDuration, stroke.Duration)
	assert.Len(t, stroke.Points, 1)

	_, err := h.sync.StopSession(ctx)
	require.NoError(t, err)
	require.NoError(t, h.sync.Save(ctx, "vid-1"))

	loaded, err := h.sync.Load(ctx, "vid-1")
	require.NoError(t, err)
	engine := drawing.NewEngine(nil, drawing.Config{})
	engine.Load(loaded.Strokes)

	assert.Len(t, slices.Collect(engine.VisibleStrokes(4.0)), 1)
	assert.Empty(t, slices.Collect(engine.VisibleStrokes(8.0)))
}

func TestPointerIgnoredOutsideDrawMode(t *testing.T) {
	h := newHarness(t, Config{})
	assert.False(t, h.sync.PointerDown(drawing.Pointer{X: 1, Y: 1}))
	assert.False(t, h.sync.PointerMove(drawing.Pointer{X: 2, Y: 2}))
	_, ok := h.sync.PointerUp()
	assert.False(t, ok)
}

func TestStopFinishesGestureInProgress(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))

	h.sync.Engine().EnterDrawMode()
	require.True(t, h.sync.PointerDown(drawing.Pointer{X: 5, Y: 5}))
	sess, err := h.sync.StopSession(ctx)
	require.NoError(t, err)
	assert.Len(t, sess.Strokes, 1)
}

func TestSaveFailureKeepsPendingForRetry(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.store.failures.Store(1)

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	_, err := h.sync.StopSession(ctx)
	require.NoError(t, err)

	err = h.sync.Save(ctx, "vid-1")
	var se *critique.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
	assert.Equal(t, "vid-1", se.ContentID)
	assert.ErrorIs(t, err, errDiskFull)
	assert.NotNil(t, h.sync.Pending())
	assert.Equal(t, StateIdle, h.sync.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SaveFailures))

	require.NoError(t, h.sync.Save(ctx, "vid-1"))
	_, err = h.sync.Load(ctx, "vid-1")
	assert.NoError(t, err)
}

func TestSaveUnderNewContentID(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	_, err := h.sync.StopSession(ctx)
	require.NoError(t, err)
	require.NoError(t, h.sync.Save(ctx, "vid-2"))

	_, err = h.sync.Load(ctx, "vid-1")
	assert.ErrorIs(t, err, critique.ErrNotFound)
	loaded, err := h.sync.Load(ctx, "vid-2")
	require.NoError(t, err)
	assert.Equal(t, "vid-2", loaded.ContentID)
}

func TestLaterSaveSupersedes(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	for i := range 2 {
		require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
		for range i + 1 {
			h.draw(t, 1, drawing.Pointer{X: 10, Y: 10})
		}
		_, err := h.sync.StopSession(ctx)
		require.NoError(t, err)
		require.NoError(t, h.sync.Save(ctx, "vid-1"))
	}

	loaded, err := h.sync.Load(ctx, "vid-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Strokes, 2, "second recording replaced the first")
}

func TestLoadMissing(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.sync.Load(context.Background(), "nope")

	var se *critique.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "load", se.Op)
	assert.ErrorIs(t, err, critique.ErrNotFound)
}

func TestDiscardIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})

	h.sync.Discard()
	assert.Equal(t, StateIdle, h.sync.State())
	h.sync.Discard()
	assert.Equal(t, StateIdle, h.sync.State())
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.SessionsDiscarded))
}

func TestDiscardDuringRecording(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	h.draw(t, 1, drawing.Pointer{X: 1, Y: 1})

	h.sync.Discard()
	h.sync.Discard()

	assert.Equal(t, StateIdle, h.sync.State())
	assert.Equal(t, capture.StateIdle, h.audio.State())
	assert.Empty(t, h.sync.Engine().Strokes())
	assert.Empty(t, h.sync.Actions())
	assert.Nil(t, h.sync.Pending())
	assert.Equal(t, 0, h.video.Subscribers())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SessionsDiscarded))

	// a fresh session can start straight away
	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
}

func TestDiscardCancelsPermissionPrompt(t *testing.T) {
	h := newHarness(t, Config{})
	h.mic.PromptDelay = time.Minute

	errCh := make(chan error, 1)
	go func() { errCh <- h.sync.StartSession(context.Background(), "vid-1") }()
	require.Eventually(t, func() bool { return h.audio.State() == capture.StateRequesting }, time.Second, time.Millisecond)

	h.sync.Discard()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("start did not return after discard")
	}
	assert.Equal(t, StateIdle, h.sync.State())
	assert.True(t, h.video.Paused(), "video never started")
}

func TestDiscardPendingSession(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	_, err := h.sync.StopSession(ctx)
	require.NoError(t, err)

	h.sync.Discard()
	assert.ErrorIs(t, h.sync.Save(ctx, "vid-1"), critique.ErrNothingToSave)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "recording", StateRecording.String())
	assert.Equal(t, "saving", StateSaving.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestSetVideoRebinds(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	next := mediatest.NewVideo()

	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))
	assert.ErrorIs(t, h.sync.SetVideo(next), critique.ErrAlreadyRecording)
	_, err := h.sync.StopSession(ctx)
	require.NoError(t, err)

	require.NoError(t, h.sync.SetVideo(next))
	h.video.ResetCalls()
	require.NoError(t, h.sync.StartSession(ctx, "vid-1"))

	assert.Equal(t, []string{"seek", "play"}, next.CallLog())
	assert.Empty(t, h.video.CallLog())
}
