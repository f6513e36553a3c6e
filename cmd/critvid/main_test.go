package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/store"
)

type testEnv struct {
	config string
	db     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		config: filepath.Join(dir, "config.yaml"),
		db:     filepath.Join(dir, "critiques.sqlite"),
	}
	body := "store:\n  backend: sqlite\n  path: " + env.db + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(env.config, []byte(body), 0o600))
	return env
}

func (e *testEnv) seed(t *testing.T, sessions ...*critique.Session) {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, e.db)
	require.NoError(t, err)
	defer st.Close()
	for _, s := range sessions {
		require.NoError(t, st.Save(ctx, s))
	}
}

func (e *testEnv) run(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func sampleSession(contentID string) *critique.Session {
	return &critique.Session{
		ID:        "sess-" + contentID,
		ContentID: contentID,
		Audio: &critique.AudioArtifact{
			Preview:    []byte("RIFF-preview"),
			Raw:        []byte{1, 2, 3, 4},
			MIMEType:   "audio/wav",
			SampleRate: 16000,
			Channels:   1,
			Duration:   12 * time.Second,
		},
		Strokes: []critique.Stroke{
			{Points: []critique.Point{{X: 0.5, Y: 0.5}}, Color: "#ff3b30", Width: 8, Timestamp: 2, Duration: 5},
		},
		TransportActions: []critique.TransportAction{
			{Type: critique.ActionPlay, TimestampMS: 0, VideoTime: 0},
			{Type: critique.ActionPause, TimestampMS: 4000, VideoTime: 4},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInspect(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleSession("vid-1"))

	out, err := env.run("inspect", "vid-1")
	require.NoError(t, err)
	assert.Contains(t, out, "vid-1")
	assert.Contains(t, out, "sess-vid-1")
	assert.Contains(t, out, "strokes    1")
	assert.Contains(t, out, "transport  2 actions")
	assert.Contains(t, out, "raw stream: yes")
}

func TestInspectJSON(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleSession("vid-1"))

	out, err := env.run("inspect", "--json", "vid-1")
	require.NoError(t, err)
	sess, err := critique.Unmarshal([]byte(strings.TrimSpace(out)))
	require.NoError(t, err)
	assert.Equal(t, "vid-1", sess.ContentID)
	assert.Len(t, sess.TransportActions, 2)
}

func TestInspectMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("inspect", "nope")
	assert.ErrorIs(t, err, critique.ErrNotFound)
}

func TestList(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved critiques")

	env.seed(t, sampleSession("vid-1"), sampleSession("vid-2"))
	out, err = env.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "CONTENT")
	assert.Contains(t, out, "vid-1")
	assert.Contains(t, out, "vid-2")
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleSession("vid-1"))

	out, err := env.run("delete", "vid-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted critique vid-1")

	_, err = env.run("inspect", "vid-1")
	assert.ErrorIs(t, err, critique.ErrNotFound)
}

func TestExportAudio(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleSession("course/42"))
	dir := filepath.Join(t.TempDir(), "out")

	out, err := env.run("export-audio", "--dir", dir, "course/42")
	require.NoError(t, err)

	preview := filepath.Join(dir, "course_42.wav")
	raw := filepath.Join(dir, "course_42.raw.pcm")
	assert.Contains(t, out, preview)
	assert.Contains(t, out, raw)

	data, err := os.ReadFile(preview)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-preview"), data)
	data, err = os.ReadFile(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
}

func TestExportAudioWithoutAudio(t *testing.T) {
	sess := sampleSession("vid-1")
	sess.Audio = nil
	_, err := exportAudio(sess, t.TempDir())
	assert.ErrorContains(t, err, "no audio")
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleSession("vid-1"))
	path := filepath.Join(t.TempDir(), "frame.png")

	out, err := env.run("snapshot", "vid-1", "--at", "4", "--size", "100x50", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 strokes at 4.00s")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	_, _, _, a := img.At(50, 25).RGBA()
	assert.NotZero(t, a, "stroke centre should be painted")
	_, _, _, a = img.At(2, 2).RGBA()
	assert.Zero(t, a, "background stays transparent")
}

func TestSnapshotOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, sampleSession("vid-1"))
	path := filepath.Join(t.TempDir(), "frame.png")

	out, err := env.run("snapshot", "vid-1", "--at", "9", "--size", "100x50", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "0 strokes")
}

func TestParseSize(t *testing.T) {
	w, h, err := parseSize("1280x720")
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	for _, bad := range []string{"", "1280", "0x10", "-5x10", "99999x10"} {
		_, _, err := parseSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeFilename(`a/b\c`))
	assert.Equal(t, "critique", sanitizeFilename(".."))
	assert.Equal(t, "critique", sanitizeFilename(""))
	assert.Equal(t, "vid-1", sanitizeFilename("vid-1"))
}

func TestBadConfig(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("--log-level", "loud", "list")
	assert.Error(t, err)
}
