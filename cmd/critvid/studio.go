package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Shofol/CritVid-sub002/internal/app"
	"github.com/Shofol/CritVid-sub002/internal/capture"
	"github.com/Shofol/CritVid-sub002/internal/logger"
	"github.com/Shofol/CritVid-sub002/internal/metrics"
	"github.com/Shofol/CritVid-sub002/internal/player"
)

func (c *cli) studioCmd() *cobra.Command {
	var video string
	cmd := &cobra.Command{
		Use:   "studio <contentId>",
		Short: "Open the terminal studio to record or replay a critique",
		Long: `Opens the critique studio against the player daemon. Space records,
d toggles drawing with the mouse, s saves, r replays the saved critique.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStudio(cmd.Context(), args[0], video)
		},
	}
	cmd.Flags().StringVar(&video, "video", "", "video file to load into the player")
	return cmd
}

func (c *cli) runStudio(ctx context.Context, contentID, video string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	closeLog, err := redirectLog(c.cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if addr := c.cfg.Metrics.Addr; addr != "" {
		exp := metrics.NewExporter(addr, reg)
		go func() {
			if err := exp.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics exporter stopped", "addr", addr, "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = exp.Shutdown(sctx)
		}()
	}

	format := capture.DefaultFormat
	format.SampleRate = c.cfg.Audio.SampleRate
	mode := capture.ModeSingle
	if c.cfg.Audio.Dual {
		mode = capture.ModeDual
	}
	rec := capture.NewRecorder(capture.DefaultMicrophone(format), capture.Config{Mode: mode})

	if video != "" {
		if video, err = filepath.Abs(video); err != nil {
			return fmt.Errorf("resolve video path: %w", err)
		}
	}

	model := app.New(app.Deps{
		ContentID: contentID,
		Source:    video,
		Dial:      dialPlayer(c.cfg.Player.Socket),
		Capture:   rec,
		Store:     st,
		Metrics:   m,
		Studio:    c.cfg.Studio(),
		Drawing:   c.cfg.DrawingEngine(),
	})

	logger.Info("studio opened", "contentId", contentID, "store", c.cfg.Store.Backend, "dual", c.cfg.Audio.Dual)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run studio: %w", err)
	}
	return nil
}

// dialPlayer binds the video and narration tracks of the player daemon.
func dialPlayer(socket string) func() (app.Player, error) {
	return func() (app.Player, error) {
		video, err := player.Dial(socket, player.TrackVideo)
		if err != nil {
			return app.Player{}, err
		}
		audio, err := player.Dial(socket, player.TrackAudio)
		if err != nil {
			video.Close()
			return app.Player{}, err
		}
		return app.Player{
			Video:         video,
			Narration:     audio,
			LoadVideo:     video.Load,
			LoadNarration: audio.Load,
			Close: func() error {
				return errors.Join(audio.Close(), video.Close())
			},
			Done: video.Done(),
		}, nil
	}
}

// redirectLog keeps log lines off the terminal while the studio owns it.
func redirectLog(path string) (func(), error) {
	if path == "" {
		logger.SetOutput(io.Discard)
		return func() { logger.SetOutput(nil) }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return func() {
		logger.SetOutput(nil)
		f.Close()
	}, nil
}
