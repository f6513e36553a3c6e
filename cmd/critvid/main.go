// Command critvid records and replays video critiques: narration, freehand
// strokes over the video and the play/pause/seek log, saved per content id.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Shofol/CritVid-sub002/internal/config"
	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/logger"
	"github.com/Shofol/CritVid-sub002/internal/store"
)

// cli holds what every subcommand shares once the root has run.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "critvid",
		Short:         "Record and replay video critiques",
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `critvid records a critique of a video: the critic's narration, strokes
drawn over the frame and every play, pause and seek, all on one timeline.
Saved critiques replay in sync with the video.`,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default "+config.DefaultFile()+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.studioCmd(),
		c.inspectCmd(),
		c.snapshotCmd(),
		c.exportAudioCmd(),
		c.deleteCmd(),
		c.listCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	c.cfg = cfg
	logger.Debug("config loaded", "file", cfg.File, "store", cfg.Store.Backend)
	return nil
}

func (c *cli) openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, c.cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.cfg.Store.Backend, err)
	}
	return st, nil
}

// loadSession opens the store, reads one critique and closes the store.
func (c *cli) loadSession(ctx context.Context, contentID string) (*critique.Session, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load(ctx, contentID)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
