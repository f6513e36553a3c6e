package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Shofol/CritVid-sub002/internal/critique"
	"github.com/Shofol/CritVid-sub002/internal/ui"
)

func (c *cli) inspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <contentId>",
		Short: "Show a saved critique",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.loadSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				data, err := critique.Marshal(sess)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			printSession(cmd.OutOrStdout(), sess)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored session document")
	return cmd
}

func printSession(w io.Writer, s *critique.Session) {
	fmt.Fprintf(w, "%s %s\n", ui.TitleStyle.Render("Critique"), s.ContentID)
	fmt.Fprintf(w, "  session    %s\n", s.ID)
	fmt.Fprintf(w, "  created    %s\n", s.CreatedAt.Local().Format(time.DateTime))

	if a := s.Audio; a != nil {
		raw := "no"
		if a.Dual() {
			raw = fmt.Sprintf("yes (%d bytes)", len(a.Raw))
		}
		fmt.Fprintf(w, "  audio      %s  %s  %d Hz  %d ch  %d bytes  raw stream: %s\n",
			a.Duration.Round(time.Millisecond), a.MIMEType, a.SampleRate, a.Channels, len(a.Preview), raw)
	} else {
		fmt.Fprintf(w, "  audio      none\n")
	}

	fmt.Fprintf(w, "  strokes    %d\n", len(s.Strokes))
	for i, st := range s.Strokes {
		fmt.Fprintf(w, "    #%-3d %7.2fs - %7.2fs  %s %s  %d points\n",
			i+1, st.Timestamp, st.End(), ui.Swatch(st.Color), st.Color, len(st.Points))
	}

	fmt.Fprintf(w, "  transport  %d actions\n", len(s.TransportActions))
	for _, a := range s.TransportActions {
		fmt.Fprintf(w, "    +%-7dms %-5s @ %.2fs\n", a.TimestampMS, a.Type, a.VideoTime)
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved critiques, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.List(ctx)
			if err != nil {
				return critique.NewStorageError("list", "", err)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved critiques.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(ui.DividerStyle).
				Headers("CONTENT", "CREATED", "AUDIO", "STROKES", "ACTIONS", "RAW")
			for _, s := range sessions {
				raw := ""
				if s.Dual {
					raw = "yes"
				}
				t.Row(
					s.ContentID,
					s.CreatedAt.Local().Format(time.DateTime),
					s.Duration.Round(time.Second).String(),
					fmt.Sprint(s.Strokes),
					fmt.Sprint(s.Actions),
					raw,
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <contentId>",
		Short: "Delete a saved critique",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(ctx, args[0]); err != nil {
				return critique.NewStorageError("delete", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted critique %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) exportAudioCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export-audio <contentId>",
		Short: "Write a critique's narration to files",
		Long: `Writes the preview stream as <contentId>.<ext> and, for dual recordings,
the raw PCM stream as <contentId>.raw.pcm.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.loadSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			paths, err := exportAudio(sess, dir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	return cmd
}

func exportAudio(sess *critique.Session, dir string) ([]string, error) {
	if sess.Audio == nil {
		return nil, fmt.Errorf("critique %q has no audio", sess.ContentID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := filepath.Join(dir, sanitizeFilename(sess.ContentID))

	var paths []string
	preview := base + sess.Audio.Extension()
	if err := os.WriteFile(preview, sess.Audio.Preview, 0o644); err != nil {
		return nil, fmt.Errorf("write preview: %w", err)
	}
	paths = append(paths, preview)

	if sess.Audio.Dual() {
		raw := base + ".raw.pcm"
		if err := os.WriteFile(raw, sess.Audio.Raw, 0o644); err != nil {
			return nil, fmt.Errorf("write raw stream: %w", err)
		}
		paths = append(paths, raw)
	}
	return paths, nil
}

// sanitizeFilename keeps content ids like "course/42" from escaping dir.
func sanitizeFilename(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', 0:
			out[i] = '_'
		}
	}
	if name := string(out); name != "" && name != "." && name != ".." {
		return name
	}
	return "critique"
}
