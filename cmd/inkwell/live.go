package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MrWong99/inkwell/internal/app"
	"github.com/MrWong99/inkwell/internal/ideapad"
	"github.com/MrWong99/inkwell/pkg/audio/portaudio"
)

var (
	localStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	remoteStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7d56f4"))
	stateStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6e7681"))
)

func newLiveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Brainstorm out loud with the idea pad",
		Long: `Open the default microphone and speaker and start a live voice session.

The transcript is printed as each turn completes. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLive(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runLive(parent context.Context, opts *rootOptions, out io.Writer) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger, _ := newLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := ideapad.NewManager(app.IdeaPadConfig(cfg, portaudio.New(), app.NewLiveProvider(cfg), nil))
	defer mgr.Close()

	events := make(chan ideapad.Event, 64)
	unsubscribe := mgr.Subscribe(func(ev ideapad.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	fmt.Fprintln(out, stateStyle.Render("listening; press Ctrl+C to stop"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if done, err := printEvent(out, ev); done {
				return err
			}
		}
	}
}

// printEvent renders ev and reports whether the session has ended.
func printEvent(out io.Writer, ev ideapad.Event) (bool, error) {
	switch ev.Kind {
	case ideapad.EventTranscript:
		if ev.Entry == nil || ev.Entry.Text == "" {
			return false, nil
		}
		label := localStyle.Render("You")
		if ev.Entry.Speaker == ideapad.SpeakerRemote {
			label = remoteStyle.Render("Muse")
		}
		fmt.Fprintf(out, "%s: %s\n", label, ev.Entry.Text)
	case ideapad.EventState:
		switch ev.State {
		case ideapad.StateFailed:
			return true, fmt.Errorf("session failed: %s", ev.Error)
		case ideapad.StateIdle:
			fmt.Fprintln(out, stateStyle.Render("session ended"))
			return true, nil
		}
	}
	return false, nil
}
