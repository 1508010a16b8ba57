package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MrWong99/inkwell/internal/app"
	"github.com/MrWong99/inkwell/internal/config"
	"github.com/MrWong99/inkwell/internal/observe"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API for the writing tools and the idea pad.

When --config is given the file is watched; log level, model, persona, and
temperature changes apply without a restart.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger, level := newLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observe.NewProvider(observe.ProviderConfig{ServiceName: "inkwell"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	printStartupSummary(os.Stdout, cfg, opts.configPath)

	application, err := app.New(ctx, cfg,
		app.WithLevelVar(level),
		app.WithMetricsHandler(telemetry.Handler()),
	)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}
	if opts.configPath != "" {
		if err := application.Watch(opts.configPath); err != nil {
			return err
		}
	}

	slog.Info("server ready; press Ctrl+C to shut down")
	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	shutdownErr := application.Shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	slog.Info("goodbye")
	return nil
}

var (
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7d56f4")).
			Padding(0, 1)
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7d56f4"))
	summaryLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")).Width(14)
)

func printStartupSummary(w io.Writer, cfg *config.Config, path string) {
	if path == "" {
		path = "(defaults)"
	}
	row := func(label, value string) string {
		return summaryLabel.Render(label) + value
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		summaryTitle.Render("Inkwell"),
		row("config", path),
		row("listen", cfg.Server.ListenAddr),
		row("text model", cfg.Gemini.TextModel),
		row("audio model", cfg.Gemini.AudioModel),
		row("live model", cfg.Gemini.LiveModel),
		row("tls", fmt.Sprint(cfg.Server.TLS != nil)),
	)
	fmt.Fprintln(w, summaryBox.Render(body))
}
