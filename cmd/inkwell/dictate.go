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

	"github.com/spf13/cobra"

	"github.com/MrWong99/inkwell/internal/app"
	"github.com/MrWong99/inkwell/internal/assist"
	"github.com/MrWong99/inkwell/pkg/audio"
	"github.com/MrWong99/inkwell/pkg/audio/portaudio"
	"github.com/MrWong99/inkwell/pkg/audio/wavfile"
	geminillm "github.com/MrWong99/inkwell/pkg/provider/llm/gemini"
)

type dictateOptions struct {
	seconds     int
	contextFile string
}

func newDictateCmd(opts *rootOptions) *cobra.Command {
	d := &dictateOptions{}
	cmd := &cobra.Command{
		Use:   "dictate",
		Short: "Record from the microphone and print the transcription",
		Long: `Record from the default microphone, then transcribe the recording.

Recording stops after --seconds or on Ctrl+C, whichever comes first. The
text in --context-file is sent along so the transcription continues it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDictate(cmd.Context(), opts, d, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&d.seconds, "seconds", "s", 10, "maximum recording length in seconds")
	cmd.Flags().StringVar(&d.contextFile, "context-file", "", "file holding the text written so far")
	return cmd
}

func runDictate(parent context.Context, opts *rootOptions, d *dictateOptions, out io.Writer) error {
	if d.seconds <= 0 {
		return errors.New("--seconds must be positive")
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger, _ := newLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	var previous string
	if d.contextFile != "" {
		b, err := os.ReadFile(d.contextFile)
		if err != nil {
			return fmt.Errorf("read context: %w", err)
		}
		previous = string(b)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recording, err := record(ctx, d.seconds)
	if err != nil {
		return err
	}

	llmOpts := []geminillm.Option{geminillm.WithModel(cfg.Gemini.TextModel)}
	if cfg.Gemini.BaseURL != "" {
		llmOpts = append(llmOpts, geminillm.WithBaseURL(cfg.Gemini.BaseURL))
	}
	// Recording ends on Ctrl+C, so the request gets its own context.
	reqCtx := context.WithoutCancel(parent)
	p, err := geminillm.New(reqCtx, cfg.Gemini.APIKey, llmOpts...)
	if err != nil {
		return err
	}
	res := assist.New(p, app.AssistSettings(cfg)).Dictate(reqCtx, recording, assist.DefaultDictationMIME, previous)
	if res.Error != "" {
		return errors.New(res.Error)
	}
	fmt.Fprintln(out, res.Text)
	return nil
}

// record captures up to seconds of microphone audio and returns it as WAV.
func record(ctx context.Context, seconds int) ([]byte, error) {
	f := audio.InputFormat
	rec := wavfile.NewRecorder(f, seconds*f.SampleRate*f.Channels)

	capture, err := portaudio.New().OpenCapture(ctx, f, audio.FrameSize)
	if err != nil {
		return nil, err
	}
	if err := capture.Start(rec.Write); err != nil {
		_ = capture.Close()
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "recording for up to %ds; press Ctrl+C to stop early\n", seconds)

	select {
	case <-rec.Full():
	case <-ctx.Done():
	}
	if err := capture.Close(); err != nil {
		slog.Warn("close microphone", "err", err)
	}
	if rec.Len() == 0 {
		return nil, nil
	}
	return rec.WAV()
}
