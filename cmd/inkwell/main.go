// Command inkwell runs the Inkwell writing assistant.
//
// Usage:
//
//	inkwell serve   [--config FILE]
//	inkwell live    [--config FILE]
//	inkwell dictate [--config FILE] [--seconds N] [--context-file FILE]
//
// Without --config, built-in defaults are used and the API key is read from
// GEMINI_API_KEY.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/inkwell/internal/app"
	"github.com/MrWong99/inkwell/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "inkwell:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "inkwell",
		Short:         "AI writing assistant with a live voice idea pad",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newLiveCmd(opts))
	root.AddCommand(newDictateCmd(opts))
	return root
}

// load reads the configuration, pointing at the example file when the path
// does not exist.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", o.configPath)
		}
		return nil, err
	}
	return cfg, nil
}

// newLogger builds a text logger whose level follows lv.
func newLogger(w io.Writer, level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(app.SlogLevel(level))
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv
}
