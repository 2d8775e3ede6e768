package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/aipp3/internal/agent"
	"github.com/dshills/aipp3/internal/config"
	"github.com/dshills/aipp3/internal/display"
	"github.com/dshills/aipp3/internal/history"
	"github.com/dshills/aipp3/internal/logging"
	"github.com/dshills/aipp3/internal/preset"
	"github.com/dshills/aipp3/internal/rawtherapee"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return
	}
	display.Error(os.Stderr, err.Error())
	var ee *exitError
	if errors.As(err, &ee) {
		stop()
		os.Exit(ee.code)
	}
	stop()
	os.Exit(1)
}

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "ai-pp3",
		Short:         "Generate RawTherapee processing profiles with a vision model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default ./ai-pp3.yaml or ~/.config/ai-pp3/ai-pp3.yaml)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newGenerateCmd(&g),
		newBatchCmd(&g),
		newWatchCmd(&g),
		newHistoryCmd(&g),
		newPresetsCmd(&g),
		newVersionCmd(),
	)
	return root
}

// app bundles what every command needs after configuration is resolved.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	stdout io.Writer
	stderr io.Writer
	// conv overrides the rawtherapee runner; tests set it.
	conv agent.Converter
}

// newApp loads configuration for cmd, binding its flags.
func newApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath, cmd.Flags())
	if err != nil {
		return nil, badInput(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, badInput(err)
	}
	return &app{
		cfg:    cfg,
		logger: logging.New(cmd.ErrOrStderr(), g.verbose),
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}, nil
}

func (a *app) presets() (preset.Set, error) {
	if a.cfg.PresetsFile == "" {
		return preset.Builtins(), nil
	}
	s, err := preset.LoadFile(a.cfg.PresetsFile)
	if err != nil {
		return nil, badInput(err)
	}
	return s, nil
}

// generator builds the pipeline. The returned close func releases the
// history ledger and must always be called.
func (a *app) generator() (*agent.Generator, func(), error) {
	presets, err := a.presets()
	if err != nil {
		return nil, func() {}, err
	}

	conv := a.conv
	if conv == nil {
		conv = rawtherapee.NewRunner(a.cfg.RawTherapee.Binary)
	}
	g := &agent.Generator{
		Converter:     conv,
		Presets:       presets,
		RawExtensions: a.cfg.RawExtensions,
		Logger:        a.logger,
	}

	closer := func() {}
	if a.cfg.History.Enabled {
		tr, err := history.Open(a.cfg.History.DBPath)
		if err != nil {
			// History is best effort; generation still works without it.
			a.logger.Warn().Err(err).Msg("history disabled")
		} else {
			g.History = tr
			closer = func() { tr.Close() }
		}
	}
	return g, closer, nil
}

// params maps configuration onto generation parameters.
func (a *app) params() agent.Params {
	return agent.Params{
		Provider:       a.cfg.Provider,
		Model:          a.cfg.Model,
		Preset:         a.cfg.Preset,
		Sections:       a.cfg.Sections,
		PreviewQuality: a.cfg.PreviewQuality,
		MaxTokens:      a.cfg.MaxTokens,
		Temperature:    a.cfg.Temperature,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ai-pp3 %s\n", version)
		},
	}
}
