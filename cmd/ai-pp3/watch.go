package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/aipp3/internal/display"
	"github.com/dshills/aipp3/internal/watch"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		f        outputFlags
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Generate profiles for RAW files as they appear in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), a, args[0], f, debounce)
		},
	}
	addConfigFlags(cmd.Flags())
	f.register(cmd.Flags(), false)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a new file is processed")
	return cmd
}

func runWatch(ctx context.Context, a *app, dir string, f outputFlags, debounce time.Duration) error {
	opts, err := f.processOptions(a.params())
	if err != nil {
		return err
	}

	gen, closeGen, err := a.generator()
	defer closeGen()
	if err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Dir:        dir,
		Extensions: a.cfg.RawExtensions,
		Debounce:   debounce,
		Logger:     a.logger,
		Handler: func(ctx context.Context, path string) error {
			o := opts
			o.InputPath = path
			out, err := gen.Process(ctx, o)
			if err != nil {
				return err
			}
			reportOutcome(a, *out)
			return nil
		},
	})
	if err != nil {
		return badInput(err)
	}
	display.Header(a.stdout, fmt.Sprintf("Watching %s (Ctrl-C to stop)", dir))
	return w.Run(ctx)
}
