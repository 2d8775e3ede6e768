package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/aipp3/internal/display"
)

func newBatchCmd(g *globalFlags) *cobra.Command {
	var f outputFlags
	cmd := &cobra.Command{
		Use:   "batch <raw-file>...",
		Short: "Generate profiles for many RAW files concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), a, args, f)
		},
	}
	addConfigFlags(cmd.Flags())
	cmd.Flags().Int("concurrency", 0, "number of files processed at once")
	f.register(cmd.Flags(), false)
	return cmd
}

func runBatch(ctx context.Context, a *app, inputs []string, f outputFlags) error {
	opts, err := f.processOptions(a.params())
	if err != nil {
		return err
	}

	gen, closeGen, err := a.generator()
	defer closeGen()
	if err != nil {
		return err
	}

	outcomes, err := gen.Batch(ctx, inputs, opts, a.cfg.Concurrency)
	if err != nil {
		return classify(err)
	}

	failed := 0
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		status := "ok"
		output := o.ProfilePath
		if o.Err != nil {
			failed++
			status = "failed: " + o.Err.Error()
			output = "-"
		} else {
			if o.ImagePath != "" {
				output = o.ImagePath
			}
			if r := o.Result; r != nil && r.Applied < len(r.Blocks) {
				status = fmt.Sprintf("ok (%d/%d edits applied)", r.Applied, len(r.Blocks))
			}
		}
		rows = append(rows, []string{o.Input, output, status})
	}
	display.Table(a.stdout, []string{"INPUT", "OUTPUT", "STATUS"}, rows)

	if failed > 0 {
		if failed < len(outcomes) {
			display.Warn(a.stdout, fmt.Sprintf("%d profiles generated", len(outcomes)-failed))
		}
		return &exitError{code: exitCodeError, err: fmt.Errorf("%d of %d inputs failed", failed, len(outcomes))}
	}
	display.Success(a.stdout, fmt.Sprintf("%d profiles generated", len(outcomes)))
	return nil
}
