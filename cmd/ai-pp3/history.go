package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/aipp3/internal/display"
	"github.com/dshills/aipp3/internal/history"
	"github.com/dshills/aipp3/internal/preset"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			return runHistory(cmd.Context(), a, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func runHistory(ctx context.Context, a *app, limit int) error {
	path := a.cfg.History.DBPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(a.stdout, "No generations recorded yet.")
		return nil
	}

	tr, err := history.Open(path)
	if err != nil {
		return err
	}
	defer tr.Close()

	entries, err := tr.Recent(ctx, limit)
	if err != nil {
		return err
	}
	sum, err := tr.Summary(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := e.Status
		if e.Error != "" {
			status += ": " + e.Error
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.Input,
			e.Provider + "/" + e.Model,
			e.Preset,
			strconv.Itoa(e.Applied) + "/" + strconv.Itoa(e.Blocks),
			e.Duration.Round(100 * time.Millisecond).String(),
			status,
		})
	}
	display.Table(a.stdout, []string{"TIME", "INPUT", "MODEL", "PRESET", "EDITS", "DURATION", "STATUS"}, rows)
	display.Dim(a.stdout, fmt.Sprintf("%d generations, %d succeeded, %d failed, avg %.1fs",
		sum.Total, sum.Succeeded, sum.Failed, sum.AvgMs/1000))
	return nil
}

func newPresetsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List available prompt presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			return runPresets(a)
		},
	}
	cmd.Flags().String("presets-file", "", "YAML file with additional presets")
	return cmd
}

func runPresets(a *app) error {
	set, err := a.presets()
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(set))
	for _, name := range set.Names() {
		p := set[name]
		marker := ""
		if name == preset.Default {
			marker = " (default)"
		}
		rows = append(rows, []string{name + marker, p.Description})
	}
	display.Table(a.stdout, []string{"NAME", "DESCRIPTION"}, rows)
	return nil
}
