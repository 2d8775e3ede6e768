package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/aipp3/internal/agent"
	"github.com/dshills/aipp3/internal/display"
	"github.com/dshills/aipp3/internal/llm"
	"github.com/dshills/aipp3/internal/preset"
	"github.com/dshills/aipp3/internal/rawtherapee"
)

// addConfigFlags registers the flags that override configuration keys.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("provider", "", "AI provider ("+strings.Join(llm.Names(), ", ")+")")
	fs.String("model", "", "vision model name")
	fs.String("preset", "", "prompt preset (default "+preset.Default+")")
	fs.String("presets-file", "", "YAML file with additional presets")
	fs.StringSlice("sections", nil, "comma-separated pp3 sections to send to the model")
	fs.Int("preview-quality", 0, "JPEG quality of the preview sent to the model (1-100)")
	fs.Int("max-tokens", 0, "maximum tokens in the model reply")
	fs.Float64("temperature", 0, "sampling temperature (0-2)")
	fs.String("rawtherapee", "", "path to rawtherapee-cli")
	fs.Bool("no-history", false, "do not record this run in the history ledger")
}

// outputFlags are the per-run options shared by generate, batch and watch.
type outputFlags struct {
	output      string
	base        string
	prompt      string
	pp3Only     bool
	keepPreview bool
	tiff        bool
	png         bool
	compression string
	bitDepth    int
	quality     int
}

func (f *outputFlags) register(fs *pflag.FlagSet, withOutput bool) {
	if withOutput {
		fs.StringVarP(&f.output, "output", "o", "", "output path (image, or .pp3 with --pp3-only)")
	}
	fs.StringVar(&f.base, "base", "", "base pp3 profile to start from")
	fs.StringVar(&f.prompt, "prompt", "", "custom prompt replacing the preset")
	fs.BoolVar(&f.pp3Only, "pp3-only", false, "only write the pp3 profile, do not render an image")
	fs.BoolVar(&f.keepPreview, "keep-preview", false, "keep the preview image and its profile")
	fs.BoolVar(&f.tiff, "tiff", false, "render TIFF instead of JPEG")
	fs.BoolVar(&f.png, "png", false, "render PNG instead of JPEG")
	fs.StringVar(&f.compression, "compression", "", "TIFF compression (z, none)")
	fs.IntVar(&f.bitDepth, "bit-depth", 16, "output bit depth (8 or 16)")
	fs.IntVar(&f.quality, "quality", agent.DefaultOutputQuality, "JPEG output quality (1-100)")
}

// processOptions validates the flags and combines them with params.
func (f *outputFlags) processOptions(params agent.Params) (agent.ProcessOptions, error) {
	if f.tiff && f.png {
		return agent.ProcessOptions{}, badInput(errors.New("choose only one of --tiff and --png"))
	}
	if f.bitDepth != 8 && f.bitDepth != 16 {
		return agent.ProcessOptions{}, badInput(fmt.Errorf("bit depth must be 8 or 16, got %d", f.bitDepth))
	}
	if f.quality < 1 || f.quality > 100 {
		return agent.ProcessOptions{}, badInput(fmt.Errorf("quality must be between 1 and 100, got %d", f.quality))
	}
	if f.compression != "" && !f.tiff {
		return agent.ProcessOptions{}, badInput(errors.New("--compression requires --tiff"))
	}

	format := rawtherapee.FormatJPEG
	switch {
	case f.tiff:
		format = rawtherapee.FormatTIFF
	case f.png:
		format = rawtherapee.FormatPNG
	}

	params.BasePP3Path = f.base
	params.Prompt = f.prompt
	params.KeepPreview = f.keepPreview
	return agent.ProcessOptions{
		Params:          params,
		Output:          f.output,
		PP3Only:         f.pp3Only,
		Format:          format,
		Quality:         f.quality,
		BitDepth:        f.bitDepth,
		TIFFCompression: f.compression,
	}, nil
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var f outputFlags
	cmd := &cobra.Command{
		Use:   "generate <raw-file>",
		Short: "Generate a pp3 profile for one RAW file and render it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), a, args[0], f)
		},
	}
	addConfigFlags(cmd.Flags())
	f.register(cmd.Flags(), true)
	return cmd
}

func runGenerate(ctx context.Context, a *app, input string, f outputFlags) error {
	opts, err := f.processOptions(a.params())
	if err != nil {
		return err
	}
	opts.InputPath = input

	gen, closeGen, err := a.generator()
	defer closeGen()
	if err != nil {
		return err
	}

	out, err := gen.Process(ctx, opts)
	if err != nil {
		return classify(err)
	}
	reportOutcome(a, *out)
	return nil
}

func reportOutcome(a *app, out agent.Outcome) {
	applied := 0
	blocks := 0
	if out.Result != nil {
		applied, blocks = out.Result.Applied, len(out.Result.Blocks)
	}
	display.Success(a.stdout, fmt.Sprintf("PP3 profile saved to %s (%d/%d edits applied)", out.ProfilePath, applied, blocks))
	if applied < blocks {
		display.Warn(a.stdout, fmt.Sprintf("%d edits did not match the base profile", blocks-applied))
	}
	if out.ImagePath != "" {
		display.Success(a.stdout, "Image rendered to "+out.ImagePath)
	}
}
