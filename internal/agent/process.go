package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/aipp3/internal/rawtherapee"
)

// DefaultOutputQuality is the JPEG quality of the final render.
const DefaultOutputQuality = 100

var (
	ErrEmptyInput   = errors.New("input path cannot be empty")
	ErrPP3OnlyImage = errors.New("cannot specify image output with --pp3-only")
	ErrPP3Output    = errors.New("output is a .pp3 file; use --pp3-only to write only the profile")
	ErrBatchOutput  = errors.New("an explicit output path cannot be used in batch mode")
	ErrEmptyProfile = errors.New("failed to generate PP3 content")
	// ErrOutputCollision is reported by Batch for an input whose preview and
	// profile names match an earlier input's, such as IMG.dng and IMG.nef.
	ErrOutputCollision = errors.New("output names collide with another input")
)

// ProcessOptions extends Params with output handling.
type ProcessOptions struct {
	Params

	// Output is the image path, or the profile path when PP3Only is set.
	// Empty selects a path next to the input.
	Output          string
	PP3Only         bool
	Format          rawtherapee.Format
	Quality         int
	BitDepth        int
	TIFFCompression string
}

// Outcome is the result of processing one input.
type Outcome struct {
	Input       string
	ProfilePath string
	ImagePath   string // empty with PP3Only
	Result      *Result
	Err         error
}

func stripExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Process generates a profile for opts.InputPath, writes it, and unless
// opts.PP3Only renders the final image with it.
func (g *Generator) Process(ctx context.Context, opts ProcessOptions) (*Outcome, error) {
	if opts.InputPath == "" {
		return nil, ErrEmptyInput
	}
	isPP3 := strings.EqualFold(filepath.Ext(opts.Output), ".pp3")
	if opts.PP3Only && opts.Output != "" && !isPP3 {
		return nil, ErrPP3OnlyImage
	}
	if !opts.PP3Only && isPP3 {
		return nil, ErrPP3Output
	}

	format := opts.Format
	if format == "" {
		format = rawtherapee.FormatJPEG
	}

	out := &Outcome{Input: opts.InputPath}
	out.ProfilePath = stripExt(opts.InputPath) + ".pp3"
	if opts.PP3Only && opts.Output != "" {
		out.ProfilePath = opts.Output
	}
	if !opts.PP3Only {
		out.ImagePath = opts.Output
		if out.ImagePath == "" {
			out.ImagePath = stripExt(opts.InputPath) + "_processed." + format.Extension()
		}
	}

	params := opts.Params
	params.ProfileOutput = out.ProfilePath
	res, err := g.Generate(ctx, params)
	if err != nil {
		return nil, err
	}
	out.Result = res
	if strings.TrimSpace(res.Profile) == "" {
		return nil, ErrEmptyProfile
	}

	if err := os.WriteFile(out.ProfilePath, []byte(res.Profile), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write pp3 file: %w", err)
	}
	g.Logger.Info().Str("profile", out.ProfilePath).Int("applied", res.Applied).Msg("pp3 profile written")
	if opts.PP3Only {
		return out, nil
	}

	quality := opts.Quality
	if quality == 0 {
		quality = DefaultOutputQuality
	}
	err = g.Converter.ConvertWithProfile(ctx, rawtherapee.Options{
		Input:           opts.InputPath,
		Output:          out.ImagePath,
		ProfilePath:     out.ProfilePath,
		Format:          format,
		Quality:         quality,
		BitDepth:        opts.BitDepth,
		TIFFCompression: opts.TIFFCompression,
	})
	if err != nil {
		return nil, err
	}
	g.Logger.Info().Str("image", out.ImagePath).Msg("image rendered")
	return out, nil
}

// Batch processes inputs with at most concurrency running at once. Each
// input is processed once, however often it is listed. Inputs that differ
// only by extension would share output names, so only the first of them runs
// and the rest fail with ErrOutputCollision. One failure does not stop the
// others; per-input errors are reported in the outcomes, which follow the
// order of the de-duplicated inputs.
func (g *Generator) Batch(ctx context.Context, inputs []string, opts ProcessOptions, concurrency int) ([]Outcome, error) {
	if opts.Output != "" {
		return nil, ErrBatchOutput
	}
	if concurrency < 1 {
		concurrency = 1
	}

	unique, collisions := dedupe(inputs)
	outcomes := make([]Outcome, len(unique))

	var eg errgroup.Group
	eg.SetLimit(concurrency)
	for i, input := range unique {
		if err := collisions[i]; err != nil {
			g.Logger.Error().Err(err).Str("input", input).Msg("skipping input")
			outcomes[i] = Outcome{Input: input, Err: err}
			continue
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{Input: input, Err: err}
				return nil
			}
			o := opts
			o.InputPath = input
			res, err := g.Process(ctx, o)
			if err != nil {
				g.Logger.Error().Err(err).Str("input", input).Msg("processing failed")
				outcomes[i] = Outcome{Input: input, Err: err}
				return nil
			}
			outcomes[i] = *res
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes, nil
}

// dedupe drops repeated inputs, comparing absolute cleaned paths. An input
// whose path without extension matches an earlier one gets a collision error
// at its index in the returned map.
func dedupe(inputs []string) ([]string, map[int]error) {
	seen := make(map[string]bool, len(inputs))
	stems := make(map[string]string, len(inputs))
	collisions := make(map[int]error)
	var out []string
	for _, in := range inputs {
		key := filepath.Clean(in)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if first, ok := stems[stripExt(key)]; ok {
			collisions[len(out)] = fmt.Errorf("%w: %s and %s", ErrOutputCollision, first, in)
		} else {
			stems[stripExt(key)] = in
		}
		out = append(out, in)
	}
	return out, collisions
}
