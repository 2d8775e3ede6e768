// Package agent runs the profile generation pipeline: render a preview of a
// RAW file, send the preview and the selected profile sections to a vision
// model, apply the model's SEARCH/REPLACE edits and rebuild the full profile.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/aipp3/internal/edits"
	"github.com/dshills/aipp3/internal/history"
	"github.com/dshills/aipp3/internal/llm"
	"github.com/dshills/aipp3/internal/logging"
	"github.com/dshills/aipp3/internal/pp3"
	"github.com/dshills/aipp3/internal/preset"
	"github.com/dshills/aipp3/internal/rawtherapee"
)

// DefaultPreviewQuality is the JPEG quality of the preview sent to the model.
const DefaultPreviewQuality = 80

// DefaultRawExtensions are accepted when a Generator names none.
var DefaultRawExtensions = []string{".dng", ".nef", ".cr2", ".arw"}

var (
	// ErrUnsupportedFile is returned for inputs without a RAW extension.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrNoSections is returned when none of the requested sections exist in
	// the base profile, so there is nothing to send to the model.
	ErrNoSections = errors.New("none of the requested sections were found in the base profile")
	// ErrEmptyResponse is returned when the model reply carries no text.
	ErrEmptyResponse = errors.New("AI response was empty or in an unexpected format")
	// ErrProviderSetup is returned when the provider cannot be constructed.
	ErrProviderSetup = errors.New("invalid AI provider or model")
)

// ProviderError wraps a failure of the model call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("AI provider error (%s): %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Converter renders RAW files. *rawtherapee.Runner implements it.
type Converter interface {
	Convert(ctx context.Context, o rawtherapee.Options) error
	ConvertWithProfile(ctx context.Context, o rawtherapee.Options) error
}

// Recorder stores a history entry. *history.Tracker implements it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// Generator runs generations. The zero value is not usable; Converter is
// required.
type Generator struct {
	Converter Converter
	// NewProvider builds the model client; llm.NewProvider when nil.
	NewProvider func(name, model string) (llm.Provider, error)
	// Presets resolves Params.Preset; the built-ins when nil.
	Presets preset.Set
	// History is optional.
	History       Recorder
	RawExtensions []string
	Logger        zerolog.Logger
}

// Params describes one generation.
type Params struct {
	InputPath      string
	BasePP3Path    string // empty: use rawtherapee's default profile
	Provider       string
	Model          string
	Prompt         string // overrides Preset when set
	Preset         string
	Sections       []string
	PreviewQuality int
	KeepPreview    bool
	MaxTokens      int
	Temperature    float64

	// ProfileOutput is where the caller will write the result; recorded in
	// history only.
	ProfileOutput string
}

// Result is a generated profile.
type Result struct {
	Profile     string
	Blocks      []edits.Block
	Applied     int
	PreviewPath string
	BasePath    string
	Duration    time.Duration
}

// PreviewPath returns the preview location for input: the same directory,
// named "<base>_preview.jpg".
func PreviewPath(input string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(filepath.Dir(input), base+"_preview.jpg")
}

func (g *Generator) extensions() []string {
	if len(g.RawExtensions) == 0 {
		return DefaultRawExtensions
	}
	return g.RawExtensions
}

// Supported reports whether path has an accepted RAW extension.
func (g *Generator) Supported(path string) bool {
	return slices.Contains(g.extensions(), strings.ToLower(filepath.Ext(path)))
}

func (g *Generator) checkExtension(path string) error {
	if g.Supported(path) {
		return nil
	}
	return fmt.Errorf("%w: %s. supported types: %s", ErrUnsupportedFile,
		strings.ToLower(filepath.Ext(path)), strings.Join(g.extensions(), ", "))
}

func (g *Generator) resolvePrompt(p Params) (string, error) {
	if strings.TrimSpace(p.Prompt) != "" {
		return p.Prompt, nil
	}
	set := g.Presets
	if set == nil {
		set = preset.Builtins()
	}
	pr, err := set.Get(p.Preset)
	if err != nil {
		return "", err
	}
	return pr.Prompt, nil
}

// Generate produces a profile for p.InputPath. The preview and its sidecar
// profile are removed on return unless p.KeepPreview is set.
func (g *Generator) Generate(ctx context.Context, p Params) (res *Result, err error) {
	start := time.Now()
	log := logging.Component(g.Logger, "agent").With().Str("input", p.InputPath).Logger()

	defer func() {
		g.record(ctx, p, res, err, time.Since(start))
	}()

	if err := g.checkExtension(p.InputPath); err != nil {
		return nil, err
	}

	newProvider := g.NewProvider
	if newProvider == nil {
		newProvider = llm.NewProvider
	}

	previewPath := PreviewPath(p.InputPath)
	log.Debug().Str("provider", p.Provider).Str("model", p.Model).Msg("analyzing image")

	if err := checkReadable(p.InputPath); err != nil {
		return nil, err
	}
	if err := rawtherapee.CheckWritable(filepath.Dir(previewPath)); err != nil {
		return nil, err
	}

	quality := p.PreviewQuality
	if quality == 0 {
		quality = DefaultPreviewQuality
	}
	opts := rawtherapee.PreviewOptions(p.InputPath, previewPath, p.BasePP3Path, quality)
	log.Debug().Int("quality", quality).Str("preview", previewPath).Msg("generating preview")
	if p.BasePP3Path != "" {
		err = g.Converter.ConvertWithProfile(ctx, opts)
	} else {
		err = g.Converter.Convert(ctx, opts)
	}
	if err != nil {
		return nil, err
	}
	if !p.KeepPreview {
		defer g.cleanup(log, previewPath)
	}

	basePath := p.BasePP3Path
	if basePath == "" {
		basePath = previewPath + ".pp3"
	}

	image, err := readFile(previewPath)
	if err != nil {
		return nil, err
	}
	base, err := readFile(basePath)
	if err != nil {
		return nil, err
	}

	filtered := pp3.Filter(string(base), p.Sections)
	included := filtered.IncludedText()
	if strings.TrimSpace(included) == "" {
		return nil, fmt.Errorf("%w (requested: %s)", ErrNoSections, strings.Join(p.Sections, ", "))
	}
	log.Debug().Strs("sections", p.Sections).Int("included", len(filtered.Included)).Msg("filtered base profile")

	prompt, err := g.resolvePrompt(p)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(p.Provider, p.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderSetup, err)
	}

	log.Debug().Msg("sending request to AI provider")
	reply, err := provider.Complete(ctx, llm.Request{
		Prompt:      prompt + "\n\n" + included,
		Image:       image,
		MediaType:   "image/jpeg",
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return nil, &ProviderError{Provider: p.Provider, Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		return nil, ErrEmptyResponse
	}
	log.Debug().Str("reply", reply).Msg("received response")

	blocks := edits.Parse(reply)
	if err := edits.Validate(blocks); err != nil {
		return nil, err
	}
	for i, b := range blocks {
		log.Debug().Int("block", i+1).Str("search", b.Search).Str("replace", b.Replace).Msg("edit")
	}

	profile, applied := pp3.MergeEdits(filtered, blocks)
	if applied < len(blocks) {
		log.Warn().Int("blocks", len(blocks)).Int("applied", applied).Msg("some edits did not match the base profile")
	}

	return &Result{
		Profile:     profile,
		Blocks:      blocks,
		Applied:     applied,
		PreviewPath: previewPath,
		BasePath:    basePath,
		Duration:    time.Since(start),
	}, nil
}

// cleanup removes the preview and its sidecar profile. Failures are logged.
func (g *Generator) cleanup(log zerolog.Logger, previewPath string) {
	for _, path := range []string{previewPath, previewPath + ".pp3"} {
		err := os.Remove(path)
		switch {
		case err == nil:
			log.Debug().Str("file", path).Msg("preview file cleaned up")
		case errors.Is(err, fs.ErrNotExist):
			log.Debug().Str("file", path).Msg("preview file was already deleted")
		case errors.Is(err, fs.ErrPermission):
			log.Warn().Err(err).Str("file", path).Msg("permission denied deleting preview file")
		default:
			log.Warn().Err(err).Str("file", path).Msg("failed to clean up preview file")
		}
	}
}

func (g *Generator) record(ctx context.Context, p Params, res *Result, err error, d time.Duration) {
	if g.History == nil {
		return
	}
	e := history.Entry{
		Input:    p.InputPath,
		Output:   p.ProfileOutput,
		Provider: p.Provider,
		Model:    p.Model,
		Preset:   p.Preset,
		Status:   history.StatusSuccess,
		Duration: d,
	}
	if p.Prompt != "" {
		e.Preset = "custom"
	}
	if res != nil {
		e.Blocks = len(res.Blocks)
		e.Applied = res.Applied
	}
	if err != nil {
		e.Status = history.StatusFailed
		e.Error = err.Error()
	}
	if _, rerr := g.History.Record(context.WithoutCancel(ctx), e); rerr != nil {
		g.Logger.Warn().Err(rerr).Msg("failed to record history")
	}
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("file not found: %s", path)
		case errors.Is(err, fs.ErrPermission):
			return fmt.Errorf("permission denied reading %s", path)
		}
		return fmt.Errorf("error accessing %s: %w", path, err)
	}
	return f.Close()
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("file not found during read: %s", path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("permission denied reading file: %s", path)
		}
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	return data, nil
}
