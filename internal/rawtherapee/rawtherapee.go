// Package rawtherapee wraps the rawtherapee-cli binary used to render RAW
// files, either with its default processing or with a given pp3 profile.
package rawtherapee

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// DefaultBinary is the executable looked up on PATH when none is configured.
const DefaultBinary = "rawtherapee-cli"

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatTIFF Format = "tiff"
	FormatPNG  Format = "png"
)

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatTIFF:
		return "tif"
	case FormatPNG:
		return "png"
	default:
		return "jpg"
	}
}

// ParseFormat maps a user-facing name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "jpg":
		return FormatJPEG, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("rawtherapee: unsupported format %q (jpeg, tiff, png)", s)
	}
}

// Options describes one conversion.
type Options struct {
	Input           string
	Output          string
	ProfilePath     string // empty: rawtherapee default processing
	Format          Format
	Quality         int    // JPEG quality, 0-100
	Subsampling     int    // JPEG chroma subsampling, 1-3
	TIFFCompression string // "z" or "none"
	BitDepth        int    // 8 or 16
}

// PreviewOptions returns the options for a JPEG preview at the given quality.
func PreviewOptions(input, output, profile string, quality int) Options {
	return Options{
		Input:       input,
		Output:      output,
		ProfilePath: profile,
		Format:      FormatJPEG,
		Quality:     quality,
		Subsampling: 3,
		BitDepth:    16,
	}
}

// withDefaults fills zero values with the rawtherapee defaults.
func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatTIFF
	}
	if o.Subsampling == 0 {
		o.Subsampling = 3
	}
	if o.BitDepth == 0 {
		o.BitDepth = 16
	}
	return o
}

// Validate checks the numeric ranges and enumerations of o.
func (o Options) Validate() error {
	if o.Input == "" {
		return errors.New("rawtherapee: input path is required")
	}
	if o.Output == "" {
		return errors.New("rawtherapee: output path is required")
	}
	if o.Quality < 0 || o.Quality > 100 {
		return errors.New("rawtherapee: quality must be between 0 and 100")
	}
	if o.Subsampling < 1 || o.Subsampling > 3 {
		return errors.New("rawtherapee: subsampling must be between 1 and 3")
	}
	if o.BitDepth != 8 && o.BitDepth != 16 {
		return errors.New("rawtherapee: bit depth must be 8 or 16")
	}
	switch o.Format {
	case FormatJPEG, FormatTIFF, FormatPNG:
	default:
		return fmt.Errorf("rawtherapee: unsupported format %q", o.Format)
	}
	switch o.TIFFCompression {
	case "", "z", "none":
	default:
		return fmt.Errorf("rawtherapee: unsupported TIFF compression %q (z, none)", o.TIFFCompression)
	}
	return nil
}

// Args builds the rawtherapee-cli argument list for goos.
func (o Options) Args(goos string) []string {
	o = o.withDefaults()

	var args []string
	if goos == "windows" {
		args = append(args, "-w")
	}
	args = append(args, "-Y")
	if o.ProfilePath != "" {
		args = append(args, "-o", o.Output)
	} else {
		args = append(args, "-O", o.Output)
	}

	switch o.Format {
	case FormatJPEG:
		args = append(args, "-j"+strconv.Itoa(o.Quality), "-js"+strconv.Itoa(o.Subsampling))
	case FormatTIFF:
		args = append(args, "-t")
		if o.TIFFCompression == "z" {
			args = append(args, "z")
		}
	case FormatPNG:
		args = append(args, "-n")
	}

	args = append(args, "-b"+strconv.Itoa(o.BitDepth))
	if o.ProfilePath != "" {
		args = append(args, "-p", o.ProfilePath)
	}
	return append(args, "-c", o.Input)
}

// Runner invokes rawtherapee-cli.
type Runner struct {
	Binary string // defaults to DefaultBinary
}

// NewRunner returns a Runner for binary, or DefaultBinary when empty.
func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{Binary: binary}
}

// Convert renders o.Input with rawtherapee's default processing. With no
// profile, rawtherapee also writes a "<output>.pp3" sidecar describing the
// settings it used.
func (r *Runner) Convert(ctx context.Context, o Options) error {
	o.ProfilePath = ""
	return r.run(ctx, o)
}

// ConvertWithProfile renders o.Input with the profile at o.ProfilePath.
func (r *Runner) ConvertWithProfile(ctx context.Context, o Options) error {
	if o.ProfilePath == "" {
		return errors.New("rawtherapee: pp3 profile path is required")
	}
	return r.run(ctx, o)
}

func (r *Runner) run(ctx context.Context, o Options) error {
	o = o.withDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	if err := checkOutputDir(o.Output); err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, o.Args(runtime.GOOS)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("rawtherapee: conversion failed: %s", msg)
	}
	return nil
}

// checkOutputDir verifies that the directory of output exists and accepts
// new files.
func checkOutputDir(output string) error {
	dir := filepath.Dir(output)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rawtherapee: output directory does not exist: %s", dir)
		}
		return fmt.Errorf("rawtherapee: error accessing output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("rawtherapee: output path parent is not a directory: %s", dir)
	}
	return CheckWritable(dir)
}

// CheckWritable probes dir by creating and removing a temporary file.
func CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".ai-pp3-probe-*")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("permission denied writing to directory: %s", dir)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("directory not found: %s", dir)
		}
		return fmt.Errorf("error accessing directory %s: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}
