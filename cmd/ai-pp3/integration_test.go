//go:build integration

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dshills/aipp3/internal/config"
	"github.com/dshills/aipp3/internal/history"
	"github.com/dshills/aipp3/internal/llm"
	"github.com/dshills/aipp3/internal/rawtherapee"
)

const basePP3 = `[Version]
AppVersion=5.9

[Exposure]
Auto=false
Clip=0.02
Compensation=0

[Sharpening]
Enabled=false
`

const exposureReply = "<<<<<<< SEARCH\nCompensation=0\n=======\nCompensation=0.4\n>>>>>>> REPLACE"

// stubConverter writes files in place of rawtherapee-cli.
type stubConverter struct{}

func (stubConverter) Convert(_ context.Context, o rawtherapee.Options) error {
	if err := os.WriteFile(o.Output, []byte{0xff, 0xd8}, 0o644); err != nil {
		return err
	}
	return os.WriteFile(o.Output+".pp3", []byte(basePP3), 0o644)
}

func (stubConverter) ConvertWithProfile(_ context.Context, o rawtherapee.Options) error {
	return os.WriteFile(o.Output, []byte{0xff, 0xd8}, 0o644)
}

type replyProvider struct {
	reply string
	err   error
}

func (p *replyProvider) Complete(context.Context, llm.Request) (string, error) {
	return p.reply, p.err
}

func injectProvider(t *testing.T, p llm.Provider) {
	t.Helper()
	orig := llm.NewProvider
	llm.NewProvider = func(_, _ string) (llm.Provider, error) { return p, nil }
	t.Cleanup(func() { llm.NewProvider = orig })
}

// testApp returns an app over a temp dir holding one RAW file.
func testApp(t *testing.T) (*app, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "DSC_0001.NEF")
	if err := os.WriteFile(input, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Sections = []string{"Exposure"}
	cfg.History.DBPath = filepath.Join(dir, "history.db")

	var out bytes.Buffer
	return &app{
		cfg:    cfg,
		logger: zerolog.Nop(),
		stdout: &out,
		stderr: &out,
		conv:   stubConverter{},
	}, input, &out
}

func defaultFlags() outputFlags {
	return outputFlags{bitDepth: 16, quality: 100}
}

func TestIntegration_Generate(t *testing.T) {
	injectProvider(t, &replyProvider{reply: exposureReply})
	a, input, out := testApp(t)

	err := runGenerate(context.Background(), a, input, defaultFlags())
	if code := exitCode(err); code != 0 {
		t.Fatalf("expected exit 0, got %d: %v", code, err)
	}

	pp3, err := os.ReadFile(strings.TrimSuffix(input, ".NEF") + ".pp3")
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	if !strings.Contains(string(pp3), "Compensation=0.4") {
		t.Errorf("profile missing edit:\n%s", pp3)
	}
	if !strings.Contains(string(pp3), "[Sharpening]") {
		t.Errorf("profile lost excluded section:\n%s", pp3)
	}
	if _, err := os.Stat(strings.TrimSuffix(input, ".NEF") + "_processed.jpg"); err != nil {
		t.Errorf("rendered image missing: %v", err)
	}
	if !strings.Contains(out.String(), "1/1 edits applied") {
		t.Errorf("unexpected output: %q", out.String())
	}

	tr, err := history.Open(a.cfg.History.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	entries, err := tr.Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Status != history.StatusSuccess {
		t.Errorf("history entries: %+v", entries)
	}

	out.Reset()
	if err := runHistory(context.Background(), a, 10); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out.String(), "DSC_0001.NEF") {
		t.Errorf("history output missing input: %q", out.String())
	}
}

func TestIntegration_PP3OnlyWithImageOutput_ExitsThree(t *testing.T) {
	injectProvider(t, &replyProvider{reply: exposureReply})
	a, input, _ := testApp(t)
	f := defaultFlags()
	f.pp3Only = true
	f.output = "out.jpg"

	err := runGenerate(context.Background(), a, input, f)
	if code := exitCode(err); code != exitCodeBadInput {
		t.Errorf("expected exit %d, got %d: %v", exitCodeBadInput, code, err)
	}
}

func TestIntegration_ProviderError_ExitsFour(t *testing.T) {
	injectProvider(t, &replyProvider{err: errors.New("simulated API error")})
	a, input, _ := testApp(t)

	err := runGenerate(context.Background(), a, input, defaultFlags())
	if code := exitCode(err); code != exitCodeAPIError {
		t.Errorf("expected exit %d, got %d: %v", exitCodeAPIError, code, err)
	}
}

func TestIntegration_NoBlocks_ExitsFive(t *testing.T) {
	injectProvider(t, &replyProvider{reply: "Looks great as is."})
	a, input, _ := testApp(t)

	err := runGenerate(context.Background(), a, input, defaultFlags())
	if code := exitCode(err); code != exitCodeBadOutput {
		t.Errorf("expected exit %d, got %d: %v", exitCodeBadOutput, code, err)
	}
}

func TestIntegration_Batch(t *testing.T) {
	injectProvider(t, &replyProvider{reply: exposureReply})
	a, input, out := testApp(t)
	other := filepath.Join(filepath.Dir(input), "DSC_0002.dng")
	if err := os.WriteFile(other, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := defaultFlags()
	f.pp3Only = true

	if err := runBatch(context.Background(), a, []string{input, other, input}, f); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out.String(), "2 profiles generated") {
		t.Errorf("unexpected output: %q", out.String())
	}

	bad := filepath.Join(filepath.Dir(input), "notes.txt")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := runBatch(context.Background(), a, []string{input, bad}, f)
	if code := exitCode(err); code != exitCodeError {
		t.Errorf("expected exit %d, got %d: %v", exitCodeError, code, err)
	}
	if !strings.Contains(out.String(), "! 1 profiles generated") {
		t.Errorf("partial batch should warn: %q", out.String())
	}

	out.Reset()
	sibling := strings.TrimSuffix(input, ".NEF") + ".dng"
	if err := os.WriteFile(sibling, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = runBatch(context.Background(), a, []string{input, sibling}, f)
	if code := exitCode(err); code != exitCodeError {
		t.Errorf("expected exit %d for same-stem inputs, got %d: %v", exitCodeError, code, err)
	}
	if !strings.Contains(out.String(), "output names collide") {
		t.Errorf("collision not reported: %q", out.String())
	}
}
