package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir so no user config is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4-vision-preview", cfg.Model)
	assert.Equal(t, "aggressive", cfg.Preset)
	assert.Equal(t, DefaultSections, cfg.Sections)
	assert.Equal(t, 80, cfg.PreviewQuality)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, []string{".dng", ".nef", ".cr2", ".arw"}, cfg.RawExtensions)
	assert.Equal(t, "rawtherapee-cli", cfg.RawTherapee.Binary)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join(home, ".local/share/ai-pp3/history.db"), cfg.History.DBPath)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `
provider: anthropic
model: claude-sonnet-4-5
sections: [Exposure, Sharpening]
preview_quality: 60
raw_extensions: [dng, RAF]
rawtherapee:
  binary: /opt/rt/rawtherapee-cli
history:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model)
	assert.Equal(t, []string{"Exposure", "Sharpening"}, cfg.Sections)
	assert.Equal(t, 60, cfg.PreviewQuality)
	assert.Equal(t, []string{".dng", ".raf"}, cfg.RawExtensions)
	assert.Equal(t, "/opt/rt/rawtherapee-cli", cfg.RawTherapee.Binary)
	assert.False(t, cfg.History.Enabled)
	// Unset keys keep their defaults.
	assert.Equal(t, 4096, cfg.MaxTokens)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "config: read config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("AI_PP3_PROVIDER", "google")
	t.Setenv("AI_PP3_SECTIONS", "Exposure, Vibrance")
	t.Setenv("AI_PP3_RAWTHERAPEE_BINARY", "/usr/local/bin/rt")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Provider)
	assert.Equal(t, []string{"Exposure", "Vibrance"}, cfg.Sections)
	assert.Equal(t, "/usr/local/bin/rt", cfg.RawTherapee.Binary)
}

func TestLoad_FlagsWin(t *testing.T) {
	isolate(t)
	t.Setenv("AI_PP3_MODEL", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("model", "", "")
	fs.String("provider", "", "")
	fs.Int("preview-quality", 0, "")
	fs.Bool("no-history", false, "")
	require.NoError(t, fs.Parse([]string{"--model", "from-flag", "--preview-quality", "95", "--no-history"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Model)
	assert.Equal(t, 95, cfg.PreviewQuality)
	assert.False(t, cfg.History.Enabled)
	// Unchanged flags do not shadow the default.
	assert.Equal(t, "openai", cfg.Provider)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"quality zero", func(c *Config) { c.PreviewQuality = 0 }, "preview_quality"},
		{"quality high", func(c *Config) { c.PreviewQuality = 101 }, "preview_quality"},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"temperature", func(c *Config) { c.Temperature = 2.5 }, "temperature"},
		{"max tokens", func(c *Config) { c.MaxTokens = 0 }, "max_tokens"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), c.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, "x/y"), ExpandHome("~/x/y"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
