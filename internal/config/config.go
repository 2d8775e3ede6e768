// Package config loads ai-pp3 settings from defaults, an optional config
// file, a .env file, AI_PP3_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/aipp3/internal/preset"
	"github.com/dshills/aipp3/internal/rawtherapee"
)

// EnvPrefix is prepended to every environment override, e.g. AI_PP3_MODEL.
const EnvPrefix = "AI_PP3"

// DefaultSections are the profile sections sent to the model when none are
// configured.
var DefaultSections = []string{
	"Exposure",
	"White Balance",
	"Shadows & Highlights",
	"Vibrance",
	"Local Contrast",
	"Sharpening",
	"Directional Pyramid Denoising",
}

// DefaultRawExtensions are the input extensions accepted out of the box.
var DefaultRawExtensions = []string{".dng", ".nef", ".cr2", ".arw"}

// Config holds the complete application configuration.
type Config struct {
	Provider       string            `mapstructure:"provider"`
	Model          string            `mapstructure:"model"`
	Preset         string            `mapstructure:"preset"`
	PresetsFile    string            `mapstructure:"presets_file"`
	Sections       []string          `mapstructure:"sections"`
	PreviewQuality int               `mapstructure:"preview_quality"`
	MaxTokens      int               `mapstructure:"max_tokens"`
	Temperature    float64           `mapstructure:"temperature"`
	Concurrency    int               `mapstructure:"concurrency"`
	RawExtensions  []string          `mapstructure:"raw_extensions"`
	RawTherapee    RawTherapeeConfig `mapstructure:"rawtherapee"`
	History        HistoryConfig     `mapstructure:"history"`
}

// RawTherapeeConfig configures the external converter.
type RawTherapeeConfig struct {
	Binary string `mapstructure:"binary"`
}

// HistoryConfig configures the generation ledger.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Provider:       "openai",
		Model:          "gpt-4-vision-preview",
		Preset:         preset.Default,
		Sections:       append([]string(nil), DefaultSections...),
		PreviewQuality: 80,
		MaxTokens:      4096,
		Temperature:    0.7,
		Concurrency:    2,
		RawExtensions:  append([]string(nil), DefaultRawExtensions...),
		RawTherapee:    RawTherapeeConfig{Binary: rawtherapee.DefaultBinary},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "~/.local/share/ai-pp3/history.db",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("model", d.Model)
	v.SetDefault("preset", d.Preset)
	v.SetDefault("presets_file", d.PresetsFile)
	v.SetDefault("sections", d.Sections)
	v.SetDefault("preview_quality", d.PreviewQuality)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("raw_extensions", d.RawExtensions)
	v.SetDefault("rawtherapee.binary", d.RawTherapee.Binary)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.db_path", d.History.DBPath)
}

// flagKeys maps command-line flag names to configuration keys. Only flags
// present on the given FlagSet and explicitly set are bound.
var flagKeys = map[string]string{
	"provider":        "provider",
	"model":           "model",
	"preset":          "preset",
	"presets-file":    "presets_file",
	"sections":        "sections",
	"preview-quality": "preview_quality",
	"max-tokens":      "max_tokens",
	"temperature":     "temperature",
	"concurrency":     "concurrency",
	"rawtherapee":     "rawtherapee.binary",
}

// Load reads configuration. configPath may be empty, in which case
// ai-pp3.yaml is searched in the working directory and in
// $HOME/.config/ai-pp3. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional; variables already in the environment win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ai-pp3")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ai-pp3")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
		if f := flags.Lookup("no-history"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("history.enabled", false)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize cleans list values and expands the home directory in paths.
func (c *Config) normalize() {
	c.Sections = splitList(c.Sections)
	c.RawExtensions = splitList(c.RawExtensions)
	for i, ext := range c.RawExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.RawExtensions[i] = ext
	}
	c.History.DBPath = ExpandHome(c.History.DBPath)
	c.PresetsFile = ExpandHome(c.PresetsFile)
}

// splitList flattens comma-separated entries, as produced by environment
// variables and string flags, and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.PreviewQuality < 1 || c.PreviewQuality > 100 {
		return fmt.Errorf("config: preview_quality must be between 1 and 100, got %d", c.PreviewQuality)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config: temperature must be between 0 and 2, got %g", c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("config: max_tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
