// Package preset defines the prompt presets sent to the vision model along
// with the profile sections to edit. Each preset carries a full instruction
// prompt that teaches the model the SEARCH/REPLACE edit format.
package preset

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default is the preset used when none is named.
const Default = "aggressive"

// Preset is a named prompt.
type Preset struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`
}

// Set is a registry of presets keyed by lower-case name.
type Set map[string]Preset

// builtins is the registry of built-in presets keyed by name.
var builtins = Set{
	"aggressive": {
		Name:        "aggressive",
		Description: "Bold, dramatic edits that push every parameter.",
		Prompt: buildPrompt(
			"MASTER",
			"aggressively optimize and creatively transform",
			"use it as inspiration for bold enhancements, not a limitation",
			[]string{
				"Push creative boundaries while keeping technical quality",
				"Prefer dramatic yet balanced results over safe adjustments",
				"Look for hidden potential in every parameter",
			},
			"Make bold, creative enhancements",
			"Current issues and creative opportunities",
			"Coordinated parameter changes with expected impact",
			"0.15", "-0.7",
		),
	},
	"creative": {
		Name:        "creative",
		Description: "Artistic colour grading and mood.",
		Prompt: buildPrompt(
			"ARTIST",
			"creatively transform with an artistic vision",
			"use it as the starting point for your interpretation",
			[]string{
				"Prioritize artistic expression and a distinctive style",
				"Create a clear mood or atmosphere",
				"Experiment with colour relationships and tonal contrast",
			},
			"Focus on creative colour grading and mood",
			"Artistic opportunities and possible visual directions",
			"The mood you are aiming for and how each change serves it",
			"0.15", "-0.7",
		),
	},
	"balanced": {
		Name:        "balanced",
		Description: "Natural, measured improvements.",
		Prompt: buildPrompt(
			"EXPERT",
			"carefully enhance with balanced, natural-looking adjustments",
			"use it to guide subtle improvements",
			[]string{
				"Prioritize natural, realistic results",
				"Keep colour accurate and tones balanced",
				"Improve quality while preserving the original intent",
			},
			"Make measured, balanced adjustments",
			"Technical issues and opportunities for improvement",
			"Balanced parameter changes with expected impact",
			"0.05", "-0.2",
		),
	},
	"technical": {
		Name:        "technical",
		Description: "Noise, sharpness and fidelity corrections with a neutral look.",
		Prompt: buildPrompt(
			"TECHNICIAN",
			"technically optimize with precision",
			"use it to identify technical flaws to correct",
			[]string{
				"Prioritize technical excellence and image fidelity",
				"Focus on noise reduction, sharpness and detail",
				"Correct flaws while keeping a neutral look",
			},
			"Make precise technical adjustments",
			"Technical issues and image quality problems",
			"Corrections with the improvement each one brings",
			"0.02", "-0.1",
		),
	},
}

func buildPrompt(role, mission, preview string, mandate []string, rule4, analysis, plan, clip, comp string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a RawTherapee processing profile (pp3) optimization %s. ", role)
	fmt.Fprintf(&sb, "Your mission is to %s the attached pp3 sections. ", mission)
	fmt.Fprintf(&sb, "A JPEG preview of the image is attached: %s.\n\n", preview)

	sb.WriteString("MANDATE:\n")
	for _, m := range mandate {
		fmt.Fprintf(&sb, "- %s\n", m)
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("1. Only modify existing parameter values\n")
	sb.WriteString("2. Keep the original section order and parameter order\n")
	sb.WriteString("3. One section per SEARCH/REPLACE block\n")
	fmt.Fprintf(&sb, "4. %s\n", rule4)

	sb.WriteString("\nOutput format:\n\nANALYSIS:\n")
	fmt.Fprintf(&sb, "- %s\n\nPLAN:\n- %s\n\nEXECUTION:\n\n", analysis, plan)
	sb.WriteString("```\n<<<<<<< SEARCH\n[Exposure]\nAuto=false\nClip=0.02\nCompensation=0\n=======\n")
	fmt.Fprintf(&sb, "[Exposure]\nAuto=false\nClip=%s\nCompensation=%s\n>>>>>>> REPLACE\n```\n\n", clip, comp)

	sb.WriteString("[Further blocks following the same rules]\n")
	sb.WriteString("- Keep the exact parameter order in every block\n")
	sb.WriteString("- Never change section headers\n")
	sb.WriteString("- At most one section per block\n\n")
	sb.WriteString("Current pp3 to transform:\n")
	return sb.String()
}

// Builtins returns a copy of the built-in registry.
func Builtins() Set {
	s := make(Set, len(builtins))
	for k, v := range builtins {
		s[k] = v
	}
	return s
}

// Load returns the named built-in preset. Names are case-insensitive.
func Load(name string) (Preset, error) {
	return builtins.Get(name)
}

// Get returns the named preset from s. An empty name selects Default.
func (s Set) Get(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = Default
	}
	p, ok := s[key]
	if !ok {
		return Preset{}, fmt.Errorf("preset: unknown preset %q (available: %s)", name, strings.Join(s.Names(), ", "))
	}
	return p, nil
}

// Names returns the preset names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type fileFormat struct {
	Presets []Preset `yaml:"presets"`
}

// LoadFile reads user presets from a YAML file and layers them over the
// built-ins. A user preset replaces a built-in of the same name.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preset: read %s: %w", path, err)
	}
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("preset: parse %s: %w", path, err)
	}

	s := Builtins()
	for i, p := range ff.Presets {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return nil, fmt.Errorf("preset: %s: entry %d has no name", path, i+1)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, fmt.Errorf("preset: %s: preset %q has an empty prompt", path, p.Name)
		}
		p.Name = key
		s[key] = p
	}
	return s, nil
}
