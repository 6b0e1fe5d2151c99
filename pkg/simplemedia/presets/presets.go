// Package presets loads named option bundles from YAML or JSON.
//
// A presets document maps names to options:
//
//	thumb:
//	  width: 150
//	  height: 150
//	  format: webp
//	  quality: 70
//	banner: {"width": 1200, "format": "jpg"}
//
// Since YAML is a superset of JSON, the same parser reads both.
package presets

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Defaults returns the built-in presets.
func Defaults() simplemedia.Presets {
	return simplemedia.Presets{
		"thumb":  {Width: 150, Height: 150, Format: simplemedia.FormatWEBP, Quality: 70},
		"avatar": {Width: 128, Height: 128, Format: simplemedia.FormatWEBP, Quality: 80},
		"small":  {Width: 320, Format: simplemedia.FormatWEBP},
		"medium": {Width: 800, Format: simplemedia.FormatWEBP},
		"large":  {Width: 1600, Format: simplemedia.FormatJPEG, Quality: 85},
	}
}

type rawPreset struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"`
}

// Parse reads a presets document. Format names are normalised, so "JPG"
// becomes jpeg.
func Parse(data []byte) (simplemedia.Presets, error) {
	var raw map[string]rawPreset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	out := make(simplemedia.Presets, len(raw))
	for name, r := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("preset with empty name")
		}
		if r.Width < 0 || r.Height < 0 {
			return nil, fmt.Errorf("preset %q: dimensions must not be negative", name)
		}
		if r.Quality < 0 || r.Quality > 100 {
			return nil, fmt.Errorf("preset %q: quality must be between 1 and 100", name)
		}
		p := simplemedia.Preset{Width: r.Width, Height: r.Height, Quality: r.Quality}
		if r.Format != "" {
			f, err := simplemedia.ParseFormat(r.Format)
			if err != nil {
				return nil, fmt.Errorf("preset %q: %w", name, err)
			}
			p.Format = f
		}
		out[name] = p
	}
	return out, nil
}

// LoadFile reads and parses the presets document at path.
func LoadFile(path string) (simplemedia.Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	return Parse(data)
}

// Merge returns base with every preset of overrides added or replaced.
// Neither argument is modified.
func Merge(base, overrides simplemedia.Presets) simplemedia.Presets {
	out := make(simplemedia.Presets, len(base)+len(overrides))
	for name, p := range base {
		out[name] = p
	}
	for name, p := range overrides {
		out[name] = p
	}
	return out
}
