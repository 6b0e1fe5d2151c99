package simplemedia

import (
	"fmt"
	"sort"
)

// Preset is a named bundle of default options. Zero fields leave the value
// to the next tier.
type Preset struct {
	Width   int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height  int    `json:"height,omitempty" yaml:"height,omitempty"`
	Format  Format `json:"format,omitempty" yaml:"format,omitempty"`
	Quality int    `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// Presets maps preset names to presets.
type Presets map[string]Preset

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query holds explicitly requested options. Zero fields were not supplied.
type Query struct {
	Width   int
	Height  int
	Format  Format
	Quality int
}

// ResolveOptions merges system defaults, the named preset and the explicit
// query, each tier overriding the previous one field by field. An empty
// preset name skips the preset tier; an unknown one is ErrInvalidPreset.
func ResolveOptions(q Query, presetName string, presets Presets, defaultQuality int) (Options, error) {
	opts := Options{Format: DefaultFormat, Quality: defaultQuality}

	if presetName != "" {
		preset, ok := presets[presetName]
		if !ok {
			return Options{}, fmt.Errorf("%w: %q", ErrInvalidPreset, presetName)
		}
		opts = overlay(opts, preset.Width, preset.Height, preset.Format, preset.Quality)
	}

	return overlay(opts, q.Width, q.Height, q.Format, q.Quality), nil
}

func overlay(opts Options, width, height int, format Format, quality int) Options {
	if width > 0 {
		opts.Width = width
	}
	if height > 0 {
		opts.Height = height
	}
	if format != "" {
		opts.Format = format
	}
	if quality > 0 {
		opts.Quality = quality
	}
	return opts
}

// Validate checks explicit query values against the accepted bounds. A
// maxDimension of zero disables the size bound.
func (q Query) Validate(maxDimension int) error {
	if q.Width < 0 || q.Height < 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidRequest)
	}
	if maxDimension > 0 && (q.Width > maxDimension || q.Height > maxDimension) {
		return fmt.Errorf("%w: dimensions must not exceed %d", ErrInvalidRequest, maxDimension)
	}
	if q.Quality < 0 || q.Quality > 100 {
		return fmt.Errorf("%w: quality must be between 1 and 100", ErrInvalidRequest)
	}
	if q.Format != "" && !q.Format.IsValid() {
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, q.Format)
	}
	return nil
}
