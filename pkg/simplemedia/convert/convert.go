// Package convert holds the converters that normalise non-image media into
// an image for the transform stage, or into final bytes.
//
// Time- and page-addressed media (video, audio, documents) are handled by
// external tools: ffmpeg and pdftoppm. Informational renderers (text,
// office, font, 3D, archive, BIM) draw summary cards and fall back to an
// error card instead of failing.
package convert

import (
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Config configures the default converter set.
type Config struct {
	FFmpegPath   string
	PdftoppmPath string
	DocumentDPI  int
	Timeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.PdftoppmPath == "" {
		c.PdftoppmPath = "pdftoppm"
	}
	if c.DocumentDPI <= 0 {
		c.DocumentDPI = 150
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Defaults returns one converter per non-image media class.
func Defaults(cfg Config) map[simplemedia.MediaClass]simplemedia.Converter {
	cfg = cfg.withDefaults()
	return map[simplemedia.MediaClass]simplemedia.Converter{
		simplemedia.ClassVideo:       &Video{FFmpegPath: cfg.FFmpegPath, Timeout: cfg.Timeout},
		simplemedia.ClassAudio:       &Audio{FFmpegPath: cfg.FFmpegPath, Timeout: cfg.Timeout},
		simplemedia.ClassDocument:    &Document{PdftoppmPath: cfg.PdftoppmPath, DPI: cfg.DocumentDPI, Timeout: cfg.Timeout},
		simplemedia.ClassRaw:         Raw{},
		simplemedia.ClassText:        Text{},
		simplemedia.ClassOffice:      Office{},
		simplemedia.ClassFont:        Font{},
		simplemedia.ClassModel3D:     Model3D{},
		simplemedia.ClassArchive:     Archive{},
		simplemedia.ClassBIM:         BIM{},
		simplemedia.ClassPassthrough: Passthrough{},
	}
}

func pngRendition(data []byte) *simplemedia.Rendition {
	return &simplemedia.Rendition{Data: data, MimeType: "image/png"}
}
