package convert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Audio renders a waveform picture with ffmpeg's showwavespic filter. The
// picture is drawn at the requested size, 800x200 by default.
type Audio struct {
	FFmpegPath string
	Color      string
	Timeout    time.Duration
}

func (a *Audio) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	width, height := req.Options.Width, req.Options.Height
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 200
	}
	color := a.Color
	if color == "" {
		color = "cyan"
	}

	var wave []byte
	err := withTempDir(src, "input"+simplemedia.Extension(req.AssetID), func(dir, file string) error {
		out, err := runTool(ctx, a.Timeout, a.FFmpegPath,
			"-hide_banner", "-loglevel", "error",
			"-i", file,
			"-filter_complex", fmt.Sprintf("showwavespic=s=%dx%d:colors=%s", width, height, color),
			"-frames:v", "1",
			"-f", "image2", "-vcodec", "png",
			"pipe:1",
		)
		wave = out
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(wave) == 0 {
		return nil, errors.New("empty waveform output")
	}
	return pngRendition(wave), nil
}
