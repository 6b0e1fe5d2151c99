package convert

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Video extracts the frame at the requested offset with ffmpeg.
type Video struct {
	FFmpegPath string
	Timeout    time.Duration
}

func (v *Video) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	var frame []byte
	err := withTempDir(src, "input"+simplemedia.Extension(req.AssetID), func(dir, file string) error {
		out, err := runTool(ctx, v.Timeout, v.FFmpegPath,
			"-hide_banner", "-loglevel", "error",
			"-ss", strconv.FormatFloat(req.Media.Time, 'f', -1, 64),
			"-i", file,
			"-frames:v", "1",
			"-f", "image2", "-vcodec", "png",
			"pipe:1",
		)
		frame = out
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, errors.New("no frame at requested time")
	}
	return pngRendition(frame), nil
}
