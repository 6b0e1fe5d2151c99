package convert

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const maxPreviewCandidates = 64

var soi = []byte{0xFF, 0xD8, 0xFF}

// Raw extracts the largest embedded JPEG preview from a camera RAW file.
// CR2, NEF, ARW and DNG all carry a full-size or near full-size preview.
type Raw struct{}

func (Raw) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	preview, err := largestJPEG(src)
	if err != nil {
		return nil, err
	}
	return &simplemedia.Rendition{Data: preview, MimeType: "image/jpeg"}, nil
}

func largestJPEG(data []byte) ([]byte, error) {
	best, bestArea := -1, 0
	offset := 0
	for n := 0; n < maxPreviewCandidates; n++ {
		i := bytes.Index(data[offset:], soi)
		if i < 0 {
			break
		}
		start := offset + i
		if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data[start:])); err == nil {
			if area := cfg.Width * cfg.Height; area > bestArea {
				best, bestArea = start, area
			}
		}
		offset = start + len(soi)
	}
	if best < 0 {
		return nil, errors.New("no embedded JPEG preview found")
	}
	return data[best:], nil
}
