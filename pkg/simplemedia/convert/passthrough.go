package convert

import (
	"context"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Passthrough serves the original bytes unchanged with the content type of
// its extension.
type Passthrough struct{}

func (Passthrough) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	return &simplemedia.Rendition{
		Data:     src,
		MimeType: simplemedia.MimeTypeForExtension(simplemedia.Extension(req.AssetID)),
		Final:    true,
	}, nil
}
