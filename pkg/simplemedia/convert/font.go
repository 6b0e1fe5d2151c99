package convert

import (
	"context"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

var specimenLines = []string{
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"abcdefghijklmnopqrstuvwxyz",
	"0123456789 !@#$%^&*()",
	"",
	"The quick brown fox jumps over the lazy dog.",
	"Sphinx of black quartz, judge my vow.",
	"",
	"Large size (72pt):",
}

// Font renders a specimen sheet for TTF and OTF files. Unparseable fonts
// produce a red error card.
type Font struct{}

func (Font) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	data, err := renderSpecimen(src)
	if err != nil {
		data, err = fontErrorCard.render("Font Error:", err.Error())
		if err != nil {
			return nil, err
		}
	}
	return pngRendition(data), nil
}

func renderSpecimen(src []byte) ([]byte, error) {
	f, err := opentype.Parse(src)
	if err != nil {
		return nil, err
	}
	regular, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 48, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	defer regular.Close()
	large, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 72, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	defer large.Close()

	img := image.NewRGBA(image.Rect(0, 0, 1200, 800))
	fillRect(img, img.Bounds(), color.RGBA{255, 255, 255, 255})

	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: regular}
	y := 40
	for _, line := range specimenLines {
		d.Dot = fixed.P(40, y+48)
		d.DrawString(line)
		y += 58
	}

	d.Face = large
	d.Src = image.NewUniform(color.RGBA{43, 108, 176, 255})
	d.Dot = fixed.P(40, y+72)
	d.DrawString("Simple Media Engine")

	return encodePNG(img)
}
