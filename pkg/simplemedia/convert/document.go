package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Document rasterises one PDF page with pdftoppm.
type Document struct {
	PdftoppmPath string
	DPI          int
	Timeout      time.Duration
}

func (d *Document) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	page := req.Media.Page
	if page < 1 {
		page = 1
	}
	dpi := d.DPI
	if dpi <= 0 {
		dpi = 150
	}

	var raster []byte
	err := withTempDir(src, "input.pdf", func(dir, file string) error {
		outBase := filepath.Join(dir, "page")
		p := strconv.Itoa(page)
		if _, err := runTool(ctx, d.Timeout, d.PdftoppmPath,
			"-f", p, "-l", p,
			"-r", strconv.Itoa(dpi),
			"-png", "-singlefile",
			file, outBase,
		); err != nil {
			return err
		}
		data, err := os.ReadFile(outBase + ".png")
		if err != nil {
			return fmt.Errorf("page %d not rendered: %w", page, err)
		}
		raster = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pngRendition(raster), nil
}
