package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	maxTextLines   = 200
	maxTextColumns = 160
	gutterColumns  = 5
)

var (
	textBackground = color.RGBA{39, 40, 34, 255}
	textForeground = color.RGBA{248, 248, 242, 255}
	textGutter     = color.RGBA{117, 113, 94, 255}
)

// Text renders JSON, XML and Markdown as a line-numbered code image. JSON
// and XML are pretty-printed first; content that fails to parse is drawn
// as-is.
type Text struct{}

func (Text) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	content := string(bytes.ToValidUTF8(src, []byte("?")))
	switch simplemedia.Extension(req.AssetID) {
	case ".json":
		if pretty, err := prettyJSON(src); err == nil {
			content = pretty
		}
	case ".xml":
		if pretty, err := prettyXML(src); err == nil {
			content = pretty
		}
	}

	data, err := renderCode(content)
	if err != nil {
		return nil, err
	}
	return pngRendition(data), nil
}

func prettyJSON(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, src, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func prettyXML(src []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(src))
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if cd, ok := tok.(xml.CharData); ok {
			trimmed := bytes.TrimSpace(cd)
			if len(trimmed) == 0 {
				continue
			}
			tok = xml.CharData(trimmed)
		}
		if err := enc.EncodeToken(tok); err != nil {
			return "", err
		}
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderCode(content string) ([]byte, error) {
	lines := strings.Split(strings.TrimRight(strings.ReplaceAll(content, "\r\n", "\n"), "\n"), "\n")
	truncated := len(lines) > maxTextLines
	if truncated {
		lines = lines[:maxTextLines]
	}

	cols := 1
	for i, line := range lines {
		line = strings.ReplaceAll(line, "\t", "    ")
		if utf8.RuneCountInString(line) > maxTextColumns {
			line = string([]rune(line)[:maxTextColumns])
		}
		lines[i] = line
		cols = max(cols, utf8.RuneCountInString(line))
	}

	rows := len(lines)
	if truncated {
		rows++
	}
	width := (gutterColumns+1+cols)*glyphWidth + 20
	height := rows*lineHeight + 20

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRect(img, img.Bounds(), textBackground)

	y := 10
	for i, line := range lines {
		drawText(img, textGutter, image.Pt(10, y), fmt.Sprintf("%*d", gutterColumns-1, i+1), width)
		drawText(img, textForeground, image.Pt(10+(gutterColumns+1)*glyphWidth, y), line, width)
		y += lineHeight
	}
	if truncated {
		drawText(img, textGutter, image.Pt(10, y), "...", width)
	}
	return encodePNG(img)
}
