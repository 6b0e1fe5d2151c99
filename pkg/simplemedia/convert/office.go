package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const maxSummaryRunes = 500

// Office renders a summary card for DOCX, PPTX and XLSX files: the first
// paragraphs, the first slide's text or the top-left cells of the first
// sheet.
type Office struct{}

func (Office) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	title, summary, err := summarizeOffice(src, simplemedia.Extension(req.AssetID))
	if err != nil {
		title, summary = "Error", "Could not parse office file: "+err.Error()
	}
	if r := []rune(summary); len(r) > maxSummaryRunes {
		summary = string(r[:maxSummaryRunes])
	}
	data, err := officeCard.render(title, summary)
	if err != nil {
		return nil, err
	}
	return pngRendition(data), nil
}

func summarizeOffice(src []byte, ext string) (string, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return "", "", err
	}
	switch ext {
	case ".docx":
		return summarizeDocx(zr)
	case ".pptx":
		return summarizePptx(zr)
	case ".xlsx":
		return summarizeXlsx(zr)
	}
	return "", "", fmt.Errorf("unsupported office extension %q", ext)
}

func openZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, 32<<20))
}

// collectText walks an XML part and returns the text of every element named
// textElem, grouped by the enclosing element named groupElem.
func collectText(data []byte, groupElem, textElem string) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var groups []string
	var current strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == groupElem {
				current.Reset()
			}
			if t.Name.Local == textElem {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == textElem {
				inText = false
			}
			if t.Name.Local == groupElem {
				groups = append(groups, current.String())
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return groups, nil
}

func summarizeDocx(zr *zip.Reader) (string, string, error) {
	doc, err := openZipFile(zr, "word/document.xml")
	if err != nil {
		return "", "", err
	}
	paragraphs, err := collectText(doc, "p", "t")
	if err != nil {
		return "", "", err
	}
	var lines []string
	for _, p := range paragraphs {
		if len(lines) == 5 {
			break
		}
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}
	return "Word Document", strings.Join(lines, "\n"), nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func summarizePptx(zr *zip.Reader) (string, string, error) {
	var slides []int
	for _, f := range zr.File {
		if m := slideName.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, n)
		}
	}
	sort.Ints(slides)
	title := fmt.Sprintf("PowerPoint (%d slides)", len(slides))
	if len(slides) == 0 {
		return title, "", nil
	}

	slide, err := openZipFile(zr, fmt.Sprintf("ppt/slides/slide%d.xml", slides[0]))
	if err != nil {
		return "", "", err
	}
	paragraphs, err := collectText(slide, "p", "t")
	if err != nil {
		return "", "", err
	}
	var lines []string
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}
	return title, strings.Join(lines, "\n"), nil
}

type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxSheet struct {
	Rows []struct {
		Cells []struct {
			Ref    string `xml:"r,attr"`
			Type   string `xml:"t,attr"`
			Value  string `xml:"v"`
			Inline string `xml:"is>t"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func summarizeXlsx(zr *zip.Reader) (string, string, error) {
	sheetName := "Sheet1"
	if wbData, err := openZipFile(zr, "xl/workbook.xml"); err == nil {
		var wb xlsxWorkbook
		if err := xml.Unmarshal(wbData, &wb); err == nil && len(wb.Sheets) > 0 {
			sheetName = wb.Sheets[0].Name
		}
	}

	var shared []string
	if ssData, err := openZipFile(zr, "xl/sharedStrings.xml"); err == nil {
		shared, err = collectText(ssData, "si", "t")
		if err != nil {
			return "", "", err
		}
	}

	sheetData, err := openZipFile(zr, "xl/worksheets/sheet1.xml")
	if err != nil {
		return "", "", err
	}
	var sheet xlsxSheet
	if err := xml.Unmarshal(sheetData, &sheet); err != nil {
		return "", "", err
	}

	var rows []string
	for _, row := range sheet.Rows {
		if len(rows) == 10 {
			break
		}
		cells := make([]string, 5)
		for i, c := range row.Cells {
			col := columnIndex(c.Ref, i)
			if col >= len(cells) {
				continue
			}
			v := c.Value
			switch c.Type {
			case "s":
				if idx, err := strconv.Atoi(v); err == nil && idx >= 0 && idx < len(shared) {
					v = shared[idx]
				}
			case "inlineStr":
				v = c.Inline
			}
			cells[col] = v
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return fmt.Sprintf("Excel Spreadsheet (%s)", sheetName), strings.Join(rows, "\n"), nil
}

// columnIndex converts the letters of a cell reference like "C7" to a
// zero-based column, falling back to the cell's position in the row.
func columnIndex(ref string, fallback int) int {
	col := 0
	n := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A'+1)
		n++
	}
	if n == 0 {
		return fallback
	}
	return col - 1
}
