package convert

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const archivePreviewEntries = 15

// Archive renders a folder card listing the first entries of a ZIP, TAR or
// gzip-compressed TAR archive. A gzip file that is not a TAR lists its single
// member.
type Archive struct{}

func (Archive) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	name := baseName(req.AssetID)
	names, total, err := listArchive(src, name)

	var data []byte
	if err != nil {
		data, err = archiveCard.render("Archive Error", "Could not read archive: "+err.Error())
	} else {
		summary := strings.Join(names, "\n")
		if total > archivePreviewEntries {
			summary += fmt.Sprintf("\n... and %d more files.", total-archivePreviewEntries)
		}
		data, err = archiveCard.render(fmt.Sprintf("Archive: %s (%d files)", name, total), summary)
	}
	if err != nil {
		return nil, err
	}
	return pngRendition(data), nil
}

func baseName(assetID string) string {
	if i := strings.LastIndex(assetID, "/"); i >= 0 {
		return assetID[i+1:]
	}
	return assetID
}

func listArchive(src []byte, name string) ([]string, int, error) {
	ext := simplemedia.Extension(name)
	switch ext {
	case ".zip":
		zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
		if err != nil {
			return nil, 0, err
		}
		var names []string
		for _, f := range zr.File {
			if len(names) < archivePreviewEntries {
				names = append(names, f.Name)
			}
		}
		return names, len(zr.File), nil
	case ".tar":
		return listTar(bytes.NewReader(src))
	case ".gz", ".tgz":
		gz, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, 0, err
		}
		defer gz.Close()
		plain, err := io.ReadAll(io.LimitReader(gz, 512<<20))
		if err != nil {
			return nil, 0, err
		}
		names, total, err := listTar(bytes.NewReader(plain))
		if err != nil || total == 0 {
			member := gz.Name
			if member == "" {
				member = strings.TrimSuffix(name, ext)
			}
			return []string{member}, 1, nil
		}
		return names, total, nil
	}
	return nil, 0, fmt.Errorf("unsupported archive extension %q", ext)
}

func listTar(r io.Reader) ([]string, int, error) {
	tr := tar.NewReader(r)
	var names []string
	total := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		total++
		if len(names) < archivePreviewEntries {
			names = append(names, hdr.Name)
		}
	}
	return names, total, nil
}
