// Package raster converts multi-page PDF documents into ordered page images.
package raster

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrDocumentOpen is returned when the source file is unreadable or not a
// valid document. The pipeline treats it as attempt failure.
var ErrDocumentOpen = errors.New("cannot open document")

// PDF rasterizes scanned PDFs by extracting the full-page scan image of
// each page. No OCR happens here.
type PDF struct{}

// Pages returns the ordered page images of the document at path. Either
// the full ordered sequence is produced or the operation fails entirely;
// no partial results are emitted.
func (PDF) Pages(path string) ([]image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentOpen, err)
	}
	tempDir, err := os.MkdirTemp("", "exam-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(path, tempDir, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentOpen, err)
	}

	byPage, err := collectPageImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentOpen, err)
	}
	if len(byPage) == 0 {
		return nil, fmt.Errorf("%w: no page images found", ErrDocumentOpen)
	}

	pageNums := make([]int, 0, len(byPage))
	for n := range byPage {
		pageNums = append(pageNums, n)
	}
	sort.Ints(pageNums)

	images := make([]image.Image, 0, len(pageNums))
	for _, n := range pageNums {
		images = append(images, byPage[n])
	}
	return images, nil
}

// collectPageImages walks the extraction directory and keeps the first
// image of each page. pdfcpu names extracted files page_<num>_... .
func collectPageImages(dir string) (map[int]image.Image, error) {
	result := make(map[int]image.Image)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		pageNum, err := parsePageFromFilename(info.Name())
		if err != nil {
			return nil // not a page image
		}
		if _, ok := result[pageNum]; ok {
			return nil // scanned pages carry one image; keep the first
		}
		img, err := loadImageFile(path)
		if err != nil {
			return nil // skip undecodable entries
		}
		result[pageNum] = img
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	return img, err
}

func parsePageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, errors.New("not a page file")
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, errors.New("invalid filename format")
	}
	return strconv.Atoi(parts[1])
}
