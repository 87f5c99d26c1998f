package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs local recognition through the tesseract C library. It is
// the default variant when an unknown engine name is submitted.
type Tesseract struct {
	lang string
}

func NewTesseract(lang string) *Tesseract {
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{lang: lang}
}

func (t *Tesseract) Name() string { return EngineTesseract }

// ExtractText recognizes the page as a single uniform block of text
// (PSM 6), matching how scanned exam pages read best.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, []string, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage(t.lang)
	_ = client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK)
	if err := client.SetImage(imagePath); err != nil {
		return "", nil, fmt.Errorf("%w: tesseract set image: %v", ErrEngineUnavailable, err)
	}
	text, err := client.Text()
	if err != nil {
		return "", nil, fmt.Errorf("%w: tesseract: %v", ErrEngineUnavailable, err)
	}
	return text, splitLines(text), nil
}
