package ocr

import (
	"context"
	"fmt"
	"net/http"
)

// Surya sends pages to a surya-ocr sidecar over HTTP. The recognizer itself
// has no Go binding, so it runs as a separate inference service exposing a
// single JSON endpoint.
type Surya struct {
	endpoint string
	client   *http.Client
}

func NewSurya(cfg Config) *Surya {
	return &Surya{
		endpoint: cfg.SuryaEndpoint,
		client:   http.DefaultClient,
	}
}

func (s *Surya) Name() string { return EngineSurya }

type suryaRequest struct {
	ImageB64 string `json:"image_base64"`
}

type suryaResponse struct {
	Text *string `json:"text"`
}

func (s *Surya) ExtractText(ctx context.Context, imagePath string) (string, []string, error) {
	if s.endpoint == "" {
		return "", nil, fmt.Errorf("surya: %w: endpoint not configured", ErrEngineUnavailable)
	}
	b64, err := encodeImage(imagePath)
	if err != nil {
		return "", nil, err
	}
	var resp suryaResponse
	if err := postJSON(ctx, s.client, s.endpoint, nil, suryaRequest{ImageB64: b64}, &resp); err != nil {
		return "", nil, fmt.Errorf("surya: %w", err)
	}
	if resp.Text == nil {
		return "", nil, fmt.Errorf("surya: %w: missing text field in response", ErrEngineUnavailable)
	}
	fullText := *resp.Text
	return fullText, splitLines(fullText), nil
}
