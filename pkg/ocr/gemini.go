package ocr

import (
	"context"
	"fmt"
	"net/http"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"

// Gemini sends pages to the Google generative vision API.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewGemini(cfg Config) *Gemini {
	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-2.5-flash"
	}
	endpoint := cfg.GeminiEndpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &Gemini{
		apiKey:   cfg.GeminiAPIKey,
		model:    model,
		endpoint: endpoint,
		client:   http.DefaultClient,
	}
}

func (g *Gemini) Name() string { return EngineGemini }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) ExtractText(ctx context.Context, imagePath string) (string, []string, error) {
	b64, err := encodeImage(imagePath)
	if err != nil {
		return "", nil, err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	req := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{
		{Text: extractPrompt},
		{InlineData: &geminiInlineData{MimeType: "image/png", Data: b64}},
	}}}}
	var resp geminiResponse
	headers := map[string]string{"x-goog-api-key": g.apiKey}
	if err := postJSON(ctx, g.client, url, headers, req, &resp); err != nil {
		return "", nil, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil, fmt.Errorf("gemini: %w: no candidates in response", ErrEngineUnavailable)
	}
	fullText := resp.Candidates[0].Content.Parts[0].Text
	return fullText, splitLines(fullText), nil
}
