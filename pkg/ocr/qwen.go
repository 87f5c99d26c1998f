package ocr

import (
	"context"
	"fmt"
	"net/http"
)

const defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// Qwen sends pages to the Qwen vision model through the OpenRouter chat
// completions endpoint.
type Qwen struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewQwen(cfg Config) *Qwen {
	model := cfg.QwenModel
	if model == "" {
		model = "qwen/qwen2.5-vl-32b-instruct"
	}
	endpoint := cfg.OpenRouterEndpoint
	if endpoint == "" {
		endpoint = defaultOpenRouterEndpoint
	}
	return &Qwen{
		apiKey:   cfg.OpenRouterAPIKey,
		model:    model,
		endpoint: endpoint,
		client:   http.DefaultClient,
	}
}

func (q *Qwen) Name() string { return EngineQwen }

type qwenRequest struct {
	Model    string        `json:"model"`
	Messages []qwenMessage `json:"messages"`
}

type qwenMessage struct {
	Role    string        `json:"role"`
	Content []qwenContent `json:"content"`
}

type qwenContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *qwenImageURL `json:"image_url,omitempty"`
}

type qwenImageURL struct {
	URL string `json:"url"`
}

type qwenResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (q *Qwen) ExtractText(ctx context.Context, imagePath string) (string, []string, error) {
	b64, err := encodeImage(imagePath)
	if err != nil {
		return "", nil, err
	}
	req := qwenRequest{
		Model: q.model,
		Messages: []qwenMessage{{
			Role: "user",
			Content: []qwenContent{
				{Type: "text", Text: extractPrompt},
				{Type: "image_url", ImageURL: &qwenImageURL{URL: "data:image/png;base64," + b64}},
			},
		}},
	}
	var resp qwenResponse
	headers := map[string]string{"Authorization": "Bearer " + q.apiKey}
	if err := postJSON(ctx, q.client, q.endpoint, headers, req, &resp); err != nil {
		return "", nil, fmt.Errorf("qwen: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("qwen: %w: no choices in response", ErrEngineUnavailable)
	}
	fullText := resp.Choices[0].Message.Content
	return fullText, splitLines(fullText), nil
}
