package ocr

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Engine variant names accepted at submission time.
const (
	EngineGemini    = "gemini"
	EngineTesseract = "tesseract"
	EnginePaddle    = "paddle"
	EngineQwen      = "qwen"
	EngineSurya     = "surya"
)

// Engine is the capability contract every backend implements. Lines always
// equals the full text split on newline boundaries; callers rely on that
// equivalence.
type Engine interface {
	Name() string
	ExtractText(ctx context.Context, imagePath string) (fullText string, lines []string, err error)
}

// Config carries backend credentials and endpoints. Zero values leave the
// corresponding variant unable to run; it then fails with
// ErrEngineUnavailable when selected.
type Config struct {
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	GeminiModel    string `mapstructure:"gemini_model"`
	GeminiEndpoint string `mapstructure:"gemini_endpoint"`

	OpenRouterAPIKey   string `mapstructure:"openrouter_api_key"`
	QwenModel          string `mapstructure:"qwen_model"`
	OpenRouterEndpoint string `mapstructure:"openrouter_endpoint"`

	SuryaEndpoint string `mapstructure:"surya_endpoint"`

	TesseractLang string `mapstructure:"tesseract_lang"`

	PaddleModelPath string `mapstructure:"paddle_model_path"`
	PaddleDictPath  string `mapstructure:"paddle_dict_path"`
}

// Registry resolves engine names to variants. The variant set is fixed at
// construction; resolution is a table lookup, not dynamic dispatch on
// strings scattered through the pipeline.
type Registry struct {
	engines  map[string]Engine
	fallback Engine
	log      *zap.Logger
}

// NewRegistry builds the five-variant table. Tesseract is the fallback for
// unknown names.
func NewRegistry(cfg Config, log *zap.Logger) *Registry {
	tess := NewTesseract(cfg.TesseractLang)
	r := &Registry{
		engines: map[string]Engine{
			EngineGemini:    NewGemini(cfg),
			EngineQwen:      NewQwen(cfg),
			EngineSurya:     NewSurya(cfg),
			EngineTesseract: tess,
			EnginePaddle:    NewPaddle(cfg),
		},
		fallback: tess,
		log:      log,
	}
	return r
}

// Resolve returns the variant for name. Unknown names fall back to the
// default local variant; that fallback is intentional and logged rather than
// rejected, so a stale client keeps working.
func (r *Registry) Resolve(name string) Engine {
	if e, ok := r.engines[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e
	}
	r.log.Warn("unknown ocr engine, falling back to default",
		zap.String("requested", name),
		zap.String("fallback", r.fallback.Name()))
	return r.fallback
}

// splitLines derives the line sequence from a full text block. Every engine
// returns lines produced by this helper so the contract holds uniformly.
func splitLines(fullText string) []string {
	return strings.Split(fullText, "\n")
}
