package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"
)

const (
	// paddleMaxImageSize is the input size ceiling; larger pages are
	// downsampled preserving aspect ratio before recognition.
	paddleMaxImageSize = 3000
	// paddleLineHeight is the fixed input height of the recognition model.
	paddleLineHeight = 48
	minLineBandPx    = 8
)

// Paddle runs local recognition with a PP-OCR compatible ONNX model. It
// performs its own layout normalization (line-band segmentation plus
// per-line contrast scaling), so the handwriting preprocessor is skipped
// for it.
type Paddle struct {
	modelPath string
	dictPath  string

	once    sync.Once
	initErr error
	session *onnxrt.DynamicAdvancedSession
	charset []string
}

func NewPaddle(cfg Config) *Paddle {
	return &Paddle{
		modelPath: cfg.PaddleModelPath,
		dictPath:  cfg.PaddleDictPath,
	}
}

func (p *Paddle) Name() string { return EnginePaddle }

// initSession lazily loads the dictionary and creates the ONNX session. The
// session is shared across pages; onnxruntime sessions are safe for
// concurrent Run calls.
func (p *Paddle) initSession() error {
	p.once.Do(func() {
		if p.modelPath == "" || p.dictPath == "" {
			p.initErr = fmt.Errorf("%w: paddle model or dictionary path not configured", ErrEngineUnavailable)
			return
		}
		dict, err := os.ReadFile(p.dictPath)
		if err != nil {
			p.initErr = fmt.Errorf("%w: read dictionary: %v", ErrEngineUnavailable, err)
			return
		}
		p.charset = strings.Split(strings.TrimRight(string(dict), "\n"), "\n")

		if !onnxrt.IsInitialized() {
			if err := onnxrt.InitializeEnvironment(); err != nil {
				p.initErr = fmt.Errorf("%w: initialize onnxruntime: %v", ErrEngineUnavailable, err)
				return
			}
		}
		inputs, outputs, err := onnxrt.GetInputOutputInfo(p.modelPath)
		if err != nil {
			p.initErr = fmt.Errorf("%w: model info: %v", ErrEngineUnavailable, err)
			return
		}
		if len(inputs) != 1 || len(outputs) != 1 {
			p.initErr = fmt.Errorf("%w: expected single-input single-output model, got %d/%d",
				ErrEngineUnavailable, len(inputs), len(outputs))
			return
		}
		session, err := onnxrt.NewDynamicAdvancedSession(
			p.modelPath,
			[]string{inputs[0].Name},
			[]string{outputs[0].Name},
			nil,
		)
		if err != nil {
			p.initErr = fmt.Errorf("%w: create onnx session: %v", ErrEngineUnavailable, err)
			return
		}
		p.session = session
	})
	return p.initErr
}

func (p *Paddle) ExtractText(ctx context.Context, imagePath string) (string, []string, error) {
	if err := p.initSession(); err != nil {
		return "", nil, err
	}
	img, err := imaging.Open(imagePath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: paddle open image: %v", ErrEngineUnavailable, err)
	}
	b := img.Bounds()
	if b.Dx() > paddleMaxImageSize || b.Dy() > paddleMaxImageSize {
		img = imaging.Fit(img, paddleMaxImageSize, paddleMaxImageSize, imaging.Lanczos)
	}

	gray := imaging.Grayscale(img)
	bands := lineBands(gray)
	var parts []string
	for _, band := range bands {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		line := imaging.Crop(gray, band)
		text, err := p.recognizeLine(line)
		if err != nil {
			return "", nil, err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	fullText := strings.Join(parts, "\n")
	return fullText, splitLines(fullText), nil
}

// recognizeLine runs one text band through the recognition model and
// decodes the CTC output greedily.
func (p *Paddle) recognizeLine(line *image.NRGBA) (string, error) {
	resized := imaging.Resize(line, 0, paddleLineHeight, imaging.Lanczos)
	w := resized.Bounds().Dx()
	if w < minLineBandPx {
		return "", nil
	}
	h := paddleLineHeight

	// NCHW float tensor, channels normalized to [-1, 1].
	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, _ := resized.At(x, y).RGBA()
			data[0*h*w+y*w+x] = float32(r>>8)/127.5 - 1.0
			data[1*h*w+y*w+x] = float32(g>>8)/127.5 - 1.0
			data[2*h*w+y*w+x] = float32(bb>>8)/127.5 - 1.0
		}
	}
	inputTensor, err := onnxrt.NewTensor(onnxrt.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return "", fmt.Errorf("%w: create input tensor: %v", ErrEngineUnavailable, err)
	}
	defer func() { _ = inputTensor.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := p.session.Run([]onnxrt.Value{inputTensor}, outputs); err != nil {
		return "", fmt.Errorf("%w: paddle inference: %v", ErrEngineUnavailable, err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()
	out, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return "", fmt.Errorf("%w: unexpected output tensor type %T", ErrEngineUnavailable, outputs[0])
	}
	return p.decodeCTC(out.GetData(), out.GetShape()), nil
}

// decodeCTC collapses the [1, T, C] logits greedily: argmax per timestep,
// drop blanks (class 0) and repeats, map class i to charset[i-1].
func (p *Paddle) decodeCTC(logits []float32, shape onnxrt.Shape) string {
	if len(shape) != 3 {
		return ""
	}
	steps := int(shape[1])
	classes := int(shape[2])
	var sb strings.Builder
	prev := 0
	for t := 0; t < steps; t++ {
		row := logits[t*classes : (t+1)*classes]
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		if best != 0 && best != prev && best-1 < len(p.charset) {
			sb.WriteString(p.charset[best-1])
		}
		prev = best
	}
	return sb.String()
}

// lineBands segments a grayscale page into horizontal text bands using a
// row ink-density projection. A page with no detectable bands is treated as
// a single band.
func lineBands(gray *image.NRGBA) []image.Rectangle {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	minInk := w / 100
	if minInk < 2 {
		minInk = 2
	}

	inked := make([]bool, h)
	for y := 0; y < h; y++ {
		count := 0
		for x := 0; x < w; x++ {
			r, _, _, _ := gray.At(x, y).RGBA()
			if uint8(r>>8) < 128 {
				count++
			}
		}
		inked[y] = count >= minInk
	}

	var bands []image.Rectangle
	start := -1
	for y := 0; y < h; y++ {
		switch {
		case inked[y] && start < 0:
			start = y
		case !inked[y] && start >= 0:
			if y-start >= minLineBandPx {
				bands = append(bands, image.Rect(0, start, w, y))
			}
			start = -1
		}
	}
	if start >= 0 && h-start >= minLineBandPx {
		bands = append(bands, image.Rect(0, start, w, h))
	}
	if len(bands) == 0 {
		bands = append(bands, image.Rect(0, 0, w, h))
	}
	return bands
}
