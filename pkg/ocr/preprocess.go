package ocr

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ruledLineKernelWidth is the width of the thin horizontal kernel used to
// detect ruled notebook lines. Ink strokes are much narrower than this, so
// they survive the opening.
const ruledLineKernelWidth = 40

// PreprocessHandwriting cleans a handwritten notebook page for recognition:
// grayscale, polarity inversion, Otsu global threshold, removal of long
// horizontal structures (ruled lines) via morphological opening with a wide
// thin kernel, subtraction of the line mask, and re-inversion. The input
// file is never modified; the cleaned page is written next to it with a
// _processed suffix and its path returned.
func PreprocessHandwriting(imagePath string) (string, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	gray := imaging.Grayscale(img)
	inv := imaging.Invert(gray)

	b := inv.Bounds()
	w, h := b.Dx(), b.Dy()
	threshold := otsuThreshold(inv)

	// Binary ink mask on the inverted image: bright pixels are ink.
	ink := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := inv.At(x, y).RGBA()
			ink[y*w+x] = uint8(r>>8) > threshold
		}
	}

	lines := openHorizontal(ink, w, h, ruledLineKernelWidth, 2)

	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ink[y*w+x] && !lines[y*w+x] {
				out.Set(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}

	ext := filepath.Ext(imagePath)
	processedPath := strings.TrimSuffix(imagePath, ext) + "_processed.png"
	if err := imaging.Save(out, processedPath); err != nil {
		return "", fmt.Errorf("save processed image: %w", err)
	}
	return processedPath, nil
}

// otsuThreshold computes the global threshold minimizing intra-class
// variance over the luminance histogram.
func otsuThreshold(img image.Image) uint8 {
	b := img.Bounds()
	var hist [256]int
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			hist[uint8(r>>8)]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}
	var sumB, wB float64
	var maxVar float64
	var best uint8
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		v := wB * wF * (mB - mF) * (mB - mF)
		if v > maxVar {
			maxVar = v
			best = uint8(t)
		}
	}
	return best
}

// openHorizontal performs a morphological opening with a 1-pixel-tall
// kernel of the given width: erode then dilate, each applied iterations
// times. Only structures at least kernel-width wide survive.
func openHorizontal(mask []bool, w, h, width, iterations int) []bool {
	cur := mask
	for i := 0; i < iterations; i++ {
		cur = erodeH(cur, w, h, width)
	}
	for i := 0; i < iterations; i++ {
		cur = dilateH(cur, w, h, width)
	}
	return cur
}

func erodeH(mask []bool, w, h, width int) []bool {
	half := width / 2
	out := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			keep := true
			for dx := -half; dx <= half; dx++ {
				x2 := x + dx
				if x2 < 0 || x2 >= w || !mask[y*w+x2] {
					keep = false
					break
				}
			}
			out[y*w+x] = keep
		}
	}
	return out
}

func dilateH(mask []bool, w, h, width int) []bool {
	half := width / 2
	out := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			set := false
			for dx := -half; dx <= half; dx++ {
				x2 := x + dx
				if x2 >= 0 && x2 < w && mask[y*w+x2] {
					set = true
					break
				}
			}
			out[y*w+x] = set
		}
	}
	return out
}
