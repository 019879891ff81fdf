package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	minOCRHeight    = 900
	targetOCRHeight = 1300

	// MaxImagePixels bounds the decoded size of an uploaded image.
	MaxImagePixels = 40_000_000
)

func decode(buf []byte) (image.Image, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// enhance applies grayscale, contrast and sharpening, and upscales short
// images so Tesseract sees glyphs at a usable size.
func enhance(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < minOCRHeight {
		gray = imaging.Resize(gray, 0, targetOCRHeight, imaging.Lanczos)
	}
	return gray
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func preprocess(buf []byte) ([]byte, error) {
	img, err := decode(buf)
	if err != nil {
		return nil, err
	}
	return encodePNG(enhance(img))
}

// preprocessBinarized adds an adaptive threshold and a one-pixel dilation,
// which recovers faint thermal-printer text.
func preprocessBinarized(buf []byte) ([]byte, error) {
	img, err := decode(buf)
	if err != nil {
		return nil, err
	}
	out := dilate(adaptiveThreshold(enhance(img), 15, 7), 1)
	return encodePNG(out)
}

var (
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

// adaptiveThreshold marks a pixel black when it is darker than the mean of
// its window minus bias. Input must be grayscale with origin (0,0).
func adaptiveThreshold(gray *image.NRGBA, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	out := imaging.New(w, h, white)
	half := window / 2
	integral := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(gray.Pix[y*gray.Stride+x*4])
			idx := y*w + x
			if y == 0 {
				integral[idx] = rowSum
			} else {
				integral[idx] = integral[idx-w] + rowSum
			}
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return integral[y*w+x]
	}
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half, w-1)
			sum := at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			if int(gray.Pix[y*gray.Stride+x*4]) < mean-bias {
				out.SetNRGBA(x, y, black)
			}
		}
	}
	return out
}

// dilate grows black pixels into their 4-neighbourhood radius times.
func dilate(img *image.NRGBA, radius int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	cur := img
	for r := 0; r < radius; r++ {
		next := imaging.Clone(cur)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if cur.Pix[y*cur.Stride+x*4] != 0 {
					continue
				}
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					x2, y2 := x+d[0], y+d[1]
					if x2 >= 0 && y2 >= 0 && x2 < w && y2 < h {
						next.SetNRGBA(x2, y2, black)
					}
				}
			}
		}
		cur = next
	}
	return cur
}

// Preprocessed returns the two images the client feeds to Tesseract: the
// enhanced grayscale pass and the binarized fallback, both PNG encoded.
func Preprocessed(buf []byte) (enhanced, binarized []byte, err error) {
	if enhanced, err = preprocess(buf); err != nil {
		return nil, nil, err
	}
	if binarized, err = preprocessBinarized(buf); err != nil {
		return nil, nil, err
	}
	return enhanced, binarized, nil
}
