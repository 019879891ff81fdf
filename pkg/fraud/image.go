package fraud

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"

	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyImage is returned for a zero-length image buffer.
	ErrEmptyImage = errors.New("empty image buffer")
	// ErrImageTooLarge is returned when the declared dimensions exceed
	// MaxImagePixels. The pixel data is never decoded.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

const (
	// MaxImagePixels bounds the decoded size of an upload.
	MaxImagePixels = 40_000_000

	// statistics are sampled on a grid once an image exceeds this many pixels
	maxStatPixels = 4_000_000
)

type decodedImage struct {
	img           image.Image
	format        string
	width, height int
	size          int
}

func decodeImage(buf []byte) (*decodedImage, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, ErrImageTooLarge
	}
	img, format, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &decodedImage{img: img, format: format, width: b.Dx(), height: b.Dy(), size: len(buf)}, nil
}

// decodeIndicator names a decode failure for the heuristics' indicator lists.
func decodeIndicator(err error) string {
	if errors.Is(err, ErrImageTooLarge) {
		return "image too large"
	}
	return "image could not be decoded"
}

func (d *decodedImage) megapixels() float64 {
	return float64(d.width*d.height) / 1e6
}

func (d *decodedImage) bytesPerPixel() float64 {
	if d.width == 0 || d.height == 0 {
		return 0
	}
	return float64(d.size) / float64(d.width*d.height)
}

// grayStdDev is the standard deviation of grayscale pixel intensity (0-255).
// Pixels are read in place, so no second full-size copy is allocated.
func grayStdDev(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	step := 1
	if px := w * h; px > maxStatPixels {
		step = int(math.Ceil(math.Sqrt(float64(px) / maxStatPixels)))
	}
	var sum, sumSq, n float64
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			v := float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
