package fraud

import (
	"encoding/hex"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/crypto/blake2b"
)

// CalculateImageHash reduces the image to an 8x8 grayscale thumbnail, sets
// one bit per pixel brighter than the thumbnail mean and digests the 64-bit
// pattern with BLAKE2b-256. Images sharing the thumbnail pattern always hash
// identically. Undecodable buffers are digested byte for byte so exact
// re-uploads still collide. The same holds for images over MaxImagePixels.
func CalculateImageHash(buf []byte) (string, error) {
	d, err := decodeImage(buf)
	return imageHash(buf, d, err)
}

func imageHash(buf []byte, d *decodedImage, err error) (string, error) {
	if err == ErrEmptyImage {
		return "", err
	}
	if err != nil {
		sum := blake2b.Sum256(buf)
		return hex.EncodeToString(sum[:]), nil
	}
	sum := blake2b.Sum256([]byte(meanHashBits(d)))
	return hex.EncodeToString(sum[:]), nil
}

func meanHashBits(d *decodedImage) string {
	thumb := imaging.Grayscale(imaging.Resize(d.img, 8, 8, imaging.Box))
	var px [64]float64
	var total float64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := float64(thumb.Pix[y*thumb.Stride+x*4])
			px[y*8+x] = v
			total += v
		}
	}
	mean := total / 64
	var sb strings.Builder
	for _, v := range px {
		if v > mean {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
