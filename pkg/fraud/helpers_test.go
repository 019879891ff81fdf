package fraud

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

func splitImage(w, h int, vertical bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(20)
			if (vertical && x >= w/2) || (!vertical && y >= h/2) {
				v = 235
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func noiseImage(w, h int, seed int64) *image.Gray {
	r := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.Intn(256))
	}
	return img
}

func flatImage(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

// insertJPEGSegment places an APPn segment right after the SOI marker.
func insertJPEGSegment(jpg []byte, marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)
	out := append([]byte{}, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

// exifWithoutDimensions is a little-endian TIFF block whose only IFD0 entry
// is the camera make.
func exifWithoutDimensions() []byte {
	p := []byte("Exif\x00\x00")
	p = append(p, 'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00)
	p = append(p, 0x01, 0x00)
	p = append(p, 0x0F, 0x01, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 'A', 'B', 'C', 0x00)
	p = append(p, 0x00, 0x00, 0x00, 0x00)
	return p
}

func iccSegment(profile string) []byte {
	p := append([]byte{}, iccJPEGTag...)
	p = append(p, 1, 1)
	return append(p, profile...)
}

// pngHeader is a PNG signature and IHDR chunk declaring a w x h 8-bit
// grayscale image with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8
	chunk := append([]byte("IHDR"), ihdr...)
	out := []byte("\x89PNG\r\n\x1a\n")
	out = binary.BigEndian.AppendUint32(out, uint32(len(ihdr)))
	out = append(out, chunk...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(chunk))
}
