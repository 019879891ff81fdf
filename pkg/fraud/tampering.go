package fraud

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	compressionMinFileSize      = 50 * 1024
	compressionMinBytesPerPixel = 0.05
	upscaleMinMegapixels        = 10
	upscaleMaxBytesPerMegapixel = 100 * 1024
	tamperStdDevMin             = 10
	tamperStdDevMax             = 100

	weightCompression  = 20
	weightEXIFNoDims   = 15
	weightUpscaled     = 25
	weightTamperStdDev = 15
)

type TamperingDetails struct {
	Format        string  `json:"format"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FileSize      int     `json:"fileSize"`
	BytesPerPixel float64 `json:"bytesPerPixel"`
	HasEXIF       bool    `json:"hasExif"`
	StdDev        float64 `json:"stdDev"`
}

type TamperingResult struct {
	Score      int              `json:"score"`
	Indicators []string         `json:"indicators"`
	Details    TamperingDetails `json:"details"`
}

// DetectImageTampering adds up four independent heuristics, capped at 100.
func DetectImageTampering(buf []byte) TamperingResult {
	d, err := decodeImage(buf)
	return detectTampering(buf, d, err)
}

func detectTampering(buf []byte, d *decodedImage, err error) TamperingResult {
	res := TamperingResult{Indicators: []string{}}
	if err != nil {
		res.Indicators = append(res.Indicators, decodeIndicator(err))
		return res
	}
	res.Details = TamperingDetails{
		Format:        d.format,
		Width:         d.width,
		Height:        d.height,
		FileSize:      d.size,
		BytesPerPixel: d.bytesPerPixel(),
	}
	add := func(weight int, indicator string) {
		res.Score += weight
		res.Indicators = append(res.Indicators, indicator)
	}

	if d.format == "jpeg" && d.size > compressionMinFileSize && d.bytesPerPixel() < compressionMinBytesPerPixel {
		add(weightCompression, "unusual JPEG compression ratio")
	}

	if x, err := exif.Decode(bytes.NewReader(buf)); err == nil {
		res.Details.HasEXIF = true
		if !exifHasDimensions(x) {
			add(weightEXIFNoDims, "EXIF metadata without image dimensions")
		}
	}

	if mp := d.megapixels(); mp > upscaleMinMegapixels && float64(d.size)/mp < upscaleMaxBytesPerMegapixel {
		add(weightUpscaled, "resolution suggests upscaling")
	}

	sd := grayStdDev(d.img)
	res.Details.StdDev = sd
	if sd < tamperStdDevMin || sd > tamperStdDevMax {
		add(weightTamperStdDev, "pixel intensity variation out of range")
	}

	if res.Score > 100 {
		res.Score = 100
	}
	return res
}

func exifHasDimensions(x *exif.Exif) bool {
	_, errX := x.Get(exif.PixelXDimension)
	_, errY := x.Get(exif.PixelYDimension)
	if errX == nil && errY == nil {
		return true
	}
	_, errW := x.Get(exif.ImageWidth)
	_, errL := x.Get(exif.ImageLength)
	return errW == nil && errL == nil
}
