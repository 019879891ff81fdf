package ocr

import "errors"

var (
	// ErrUnavailable means the OCR engine could not run at all (missing
	// tessdata, language load failure, timeout).
	ErrUnavailable = errors.New("ocr engine unavailable")
	// ErrEmptyImage is returned for an empty image buffer.
	ErrEmptyImage = errors.New("empty image")
	// ErrImageTooLarge is returned before decoding when the declared
	// dimensions exceed MaxImagePixels.
	ErrImageTooLarge = errors.New("image dimensions too large")
)
