// Package ocr turns receipt photos into text with Tesseract.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// Client extracts text from an encoded image.
type Client interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

const (
	DefaultTimeout  = 30 * time.Second
	DefaultLanguage = "eng"
	// a first pass shorter than this gets a second, binarized pass
	minFirstPassLength = 50
)

type Options struct {
	Language       string
	TessdataPrefix string
	Timeout        time.Duration
}

// TesseractClient runs gosseract on preprocessed images. Each call uses its
// own engine instance so the client is safe for concurrent use.
type TesseractClient struct {
	opts   Options
	logger *zap.Logger
}

func NewTesseractClient(opts Options, logger *zap.Logger) *TesseractClient {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TesseractClient{opts: opts, logger: logger}
}

type ocrResult struct {
	text string
	err  error
}

// ExtractText returns the recognised text with line breaks preserved. A
// timeout or engine initialisation failure wraps ErrUnavailable.
func (c *TesseractClient) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	done := make(chan ocrResult, 1)
	go func() {
		text, err := c.run(image)
		done <- ocrResult{text, err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s", ErrUnavailable, c.opts.Timeout)
		}
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func (c *TesseractClient) run(image []byte) (string, error) {
	first, err := preprocess(image)
	if err != nil {
		return "", fmt.Errorf("preprocess: %w", err)
	}
	text, err := c.recognize(first)
	if err != nil {
		return "", err
	}
	if len(text) >= minFirstPassLength {
		return text, nil
	}
	second, err := preprocessBinarized(image)
	if err != nil {
		return text, nil
	}
	alt, err := c.recognize(second)
	if err != nil {
		c.logger.Warn("ocr second pass failed", zap.Error(err))
		return text, nil
	}
	c.logger.Debug("ocr second pass",
		zap.Int("first_len", len(text)),
		zap.Int("second_len", len(alt)),
		zap.String("snippet", snippet(alt, 120)))
	if len(alt) > len(text) {
		return alt, nil
	}
	return text, nil
}

func (c *TesseractClient) recognize(png []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if c.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(c.opts.TessdataPrefix); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := client.SetLanguage(c.opts.Language); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("ocr set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		if isInitError(err) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", fmt.Errorf("ocr: %w", err)
	}
	return cleanText(text), nil
}

func isInitError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "initialize tessbaseapi") || strings.Contains(s, "couldn't load any languages") || strings.Contains(s, "tessdata")
}
