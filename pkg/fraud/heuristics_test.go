package fraud

import (
	"errors"
	"strings"
	"testing"
)

func hasIndicator(list []string, part string) bool {
	for _, s := range list {
		if strings.Contains(s, part) {
			return true
		}
	}
	return false
}

func TestDetectImageTamperingCleanPhoto(t *testing.T) {
	res := DetectImageTampering(encodePNG(t, noiseImage(120, 90, 1)))
	if res.Score != 0 {
		t.Fatalf("expected 0, got %d (%v)", res.Score, res.Indicators)
	}
	if res.Details.Width != 120 || res.Details.Height != 90 || res.Details.Format != "png" {
		t.Fatalf("unexpected details: %+v", res.Details)
	}
}

func TestDetectImageTamperingFlatImage(t *testing.T) {
	res := DetectImageTampering(encodePNG(t, flatImage(100, 100, 255)))
	if res.Score != weightTamperStdDev {
		t.Fatalf("expected %d, got %d", weightTamperStdDev, res.Score)
	}
	if !hasIndicator(res.Indicators, "intensity") {
		t.Fatalf("missing stddev indicator: %v", res.Indicators)
	}
}

func TestDetectImageTamperingEXIFWithoutDimensions(t *testing.T) {
	jpg := insertJPEGSegment(encodeJPEG(t, noiseImage(100, 80, 2)), 0xE1, exifWithoutDimensions())
	res := DetectImageTampering(jpg)
	if !res.Details.HasEXIF {
		t.Fatalf("exif block not detected")
	}
	if res.Score != weightEXIFNoDims {
		t.Fatalf("expected %d, got %d (%v)", weightEXIFNoDims, res.Score, res.Indicators)
	}
}

func TestDetectImageTamperingUndecodable(t *testing.T) {
	res := DetectImageTampering([]byte("nope"))
	if res.Score != 0 || len(res.Indicators) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOversizedImageIsNotDecoded(t *testing.T) {
	buf := pngHeader(12000, 12000)
	if _, err := decodeImage(buf); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
	tr := DetectImageTampering(buf)
	if tr.Score != 0 || !hasIndicator(tr.Indicators, "image too large") {
		t.Fatalf("unexpected tampering result %+v", tr)
	}
	ar := DetectAIGeneratedImage(buf)
	if ar.Probability != 0 || !hasIndicator(ar.Indicators, "image too large") {
		t.Fatalf("unexpected ai result %+v", ar)
	}
	h, err := CalculateImageHash(buf)
	if err != nil || len(h) != 64 {
		t.Fatalf("expected a raw digest, got %q %v", h, err)
	}
}

func TestDecodeImageWithinLimit(t *testing.T) {
	d, err := decodeImage(encodePNG(t, flatImage(400, 300, 90)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.width != 400 || d.height != 300 {
		t.Fatalf("unexpected size %dx%d", d.width, d.height)
	}
}

func TestDetectAIGeneratedImageICCProfile(t *testing.T) {
	jpg := insertJPEGSegment(encodeJPEG(t, noiseImage(100, 100, 3)), 0xE2, iccSegment("desc Created with MidJourney v6"))
	if got := string(extractICCProfile(jpg)); !strings.Contains(got, "MidJourney") {
		t.Fatalf("profile not extracted: %q", got)
	}
	res := DetectAIGeneratedImage(jpg)
	if res.Details.MatchedTool != "midjourney" {
		t.Fatalf("tool not matched: %+v", res.Details)
	}
	// +40 profile, square frame adds +10 once past 30
	if res.Probability != weightAIProfile+weightAIAspect {
		t.Fatalf("expected %d, got %d (%v)", weightAIProfile+weightAIAspect, res.Probability, res.Indicators)
	}
}

func TestDetectAIGeneratedImageAspectNeverAlone(t *testing.T) {
	res := DetectAIGeneratedImage(encodePNG(t, flatImage(100, 100, 128)))
	if res.Probability != weightAIStdDev {
		t.Fatalf("expected only the stddev signal, got %d (%v)", res.Probability, res.Indicators)
	}
}

func TestMatchAIToolUTF16(t *testing.T) {
	utf16 := []byte{0, 'D', 0, 'A', 0, 'L', 0, 'L', 0, '-', 0, 'E'}
	if got := matchAITool(utf16); got != "dall-e" {
		t.Fatalf("expected dall-e, got %q", got)
	}
	if got := matchAITool([]byte("sRGB IEC61966-2.1")); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestWebPICC(t *testing.T) {
	buf := []byte("RIFF\x00\x00\x00\x00WEBP")
	buf = append(buf, 'V', 'P', '8', 'X', 10, 0, 0, 0)
	buf = append(buf, make([]byte, 10)...)
	buf = append(buf, 'I', 'C', 'C', 'P', 9, 0, 0, 0)
	buf = append(buf, []byte("firefly!!")...)
	buf = append(buf, 0)
	if got := string(extractICCProfile(buf)); got != "firefly!!" {
		t.Fatalf("unexpected profile %q", got)
	}
}
