package fraud

import (
	"bytes"
	"math"
)

const (
	aiStdDevMin        = 10
	aiStdDevMax        = 80
	aiAspectTolerance  = 0.01
	aiAspectMinSignals = 30

	weightAIProfile = 40
	weightAIStdDev  = 15
	weightAIAspect  = 10
)

// generator names looked for inside embedded color profiles
var aiToolSignatures = []string{
	"midjourney",
	"dall-e",
	"dalle",
	"stable diffusion",
	"stablediffusion",
	"openai",
	"adobe firefly",
	"firefly",
	"leonardo",
	"novelai",
}

const goldenRatio = 1.6180339887

// square and golden-ratio frames in either orientation
var aiAspectRatios = []float64{1, goldenRatio, 1 / goldenRatio}

type AIDetectionDetails struct {
	ICCProfileFound bool    `json:"iccProfileFound"`
	MatchedTool     string  `json:"matchedTool,omitempty"`
	StdDev          float64 `json:"stdDev"`
	AspectRatio     float64 `json:"aspectRatio"`
}

type AIDetectionResult struct {
	Probability int                `json:"probability"`
	Indicators  []string           `json:"indicators"`
	Details     AIDetectionDetails `json:"details"`
}

// DetectAIGeneratedImage estimates how likely the image came from an image
// generator. The aspect-ratio signal only counts once other signals already
// pushed the estimate past 30.
func DetectAIGeneratedImage(buf []byte) AIDetectionResult {
	d, err := decodeImage(buf)
	return detectAIGenerated(buf, d, err)
}

func detectAIGenerated(buf []byte, d *decodedImage, err error) AIDetectionResult {
	res := AIDetectionResult{Indicators: []string{}}
	if err != nil {
		res.Indicators = append(res.Indicators, decodeIndicator(err))
		return res
	}

	if profile := extractICCProfile(buf); len(profile) > 0 {
		res.Details.ICCProfileFound = true
		if tool := matchAITool(profile); tool != "" {
			res.Details.MatchedTool = tool
			res.Probability += weightAIProfile
			res.Indicators = append(res.Indicators, "color profile names image generator: "+tool)
		}
	}

	sd := grayStdDev(d.img)
	res.Details.StdDev = sd
	if sd < aiStdDevMin || sd > aiStdDevMax {
		res.Probability += weightAIStdDev
		res.Indicators = append(res.Indicators, "pixel intensity variation atypical for a photo")
	}

	if d.height > 0 {
		ratio := float64(d.width) / float64(d.height)
		res.Details.AspectRatio = ratio
		if res.Probability > aiAspectMinSignals && isGeneratorAspect(ratio) {
			res.Probability += weightAIAspect
			res.Indicators = append(res.Indicators, "square or golden-ratio aspect")
		}
	}

	if res.Probability > 100 {
		res.Probability = 100
	}
	return res
}

// matchAITool searches the profile bytes case-insensitively. NUL bytes are
// dropped first so UTF-16 description tags match as well.
func matchAITool(profile []byte) string {
	text := bytes.ToLower(bytes.ReplaceAll(profile, []byte{0}, nil))
	for _, sig := range aiToolSignatures {
		if bytes.Contains(text, []byte(sig)) {
			return sig
		}
	}
	return ""
}

func isGeneratorAspect(ratio float64) bool {
	for _, r := range aiAspectRatios {
		if math.Abs(ratio-r) <= aiAspectTolerance {
			return true
		}
	}
	return false
}
