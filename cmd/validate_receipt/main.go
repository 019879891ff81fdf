package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"loyalty/pkg/fraud"
	"loyalty/pkg/ocr"
	"loyalty/pkg/parser"
	"loyalty/pkg/settings"
)

// Runs OCR, field extraction, validation and the image fraud heuristics on a
// local file and prints what the pipeline would see. Nothing is persisted and
// duplicate lookups are skipped.
func main() {
	img := flag.String("img", "tmp/test.jpg", "receipt image to analyze")
	tin := flag.String("tin", "", "expected store TIN (optional)")
	lang := flag.String("lang", ocr.DefaultLanguage, "tesseract language")
	showText := flag.Bool("text", false, "print the raw OCR text")
	flag.Parse()

	p, _ := filepath.Abs(*img)
	buf, err := os.ReadFile(p)
	if err != nil {
		log.Fatalf("read image: %v", err)
	}
	fmt.Printf("Analyzing %s (%d bytes)\n", p, len(buf))

	ctx := context.Background()
	text, err := ocr.NewTesseractClient(ocr.Options{Language: *lang}, nil).ExtractText(ctx, buf)
	if err != nil {
		log.Fatalf("ocr: %v", err)
	}
	if *showText {
		fmt.Println("---- OCR text ----")
		fmt.Println(text)
		fmt.Println("------------------")
	}
	fmt.Printf("looks like receipt: %v\n", ocr.LooksLikeReceipt(text))

	parsed := parser.ParseReceiptText(text)
	defaults := settings.Defaults()
	rules := settings.EffectiveRules(defaults, nil)
	vr := parser.ValidateParsedReceipt(parsed, parser.Rules{
		ExpectedTIN: *tin,
		MinAmount:   decimal.NullDecimal{Decimal: rules.MinAmount, Valid: true},
		MaxAgeDays:  rules.MaxAgeDays(),
	}, time.Now().UTC())

	score, err := fraud.NewAnalyzer(nil, nil).CalculateFraudScore(ctx, fraud.Input{
		Image:       buf,
		InvoiceNo:   parsed.InvoiceNo,
		BarcodeData: parsed.BarcodeData,
	})
	if err != nil {
		log.Fatalf("fraud: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]interface{}{
		"parsed":     parsed,
		"valid":      vr.Valid,
		"reason":     vr.Reason(),
		"warnings":   vr.Warnings,
		"fraud":      score,
		"tampering":  score.Tampering,
		"aiDetected": score.AIDetection,
	})
}
