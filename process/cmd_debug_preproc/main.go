package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"loyalty/pkg/ocr"
)

// Writes the images Tesseract actually sees for a receipt photo, next to
// the input or into -out.
func main() {
	in := flag.String("img", "", "path to receipt image")
	out := flag.String("out", "", "output directory (default: next to the input)")
	flag.Parse()
	if *in == "" {
		log.Fatal("-img is required")
	}

	buf, err := os.ReadFile(*in)
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	enhanced, binarized, err := ocr.Preprocessed(buf)
	if err != nil {
		log.Fatalf("preprocess: %v", err)
	}

	dir := *out
	if dir == "" {
		dir = filepath.Dir(*in)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	for suffix, b := range map[string][]byte{"enhanced": enhanced, "binarized": binarized} {
		p := filepath.Join(dir, base+".ocr."+suffix+".png")
		if err := os.WriteFile(p, b, 0o644); err != nil {
			log.Fatalf("write %s: %v", p, err)
		}
		fmt.Printf("%s %d bytes\n", p, len(b))
	}
}
