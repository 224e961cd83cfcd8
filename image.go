package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"

	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// OCRToken is one recognised word with its confidence score (0..100, or -1
// when the engine did not score it).
type OCRToken struct {
	Text       string
	Confidence float64
}

// OCRResult is the output of one engine pass: the full recognised text plus
// the token-level detail used for confidence scoring. The two views come
// from separate engine passes and may disagree.
type OCRResult struct {
	Text   string
	Tokens []OCRToken
}

// OCREngine recognises text in an encoded image. Implementations receive
// image bytes in a format the engine accepts (PNG after any color
// conversion, original bytes otherwise).
type OCREngine interface {
	Recognize(ctx context.Context, img []byte) (OCRResult, error)
}

// tesseractEngine is the default OCREngine, backed by gosseract.
type tesseractEngine struct {
	language string
}

func (t *tesseractEngine) Recognize(ctx context.Context, img []byte) (OCRResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if t.language != "" {
		if err := client.SetLanguage(t.language); err != nil {
			return OCRResult{}, fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return OCRResult{}, fmt.Errorf("load image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return OCRResult{}, fmt.Errorf("token pass: %w", err)
	}
	tokens := make([]OCRToken, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, OCRToken{Text: b.Word, Confidence: b.Confidence})
	}

	// Separate full-text pass: token assembly and plain recognition use
	// different tesseract code paths and can produce different text.
	text, err := client.Text()
	if err != nil {
		return OCRResult{}, fmt.Errorf("text pass: %w", err)
	}
	return OCRResult{Text: text, Tokens: tokens}, nil
}

// extractImage validates the image, normalizes its pixel format for the OCR
// engine, and runs recognition. An engine failure is non-fatal: the result
// still succeeds with a nil ExtractedText and zero confidence, and the
// failure lands in the diagnostics.
func (p *Pipeline) extractImage(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faultf(err, "read %s", path)
	}

	cfg, formatName, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, faultf(err, "decode image %s", path)
	}

	content := ImageContent{
		Format: formatName,
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	var diagnostics []string
	prepared, note, err := prepareForOCR(data)
	if err != nil {
		return nil, faultf(err, "prepare image %s", path)
	}
	if note != "" {
		diagnostics = append(diagnostics, note)
	}

	ocr, err := p.cfg.OCR.Recognize(ctx, prepared)
	if err != nil {
		diagnostics = append(diagnostics, fmt.Sprintf("ocr failed: %v", err))
		return &Result{
			Format:      FormatImage,
			Content:     content,
			Diagnostics: diagnostics,
		}, nil
	}

	text := ocr.Text
	content.ExtractedText = &text
	content.OCRConfidence = averageConfidence(ocr.Tokens)

	return &Result{
		Format:      FormatImage,
		Content:     content,
		Diagnostics: diagnostics,
	}, nil
}

// prepareForOCR re-encodes the image as RGBA PNG when its pixel format is
// neither grayscale nor RGB-family, which tesseract cannot ingest directly.
// Images already in an acceptable format pass through untouched.
func prepareForOCR(data []byte) (prepared []byte, note string, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}

	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.RGBA, *image.NRGBA,
		*image.RGBA64, *image.NRGBA64, *image.YCbCr:
		return data, "", nil
	}

	// Paletted, CMYK and friends: flatten to NRGBA.
	bounds := img.Bounds()
	converted := image.NewNRGBA(bounds)
	draw.Draw(converted, bounds, img, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, converted); err != nil {
		return nil, "", fmt.Errorf("re-encode: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("converted %T to rgb for ocr", img), nil
}

// averageConfidence averages token confidences over tokens whose trimmed
// text is non-empty and whose confidence is not the -1 "not scored"
// sentinel; excluded tokens count in neither numerator nor denominator.
// The result is rounded to 2 decimals; 0 with no valid tokens.
func averageConfidence(tokens []OCRToken) float64 {
	sum := 0.0
	n := 0
	for _, t := range tokens {
		if strings.TrimSpace(t.Text) == "" || t.Confidence == -1 {
			continue
		}
		sum += t.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}
