package docpipe

import (
	"log/slog"
	"time"
)

// Config configures the extraction pipeline.
type Config struct {
	// MaxFileSize is the maximum file size to process (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// ConverterPath is the external legacy DOC converter binary
	// (default: "antiword", resolved via PATH).
	ConverterPath string `json:"converter_path" yaml:"converter_path"`

	// ConvertTimeout bounds one external converter invocation. The process
	// is killed on expiry and the attempt counts as a strategy failure
	// (default: 30s).
	ConvertTimeout time.Duration `json:"convert_timeout" yaml:"convert_timeout"`

	// DocxSimple switches the DOCX handler to simple mode: newline-joined
	// paragraph text instead of the structured decomposition.
	DocxSimple bool `json:"docx_simple" yaml:"docx_simple"`

	// OCRLanguage is the tesseract language code (default: "eng").
	OCRLanguage string `json:"ocr_language" yaml:"ocr_language"`

	// OCR overrides the engine used by the image handler. Defaults to the
	// gosseract-backed engine configured with OCRLanguage.
	OCR OCREngine `json:"-" yaml:"-"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.ConverterPath == "" {
		c.ConverterPath = "antiword"
	}
	if c.ConvertTimeout <= 0 {
		c.ConvertTimeout = 30 * time.Second
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = "eng"
	}
	if c.OCR == nil {
		c.OCR = &tesseractEngine{language: c.OCRLanguage}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
