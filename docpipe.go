// Package docpipe extracts plain and lightly-structured text from
// heterogeneous document files.
//
// Supported formats:
//   - .doc          — legacy binary Word, via an ordered fallback chain
//   - .docx         — Microsoft Word (archive/zip → word/document.xml)
//   - .pdf          — PDF text extraction, page by page, with metadata
//   - .txt / .md    — plain text with encoding retry (utf-8, latin-1, cp1252)
//   - .jpg/.jpeg/.png/.webp — raster images, OCR with token confidence
//
// Every call returns one uniform Result envelope (format tag + content),
// with failed-attempt diagnostics on the side and the winning strategy name
// recorded for multi-strategy formats. Extraction never propagates a panic:
// anything unexpected inside a handler surfaces as a typed HandlerFault.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	res, err := pipe.Process(ctx, "/path/to/file.doc")
//	if err == nil {
//		json.NewEncoder(os.Stdout).Encode(res)
//	}
package docpipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"
)

// handlerFunc extracts one file of a known format.
type handlerFunc func(ctx context.Context, path string) (*Result, error)

// Pipeline is the document extraction engine. Safe for concurrent use:
// all extraction state is call-local.
type Pipeline struct {
	cfg      Config
	logger   *slog.Logger
	handlers map[Format]handlerFunc
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	p := &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
	p.handlers = map[Format]handlerFunc{
		FormatDOC:   p.extractDOC,
		FormatDocx:  p.extractDocx,
		FormatPDF:   p.extractPDF,
		FormatText:  p.extractText,
		FormatImage: p.extractImage,
	}
	return p
}

// Detect maps a file's extension to its format. The raw extension is echoed
// verbatim in the UnsupportedFormat error, case unchanged.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := filepath.Ext(path)
	switch strings.ToLower(ext) {
	case ".doc":
		return FormatDOC, nil
	case ".docx":
		return FormatDocx, nil
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".md":
		return FormatText, nil
	case ".jpg", ".jpeg", ".png", ".webp":
		return FormatImage, nil
	default:
		return "", newError(KindUnsupportedFormat, fmt.Sprintf("Unsupported file format: %s", ext))
	}
}

// Process extracts a document and returns the uniform result envelope.
//
// The file must exist before any handler is invoked; a missing path returns
// FileNotFound regardless of requested format. Diagnostics accumulated by
// the handler are logged here at debug level and left on the Result for
// callers that want them.
func (p *Pipeline) Process(ctx context.Context, path string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &Error{Kind: KindHandlerFault, Message: fmt.Sprintf("extraction failed: %v", r)}
		}
	}()

	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, newError(KindFileNotFound, "File not found")
		}
		return nil, faultf(statErr, "stat %s", path)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, faultf(nil, "file too large: %d bytes (max %d)", info.Size(), p.cfg.MaxFileSize)
	}

	format, err := p.Detect(path)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("extracting document", "path", path, "format", format)

	res, err = p.handlers[format](ctx, path)
	if err != nil {
		return nil, err
	}

	for _, d := range res.Diagnostics {
		p.logger.Debug("extraction diagnostic", "path", path, "format", format, "note", d)
	}
	if res.Method != "" {
		p.logger.Debug("extraction method", "path", path, "method", res.Method)
	}
	return res, nil
}

// SupportedFormats returns all supported format tags.
func SupportedFormats() []string {
	return []string{"doc", "docx", "pdf", "text", "image"}
}

// FormatInfo describes one supported format: the extensions it claims and
// the extraction methods that can serve it, in attempt order.
type FormatInfo struct {
	Format     string   `json:"format"`
	Extensions []string `json:"extensions"`
	Methods    []string `json:"methods"`
}

// FormatCapabilities returns the capability sheet for every supported
// format, in SupportedFormats order.
func FormatCapabilities() []FormatInfo {
	return []FormatInfo{
		{Format: "doc", Extensions: []string{".doc"},
			Methods: []string{"antiword", "markdown", "raw-text", "html", "raw-decode"}},
		{Format: "docx", Extensions: []string{".docx"},
			Methods: []string{"structured", "simple"}},
		{Format: "pdf", Extensions: []string{".pdf"},
			Methods: []string{"native-text"}},
		{Format: "text", Extensions: []string{".txt", ".md"},
			Methods: []string{"utf-8", "latin-1", "cp1252"}},
		{Format: "image", Extensions: []string{".jpg", ".jpeg", ".png", ".webp"},
			Methods: []string{"ocr"}},
	}
}
