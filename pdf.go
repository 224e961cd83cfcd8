package docpipe

import (
	"context"
	"fmt"
	"os"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// infoKeys are the standard Info dictionary entries surfaced as metadata.
var infoKeys = []string{
	"Title", "Author", "Subject", "Keywords",
	"Creator", "Producer", "CreationDate", "ModDate",
}

// extractPDF reads document metadata and per-page text, one string per page
// in page order. Blank pages stay as empty strings; only a fully blank
// document is an error. A corrupt file at open time is a handler fault.
func (p *Pipeline) extractPDF(ctx context.Context, path string) (*Result, error) {
	f, r, err := pdfreader.Open(path)
	if err != nil {
		return nil, faultf(err, "open PDF %s", path)
	}
	defer f.Close()

	var diagnostics []string

	pages := make([]string, 0, r.NumPage())
	blank := true
	for i := 1; i <= r.NumPage(); i++ {
		text, err := pdfPageText(r, i)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("page %d: %v", i, err))
			text = ""
		}
		if strings.TrimSpace(text) != "" {
			blank = false
		}
		pages = append(pages, text)
	}
	if blank {
		return nil, newError(KindEmptyDocument, "No text content found in PDF file")
	}

	diagnostics = append(diagnostics, p.pdfQualityNotes(path, pages)...)

	return &Result{
		Format: FormatPDF,
		Content: PDFContent{
			Metadata: pdfMetadata(r),
			Pages:    pages,
		},
		Diagnostics: diagnostics,
	}, nil
}

// pdfPageText extracts one page's plain text. The reader panics on some
// malformed content streams; a panic degrades to a per-page diagnostic.
func pdfPageText(r *pdfreader.Reader, pageNr int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("text extraction panic: %v", rec)
		}
	}()
	pg := r.Page(pageNr)
	if pg.V.IsNull() {
		return "", nil
	}
	return pg.GetPlainText(nil)
}

// pdfMetadata maps the string-valued standard Info entries, lower-cased keys.
func pdfMetadata(r *pdfreader.Reader) map[string]string {
	meta := make(map[string]string)
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	for _, k := range infoKeys {
		v := info.Key(k)
		if v.Kind() == pdfreader.String {
			if s := v.RawString(); s != "" {
				meta[strings.ToLower(k)] = s
			}
		}
	}
	return meta
}

// pdfQualityNotes scores extraction quality (text density, garbage ratio,
// image streams) and reports the findings as diagnostics. Quality analysis
// is advisory: any failure here is itself just a diagnostic.
func (p *Pipeline) pdfQualityNotes(path string, pages []string) []string {
	hasImages, err := pdfHasImageStreams(path)
	if err != nil {
		return []string{fmt.Sprintf("quality analysis skipped: %v", err)}
	}

	q := computeQuality(pages, hasImages)
	p.logger.Debug("pdf extraction quality",
		"path", path,
		"pages", q.PageCount,
		"chars_per_page", q.CharsPerPage,
		"printable_ratio", q.PrintableRatio,
		"wordlike_ratio", q.WordlikeRatio,
		"has_image_streams", q.HasImageStreams,
	)

	var notes []string
	if q.NeedsOCR() {
		notes = append(notes, fmt.Sprintf(
			"low extraction quality (%.0f chars/page, printable ratio %.2f), OCR recommended",
			q.CharsPerPage, q.PrintableRatio))
	}
	if q.HasVisualGap() {
		notes = append(notes, fmt.Sprintf(
			"text references %d figures/tables but image streams were not extracted",
			q.VisualRefCount))
	}
	return notes
}

// pdfHasImageStreams checks for image XObjects via pdfcpu.
func pdfHasImageStreams(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return false, fmt.Errorf("pdfcpu read: %w", err)
	}
	return detectImageStreams(ctx), nil
}

func detectImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	// Fallback: scan the xref table for image subtype stream objects.
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}
