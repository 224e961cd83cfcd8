package docpipe

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hazyhaar/docpipe/convert"
)

// headingStylePrefix marks the paragraph styles that open a new Section in
// structured mode.
const headingStylePrefix = "Heading"

// extractDocx dispatches between the simple and structured DOCX modes.
func (p *Pipeline) extractDocx(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, faultf(err, "open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, faultf(err, "stat %s", path)
	}
	size := info.Size()

	doc, err := convert.ParseDocument(f, size)
	if err != nil {
		return nil, faultf(err, "parse %s", path)
	}

	if p.cfg.DocxSimple {
		return docxSimple(doc)
	}
	return p.docxStructured(f, size, doc)
}

// docxSimple joins every paragraph's text with a newline, in document order.
func docxSimple(doc *convert.Document) (*Result, error) {
	var lines []string
	for _, para := range doc.Paragraphs() {
		lines = append(lines, para.Text())
	}
	text := strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindEmptyDocument, "No text content found in DOCX file")
	}
	return &Result{
		Format:  FormatDocx,
		Content: DocxText{Text: text},
	}, nil
}

// docxStructured walks body blocks in document order and builds the
// hierarchical decomposition: heading-keyed sections, a flat table list,
// core metadata, and per-part header/footer texts.
//
// A heading-styled paragraph closes the current section (emitted only if it
// accumulated at least one content block) and opens a new one. Every other
// paragraph is a content block, whitespace-only ones included. Paragraphs
// before the first heading are kept as a section with an empty heading at
// level 0. Tables are reported top-level, independent of section nesting.
func (p *Pipeline) docxStructured(f *os.File, size int64, doc *convert.Document) (*Result, error) {
	var (
		sections []Section
		tables   []TableBlock
		current  = Section{Heading: "", Level: 0}
	)

	flush := func() {
		if len(current.Content) > 0 {
			sections = append(sections, current)
		}
	}

	for _, b := range doc.Blocks {
		switch blk := b.(type) {
		case convert.Paragraph:
			if strings.HasPrefix(blk.Style, headingStylePrefix) {
				flush()
				current = Section{
					Heading: blk.Text(),
					Level:   headingLevel(blk.Style),
				}
				continue
			}
			current.Content = append(current.Content, ContentBlock{
				Type:  "paragraph",
				Text:  blk.Text(),
				Style: runStyleFlags(blk.Runs),
			})
		case convert.Table:
			tables = append(tables, tableBlock(blk))
		}
	}
	flush()

	// Only a fully empty decomposition is an error.
	if len(sections) == 0 && len(tables) == 0 {
		return nil, newError(KindEmptyDocument, "No text content found in DOCX file")
	}

	// A broken properties part degrades to empty metadata with a diagnostic;
	// the body text is still good.
	var diags []string
	metadata := map[string]any{}
	props, err := convert.ParseCoreProperties(f, size)
	if err != nil {
		diags = append(diags, fmt.Sprintf("metadata: %v", err))
	} else {
		metadata = docxMetadata(props)
	}
	headers, footers, err := convert.ParseHeadersFooters(f, size)
	if err != nil {
		return nil, faultf(err, "read headers and footers")
	}

	return &Result{
		Format: FormatDocx,
		Content: DocxContent{
			Metadata: metadata,
			Sections: sections,
			Tables:   tables,
			Headers:  emptyIfNil(headers),
			Footers:  emptyIfNil(footers),
		},
		Diagnostics: diags,
	}, nil
}

// headingLevel parses the integer suffix of a heading style name;
// a malformed suffix falls back to level 0.
func headingLevel(style string) int {
	lvl, err := strconv.Atoi(style[len(headingStylePrefix):])
	if err != nil || lvl < 0 {
		return 0
	}
	return lvl
}

// runStyleFlags ORs each formatting flag across the paragraph's runs.
func runStyleFlags(runs []convert.Run) BlockStyle {
	var s BlockStyle
	for _, r := range runs {
		s.Bold = s.Bold || r.Bold
		s.Italic = s.Italic || r.Italic
		s.Underline = s.Underline || r.Underline
	}
	return s
}

func tableBlock(t convert.Table) TableBlock {
	data := t.Rows
	if data == nil {
		data = [][]string{}
	}
	colCount := 0
	if len(data) > 0 {
		colCount = len(data[0])
	}
	return TableBlock{
		Data:     data,
		RowCount: len(data),
		ColCount: colCount,
	}
}

func docxMetadata(props convert.CoreProperties) map[string]any {
	author := props.Creator
	if author == "" {
		author = "Unknown"
	}
	return map[string]any{
		"author":   author,
		"created":  nullableString(props.Created),
		"modified": nullableString(props.Modified),
		"title":    props.Title,
		"subject":  props.Subject,
		"keywords": props.Keywords,
		"category": props.Category,
		"comments": props.Comments,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func emptyIfNil(v [][]string) [][]string {
	if v == nil {
		return [][]string{}
	}
	return v
}
