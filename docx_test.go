package docpipe

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeDocx builds a minimal .docx archive from part name → content.
func writeDocx(t *testing.T, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for partName, content := range parts {
		fw, err := w.Create(partName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	w.Close()
	f.Close()
	return path
}

const docxHeader = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const docxFooter = `</w:body></w:document>`

func TestExtractDocx_Structured(t *testing.T) {
	// WHAT: Headings demarcate sections; pre-heading paragraphs become a
	// section with empty heading at level 0.
	// WHY: The hierarchical decomposition is the structured-mode contract.
	path := writeDocx(t, "test.docx", map[string]string{
		"word/document.xml": docxHeader + `
<w:p><w:r><w:t>Preamble before any heading.</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Intro</w:t></w:r></w:p>
<w:p><w:r><w:t>Body text one.</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Details</w:t></w:r></w:p>
<w:p><w:r><w:t>Body text two.</w:t></w:r></w:p>` + docxFooter,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	content := res.Content.(DocxContent)

	if len(content.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(content.Sections))
	}
	pre := content.Sections[0]
	if pre.Heading != "" || pre.Level != 0 {
		t.Errorf("pre-heading section = %q level %d, want empty at 0", pre.Heading, pre.Level)
	}
	if len(pre.Content) != 1 || pre.Content[0].Text != "Preamble before any heading." {
		t.Errorf("pre-heading content = %+v", pre.Content)
	}
	if content.Sections[1].Heading != "Intro" || content.Sections[1].Level != 1 {
		t.Errorf("section 1 = %+v", content.Sections[1])
	}
	if content.Sections[2].Heading != "Details" || content.Sections[2].Level != 2 {
		t.Errorf("section 2 = %+v", content.Sections[2])
	}
	if content.Sections[2].Content[0].Type != "paragraph" {
		t.Errorf("block type = %q", content.Sections[2].Content[0].Type)
	}
}

func TestExtractDocx_BlankParagraphKeepsSection(t *testing.T) {
	// WHAT: A whitespace-only paragraph is a content block like any other, so
	// the section holding it is emitted; a heading followed directly by the
	// next heading accumulated nothing and is dropped.
	// WHY: Blank paragraphs are document content, not noise to filter.
	path := writeDocx(t, "sparse.docx", map[string]string{
		"word/document.xml": docxHeader + `
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Spacer Section</w:t></w:r></w:p>
<w:p><w:r><w:t>   </w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Bare Heading</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Real Section</w:t></w:r></w:p>
<w:p><w:r><w:t>Content.</w:t></w:r></w:p>` + docxFooter,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	content := res.Content.(DocxContent)
	if len(content.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(content.Sections))
	}
	spacer := content.Sections[0]
	if spacer.Heading != "Spacer Section" {
		t.Errorf("heading = %q, want Spacer Section", spacer.Heading)
	}
	if len(spacer.Content) != 1 || spacer.Content[0].Text != "   " {
		t.Errorf("spacer content = %+v, want the blank paragraph kept", spacer.Content)
	}
	if content.Sections[1].Heading != "Real Section" {
		t.Errorf("heading = %q, want Real Section (Bare Heading dropped)", content.Sections[1].Heading)
	}
}

func TestExtractDocx_HeadingLevelFallback(t *testing.T) {
	// WHAT: A heading style with a malformed numeric suffix falls back to 0.
	// WHY: Generators emit styles like "HeadingX"; level parsing must not fail.
	path := writeDocx(t, "badlevel.docx", map[string]string{
		"word/document.xml": docxHeader + `
<w:p><w:pPr><w:pStyle w:val="HeadingX"/></w:pPr><w:r><w:t>Odd Heading</w:t></w:r></w:p>
<w:p><w:r><w:t>Text.</w:t></w:r></w:p>` + docxFooter,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	content := res.Content.(DocxContent)
	if len(content.Sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(content.Sections))
	}
	if content.Sections[0].Level != 0 {
		t.Errorf("level = %d, want 0 fallback", content.Sections[0].Level)
	}
	if content.Sections[0].Heading != "Odd Heading" {
		t.Errorf("heading = %q", content.Sections[0].Heading)
	}
}

func TestExtractDocx_StyleFlagsORAcrossRuns(t *testing.T) {
	// WHAT: A paragraph with one bold run and one italic run reports both flags.
	// WHY: Block style is the union of run formatting, not the first run's.
	path := writeDocx(t, "styles.docx", map[string]string{
		"word/document.xml": docxHeader + `
<w:p>
<w:r><w:rPr><w:b/></w:rPr><w:t>bold part </w:t></w:r>
<w:r><w:rPr><w:i/></w:rPr><w:t>italic part</w:t></w:r>
</w:p>` + docxFooter,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	content := res.Content.(DocxContent)
	blk := content.Sections[0].Content[0]
	if !blk.Style.Bold || !blk.Style.Italic {
		t.Errorf("style = %+v, want bold and italic", blk.Style)
	}
	if blk.Style.Underline {
		t.Error("underline should stay false")
	}
	if blk.Text != "bold part italic part" {
		t.Errorf("text = %q", blk.Text)
	}
}

func TestExtractDocx_Tables(t *testing.T) {
	// WHAT: Tables are reported top-level with row/column counts; a table
	// with no rows gets ColCount 0.
	// WHY: The flat table list is independent of section structure.
	path := writeDocx(t, "tables.docx", map[string]string{
		"word/document.xml": docxHeader + `
<w:p><w:r><w:t>Before the table.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>a1</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>b1</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>a2</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>b2</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:tbl></w:tbl>` + docxFooter,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	content := res.Content.(DocxContent)
	if len(content.Tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(content.Tables))
	}
	tbl := content.Tables[0]
	if tbl.RowCount != 2 || tbl.ColCount != 2 {
		t.Errorf("counts = %dx%d, want 2x2", tbl.RowCount, tbl.ColCount)
	}
	if tbl.Data[1][1] != "b2" {
		t.Errorf("cell = %q", tbl.Data[1][1])
	}
	empty := content.Tables[1]
	if empty.RowCount != 0 || empty.ColCount != 0 {
		t.Errorf("empty table counts = %dx%d, want 0x0", empty.RowCount, empty.ColCount)
	}
	if empty.Data == nil {
		t.Error("empty table data should serialize as [], not null")
	}
}

func TestExtractDocx_Metadata(t *testing.T) {
	// WHAT: Core properties surface as metadata; a missing creator becomes
	// "Unknown" and absent dates are null.
	// WHY: Consumers rely on the author default and nullable timestamps.
	coreXML := `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
 xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
<dc:title>Quarterly Report</dc:title>
<dcterms:created>2024-01-15T10:30:00Z</dcterms:created>
</cp:coreProperties>`

	path := writeDocx(t, "meta.docx", map[string]string{
		"word/document.xml": docxHeader + `<w:p><w:r><w:t>Body.</w:t></w:r></w:p>` + docxFooter,
		"docProps/core.xml": coreXML,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	meta := res.Content.(DocxContent).Metadata
	if meta["author"] != "Unknown" {
		t.Errorf("author = %v, want Unknown default", meta["author"])
	}
	if meta["title"] != "Quarterly Report" {
		t.Errorf("title = %v", meta["title"])
	}
	if meta["created"] != "2024-01-15T10:30:00Z" {
		t.Errorf("created = %v", meta["created"])
	}
	if meta["modified"] != nil {
		t.Errorf("modified = %v, want nil", meta["modified"])
	}
}

func TestExtractDocx_HeadersFooters(t *testing.T) {
	// WHAT: header/footer parts surface as one string slice per part.
	// WHY: Page furniture is extracted separately from the body.
	headerXML := docxHeader + `<w:p><w:r><w:t>Confidential</w:t></w:r></w:p>` + docxFooter
	footerXML := docxHeader + `<w:p><w:r><w:t>Page 1</w:t></w:r></w:p><w:p><w:r><w:t> </w:t></w:r></w:p>` + docxFooter

	path := writeDocx(t, "hf.docx", map[string]string{
		"word/document.xml": docxHeader + `<w:p><w:r><w:t>Body.</w:t></w:r></w:p>` + docxFooter,
		"word/header1.xml":  headerXML,
		"word/footer1.xml":  footerXML,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	content := res.Content.(DocxContent)
	if len(content.Headers) != 1 || len(content.Headers[0]) != 1 || content.Headers[0][0] != "Confidential" {
		t.Errorf("headers = %v", content.Headers)
	}
	// Blank paragraphs inside a part are dropped.
	if len(content.Footers) != 1 || len(content.Footers[0]) != 1 || content.Footers[0][0] != "Page 1" {
		t.Errorf("footers = %v", content.Footers)
	}
}

func TestExtractDocx_SimpleMode(t *testing.T) {
	// WHAT: Simple mode joins paragraph texts with newlines, headings included.
	// WHY: Some callers want flat text without the decomposition.
	path := writeDocx(t, "simple.docx", map[string]string{
		"word/document.xml": docxHeader + `
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Title</w:t></w:r></w:p>
<w:p><w:r><w:t>First.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second.</w:t></w:r></w:p>` + docxFooter,
	})

	pipe := New(Config{DocxSimple: true})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	text := res.Content.(DocxText).Text
	want := "Title\nFirst.\nSecond."
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestExtractDocx_Empty(t *testing.T) {
	// WHAT: A document with no body blocks fails as EmptyDocument in both
	// modes; a whitespace-only body fails in simple mode but still decomposes
	// in structured mode.
	// WHY: Empty extraction is a typed error with a fixed message, and only
	// simple mode judges usability by trimmed text.
	empty := writeDocx(t, "empty.docx", map[string]string{
		"word/document.xml": docxHeader + docxFooter,
	})
	for _, simple := range []bool{false, true} {
		pipe := New(Config{DocxSimple: simple})
		_, err := pipe.Process(context.Background(), empty)
		if !IsKind(err, KindEmptyDocument) {
			t.Fatalf("simple=%v: err = %v, want empty_document", simple, err)
		}
		if ErrorMessage(err) != "No text content found in DOCX file" {
			t.Errorf("message = %q", ErrorMessage(err))
		}
	}

	blank := writeDocx(t, "blank.docx", map[string]string{
		"word/document.xml": docxHeader + `<w:p><w:r><w:t>  </w:t></w:r></w:p>` + docxFooter,
	})
	if _, err := New(Config{DocxSimple: true}).Process(context.Background(), blank); !IsKind(err, KindEmptyDocument) {
		t.Fatalf("simple blank: err = %v, want empty_document", err)
	}
	res, err := New(Config{}).Process(context.Background(), blank)
	if err != nil {
		t.Fatalf("structured blank: %v", err)
	}
	if got := len(res.Content.(DocxContent).Sections); got != 1 {
		t.Errorf("structured blank sections = %d, want 1", got)
	}
}

func TestExtractDocx_MalformedMetadata(t *testing.T) {
	// WHAT: A core.xml that fails to parse yields empty metadata plus a
	// diagnostic; the extraction itself succeeds.
	// WHY: The body text is still good when only the properties part is broken.
	path := writeDocx(t, "badmeta.docx", map[string]string{
		"word/document.xml": docxHeader + `<w:p><w:r><w:t>Body.</w:t></w:r></w:p>` + docxFooter,
		"docProps/core.xml": `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"><cp:title>Broken`,
	})

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	content := res.Content.(DocxContent)
	if len(content.Metadata) != 0 {
		t.Errorf("metadata = %v, want empty map", content.Metadata)
	}
	found := false
	for _, d := range res.Diagnostics {
		if strings.Contains(d, "metadata:") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %v, want a metadata note", res.Diagnostics)
	}
}

func TestExtractDocx_XMLBomb(t *testing.T) {
	// WHAT: DOCX with deeply nested XML returns a depth error.
	// WHY: XML bomb / billion laughs defense.
	var xmlB strings.Builder
	xmlB.WriteString(docxHeader)
	for i := 0; i < 300; i++ {
		xmlB.WriteString("<w:p>")
	}
	xmlB.WriteString("<w:r><w:t>deep</w:t></w:r>")
	for i := 0; i < 300; i++ {
		xmlB.WriteString("</w:p>")
	}
	xmlB.WriteString(docxFooter)

	path := writeDocx(t, "bomb.docx", map[string]string{
		"word/document.xml": xmlB.String(),
	})

	pipe := New(Config{})
	_, err := pipe.Process(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}
