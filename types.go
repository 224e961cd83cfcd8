package docpipe

import "encoding/json"

// Format identifies a document type.
type Format string

const (
	FormatDOC   Format = "doc"
	FormatDocx  Format = "docx"
	FormatPDF   Format = "pdf"
	FormatText  Format = "text"
	FormatImage Format = "image"
)

// Result is the uniform output of one extraction call.
//
// Content holds the format-specific payload (TextContent, DocxText,
// DocxContent, PDFContent or ImageContent). Method names the strategy that
// produced the content for multi-strategy formats; Diagnostics collects
// human-readable notes from failed or degraded attempts. Both stay off the
// wire: the JSON form is exactly {"type": ..., "content": ...}.
type Result struct {
	Format      Format
	Content     any
	Method      string
	Diagnostics []string
}

// MarshalJSON renders the wire envelope.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Content any    `json:"content"`
	}{
		Type:    string(r.Format),
		Content: r.Content,
	})
}

// TextContent is the payload for plain-text and legacy DOC results.
type TextContent struct {
	Text   string `json:"text"`
	Method string `json:"method,omitempty"`
}

// DocxText is the payload for DOCX simple mode.
type DocxText struct {
	Text string `json:"text"`
}

// DocxContent is the payload for DOCX structured mode.
type DocxContent struct {
	Metadata map[string]any `json:"metadata"`
	Sections []Section      `json:"sections"`
	Tables   []TableBlock   `json:"tables"`
	Headers  [][]string     `json:"headers"`
	Footers  [][]string     `json:"footers"`
}

// Section is a logical DOCX unit demarcated by a heading-styled paragraph.
// A run of paragraphs before the first heading is kept as a section with an
// empty heading and level 0.
type Section struct {
	Heading string         `json:"heading"`
	Level   int            `json:"level"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one paragraph inside a Section.
type ContentBlock struct {
	Type  string     `json:"type"`
	Text  string     `json:"text"`
	Style BlockStyle `json:"style"`
}

// BlockStyle holds character formatting flags, OR-ed across the runs of a
// paragraph.
type BlockStyle struct {
	Bold      bool `json:"bold"`
	Italic    bool `json:"italic"`
	Underline bool `json:"underline"`
}

// TableBlock is a row-major grid extracted from a DOCX table. ColCount is
// the first row's length, 0 for a table with no rows.
type TableBlock struct {
	Data     [][]string `json:"data"`
	RowCount int        `json:"row_count"`
	ColCount int        `json:"col_count"`
}

// PDFContent is the payload for PDF results: document metadata plus one
// string per page, in page order. Blank pages stay as empty strings.
type PDFContent struct {
	Metadata map[string]string `json:"metadata"`
	Pages    []string          `json:"pages"`
}

// ImageContent is the payload for image results. ExtractedText is nil when
// the OCR engine failed; confidence is 0..100.
type ImageContent struct {
	Format        string  `json:"format"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	ExtractedText *string `json:"extracted_text"`
	OCRConfidence float64 `json:"ocr_confidence"`
}
