// Package convert reads WordprocessingML (the OOXML dialect inside .docx
// archives) and converts it to raw text, HTML or Markdown. It understands
// paragraphs with run-level formatting, heading styles, tables, core
// properties and header/footer parts.
//
// Conversion functions return a Result carrying the converted value plus
// advisory messages (unrecognised styles and the like), so callers can
// surface degradations without failing the conversion.
package convert

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxNestingDepth bounds XML element nesting while parsing. Deeply nested
// documents are rejected outright (billion-laughs style inputs).
const maxNestingDepth = 256

// Run is a span of text sharing character formatting.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
}

// Paragraph is one w:p element with its style name and runs.
type Paragraph struct {
	Style string
	Runs  []Run
}

// Text returns the concatenated run text of the paragraph.
func (p Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Table is one w:tbl element as a row-major grid. Cell text is the
// newline-joined text of the cell's paragraphs, trimmed.
type Table struct {
	Rows [][]string
}

// Block is a body-level element: either a Paragraph or a Table.
type Block interface{ block() }

func (Paragraph) block() {}
func (Table) block()     {}

// Document is the parsed body of a WordprocessingML document, with blocks
// in document order.
type Document struct {
	Blocks []Block
}

// Paragraphs returns the document's body-level paragraphs, skipping tables.
func (d *Document) Paragraphs() []Paragraph {
	var out []Paragraph
	for _, b := range d.Blocks {
		if p, ok := b.(Paragraph); ok {
			out = append(out, p)
		}
	}
	return out
}

// ParseDocument reads word/document.xml from a .docx archive.
func ParseDocument(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	rc, err := openPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	blocks, err := parseBody(rc)
	if err != nil {
		return nil, err
	}
	return &Document{Blocks: blocks}, nil
}

// parseBody walks WordprocessingML tokens and assembles body-level blocks.
// Paragraphs inside tables are folded into their cell and never appear as
// top-level blocks.
func parseBody(r io.Reader) ([]Block, error) {
	dec := xml.NewDecoder(r)

	var (
		blocks []Block
		depth  int

		para    *Paragraph
		run     *Run
		inProps bool // inside w:pPr or w:rPr
		inText  bool // inside w:t

		tableDepth int
		table      *Table
		row        []string
		cellParas  []string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxNestingDepth {
				return nil, fmt.Errorf("xml nesting depth exceeds %d", maxNestingDepth)
			}
			switch t.Name.Local {
			case "p":
				para = &Paragraph{}
			case "pPr", "rPr":
				inProps = true
			case "pStyle":
				if para != nil {
					para.Style = attrVal(t, "val")
				}
			case "r":
				if para != nil {
					run = &Run{}
				}
			case "b":
				if run != nil && inProps {
					run.Bold = flagOn(t)
				}
			case "i":
				if run != nil && inProps {
					run.Italic = flagOn(t)
				}
			case "u":
				if run != nil && inProps {
					run.Underline = flagOn(t) && attrVal(t, "val") != "none"
				}
			case "t":
				inText = true
			case "tab":
				if run != nil {
					run.Text += "\t"
				}
			case "br", "cr":
				if run != nil {
					run.Text += "\n"
				}
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					table = &Table{}
				}
			case "tr":
				if tableDepth == 1 {
					row = []string{}
				}
			case "tc":
				if tableDepth == 1 {
					cellParas = nil
				}
			}

		case xml.CharData:
			if inText && run != nil {
				run.Text += string(t)
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "p":
				if para == nil {
					break
				}
				if tableDepth > 0 {
					cellParas = append(cellParas, para.Text())
				} else {
					blocks = append(blocks, *para)
				}
				para = nil
			case "pPr", "rPr":
				inProps = false
			case "r":
				if para != nil && run != nil {
					para.Runs = append(para.Runs, *run)
				}
				run = nil
			case "t":
				inText = false
			case "tbl":
				if tableDepth == 1 && table != nil {
					blocks = append(blocks, *table)
					table = nil
				}
				if tableDepth > 0 {
					tableDepth--
				}
			case "tr":
				if tableDepth == 1 && table != nil && row != nil {
					table.Rows = append(table.Rows, row)
					row = nil
				}
			case "tc":
				if tableDepth == 1 && row != nil {
					row = append(row, strings.TrimSpace(strings.Join(cellParas, "\n")))
					cellParas = nil
				}
			}
		}
	}
	return blocks, nil
}

// flagOn interprets a boolean run property element: present means on unless
// w:val says otherwise.
func flagOn(t xml.StartElement) bool {
	switch attrVal(t, "val") {
	case "false", "0", "off":
		return false
	}
	return true
}

func attrVal(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func openPart(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
