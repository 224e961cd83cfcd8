package convert

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// CoreProperties are the document metadata from docProps/core.xml.
// Created and Modified keep the raw ISO-8601 strings from the part; empty
// string means the property is absent.
type CoreProperties struct {
	Title    string
	Subject  string
	Creator  string
	Keywords string
	Category string
	Comments string
	Created  string
	Modified string
}

type corePropsXML struct {
	Title       string `xml:"title"`
	Subject     string `xml:"subject"`
	Creator     string `xml:"creator"`
	Keywords    string `xml:"keywords"`
	Category    string `xml:"category"`
	Description string `xml:"description"`
	Created     string `xml:"created"`
	Modified    string `xml:"modified"`
}

// ParseCoreProperties reads docProps/core.xml. A document without the part
// yields zero-value properties, not an error.
func ParseCoreProperties(r io.ReaderAt, size int64) (CoreProperties, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return CoreProperties{}, fmt.Errorf("open archive: %w", err)
	}
	rc, err := openPart(zr, "docProps/core.xml")
	if err != nil {
		return CoreProperties{}, nil
	}
	defer rc.Close()

	var raw corePropsXML
	if err := xml.NewDecoder(rc).Decode(&raw); err != nil {
		return CoreProperties{}, fmt.Errorf("parse core.xml: %w", err)
	}
	return CoreProperties{
		Title:    raw.Title,
		Subject:  raw.Subject,
		Creator:  raw.Creator,
		Keywords: raw.Keywords,
		Category: raw.Category,
		Comments: raw.Description,
		Created:  raw.Created,
		Modified: raw.Modified,
	}, nil
}

// ParseHeadersFooters collects the non-empty paragraph texts of every
// word/headerN.xml and word/footerN.xml part, one string slice per part,
// in archive entry order.
func ParseHeadersFooters(r io.ReaderAt, size int64) (headers, footers [][]string, err error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	for _, f := range zr.File {
		isHeader := strings.HasPrefix(f.Name, "word/header") && strings.HasSuffix(f.Name, ".xml")
		isFooter := strings.HasPrefix(f.Name, "word/footer") && strings.HasSuffix(f.Name, ".xml")
		if !isHeader && !isFooter {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		blocks, err := parseBody(rc)
		rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}

		var texts []string
		for _, b := range blocks {
			if p, ok := b.(Paragraph); ok {
				if t := strings.TrimSpace(p.Text()); t != "" {
					texts = append(texts, t)
				}
			}
		}
		if isHeader {
			headers = append(headers, texts)
		} else {
			footers = append(footers, texts)
		}
	}
	return headers, footers, nil
}
