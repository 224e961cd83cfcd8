package convert

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Options tune the conversion functions.
type Options struct {
	// PreserveEmptyParagraphs keeps paragraphs with no text instead of
	// dropping them.
	PreserveEmptyParagraphs bool

	// IncludeDefaultStyleMap additionally maps the built-in Title, Subtitle
	// and Quote styles instead of reporting them as unrecognised.
	IncludeDefaultStyleMap bool
}

// Result is the outcome of one conversion: the converted value plus
// advisory messages about degradations encountered on the way.
type Result struct {
	Value    string
	Messages []string
}

// ExtractRawText returns the document text, one line per paragraph. Table
// cell text is included in document order.
func ExtractRawText(r io.ReaderAt, size int64, opts Options) (Result, error) {
	doc, err := ParseDocument(r, size)
	if err != nil {
		return Result{}, err
	}

	var lines []string
	for _, b := range doc.Blocks {
		switch blk := b.(type) {
		case Paragraph:
			t := blk.Text()
			if t == "" && !opts.PreserveEmptyParagraphs {
				continue
			}
			lines = append(lines, t)
		case Table:
			for _, row := range blk.Rows {
				for _, cell := range row {
					if cell != "" {
						lines = append(lines, cell)
					}
				}
			}
		}
	}
	return Result{Value: strings.Join(lines, "\n")}, nil
}

// ToHTML renders the document as an HTML fragment: headings, paragraphs
// with inline formatting, and tables.
func ToHTML(r io.ReaderAt, size int64, opts Options) (Result, error) {
	doc, err := ParseDocument(r, size)
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	var messages []string
	seenStyles := map[string]bool{}

	for _, b := range doc.Blocks {
		switch blk := b.(type) {
		case Paragraph:
			if blk.Text() == "" && !opts.PreserveEmptyParagraphs {
				continue
			}
			tag, ok := styleTag(blk.Style, opts)
			if !ok && !seenStyles[blk.Style] {
				seenStyles[blk.Style] = true
				messages = append(messages,
					fmt.Sprintf("unrecognised paragraph style: %s (treated as normal text)", blk.Style))
			}
			sb.WriteString("<" + tag + ">")
			writeRunsHTML(&sb, blk.Runs)
			sb.WriteString("</" + tag + ">\n")
		case Table:
			sb.WriteString("<table>\n")
			for _, row := range blk.Rows {
				sb.WriteString("<tr>")
				for _, cell := range row {
					sb.WriteString("<td>" + html.EscapeString(cell) + "</td>")
				}
				sb.WriteString("</tr>\n")
			}
			sb.WriteString("</table>\n")
		}
	}
	return Result{Value: sb.String(), Messages: messages}, nil
}

// ToMarkdown renders the document as Markdown by converting the HTML form.
func ToMarkdown(r io.ReaderAt, size int64, opts Options) (Result, error) {
	htmlRes, err := ToHTML(r, size, opts)
	if err != nil {
		return Result{}, err
	}
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(htmlRes.Value)
	if err != nil {
		return Result{}, fmt.Errorf("markdown conversion: %w", err)
	}
	return Result{Value: md, Messages: htmlRes.Messages}, nil
}

// styleTag maps a paragraph style to its HTML element. The second return is
// false for styles outside the map, which render as plain paragraphs.
func styleTag(style string, opts Options) (string, bool) {
	switch style {
	case "", "Normal", "BodyText", "ListParagraph":
		return "p", true
	}
	if lvl, ok := headingLevel(style); ok {
		if lvl < 1 {
			lvl = 1
		}
		if lvl > 6 {
			lvl = 6
		}
		return "h" + strconv.Itoa(lvl), true
	}
	if opts.IncludeDefaultStyleMap {
		switch style {
		case "Title":
			return "h1", true
		case "Subtitle":
			return "h2", true
		case "Quote", "IntenseQuote":
			return "blockquote", true
		}
	}
	return "p", false
}

// headingLevel parses the numeric suffix of a "Heading<N>" style name.
func headingLevel(style string) (int, bool) {
	const prefix = "Heading"
	if !strings.HasPrefix(style, prefix) {
		return 0, false
	}
	lvl, err := strconv.Atoi(style[len(prefix):])
	if err != nil {
		return 0, true // heading-styled, level unparseable
	}
	return lvl, true
}

func writeRunsHTML(sb *strings.Builder, runs []Run) {
	for _, r := range runs {
		text := html.EscapeString(r.Text)
		if r.Bold {
			text = "<strong>" + text + "</strong>"
		}
		if r.Italic {
			text = "<em>" + text + "</em>"
		}
		if r.Underline {
			text = "<u>" + text + "</u>"
		}
		sb.WriteString(text)
	}
}
