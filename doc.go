package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	htmlparse "golang.org/x/net/html"

	"github.com/hazyhaar/docpipe/convert"
)

// extractDOC drives the legacy binary DOC fallback chain. One file handle is
// shared across the whole chain; every strategy starts from a reset cursor so
// a partial read by a failed attempt cannot corrupt the next.
//
// Strategy order, most to least reliable for old binary layouts:
//  1. antiword    — external converter subprocess, bounded by ConvertTimeout
//  2. markdown    — structure-aware conversion (OOXML payloads only)
//  3. raw-text    — converter raw text, retried with empty-paragraph and
//     default-style-map options if the first pass is blank
//  4. html        — converter HTML, sanitized; usability judged on the
//     tag-stripped text, not the markup
//  5. raw-decode  — utf-8, latin-1, cp1252 straight over the file bytes
func (p *Pipeline) extractDOC(ctx context.Context, path string) (*Result, error) {
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

	// Advisory messages from the converter library, folded into the result
	// diagnostics after the chain settles.
	var notes []string

	rewind := func() error {
		_, err := f.Seek(0, io.SeekStart)
		return err
	}

	strategies := []strategy{
		{name: "antiword", run: func(ctx context.Context) (string, error) {
			if err := rewind(); err != nil {
				return "", err
			}
			return p.runConverter(ctx, path)
		}},
		{name: "markdown", run: func(ctx context.Context) (string, error) {
			if err := rewind(); err != nil {
				return "", err
			}
			res, err := convert.ToMarkdown(f, size, convert.Options{})
			if err != nil {
				return "", err
			}
			notes = appendNotes(notes, "markdown", res.Messages)
			return res.Value, nil
		}},
		{name: "raw-text", run: func(ctx context.Context) (string, error) {
			if err := rewind(); err != nil {
				return "", err
			}
			res, err := convert.ExtractRawText(f, size, convert.Options{})
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(res.Value) == "" {
				// Second pass keeps empty paragraphs and maps the built-in
				// styles, which rescues some sparsely styled documents.
				res, err = convert.ExtractRawText(f, size, convert.Options{
					PreserveEmptyParagraphs: true,
					IncludeDefaultStyleMap:  true,
				})
				if err != nil {
					return "", err
				}
			}
			notes = appendNotes(notes, "raw-text", res.Messages)
			return res.Value, nil
		}},
		{name: "html", run: func(ctx context.Context) (string, error) {
			if err := rewind(); err != nil {
				return "", err
			}
			res, err := convert.ToHTML(f, size, convert.Options{IncludeDefaultStyleMap: true})
			if err != nil {
				return "", err
			}
			notes = appendNotes(notes, "html", res.Messages)
			sanitized := bluemonday.UGCPolicy().Sanitize(res.Value)
			// Markup alone is not usable text: "<p></p>" must count as blank.
			if strippedText(sanitized) == "" {
				return "", nil
			}
			return sanitized, nil
		}},
		{name: "raw-decode", run: func(ctx context.Context) (string, error) {
			if err := rewind(); err != nil {
				return "", err
			}
			data, err := io.ReadAll(f)
			if err != nil {
				return "", err
			}
			text, _, ok := decodeBytes(data)
			if !ok {
				return "", nil
			}
			return text, nil
		}},
	}

	text, method, diags, err := runStrategies(ctx, strategies)
	if err != nil {
		return nil, err
	}

	return &Result{
		Format:      FormatDOC,
		Content:     TextContent{Text: text, Method: method},
		Method:      method,
		Diagnostics: append(diags, notes...),
	}, nil
}

// runConverter invokes the external legacy converter on path and returns its
// stdout. Non-zero exit or timeout (process killed) is a strategy failure.
func (p *Pipeline) runConverter(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConvertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.ConverterPath, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("timed out after %s", p.cfg.ConvertTimeout)
		}
		if msg := firstLine(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w (%s)", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// strippedText returns the trimmed text content of an HTML fragment with
// all markup removed.
func strippedText(fragment string) string {
	z := htmlparse.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch z.Next() {
		case htmlparse.ErrorToken:
			return strings.TrimSpace(sb.String())
		case htmlparse.TextToken:
			sb.Write(z.Text())
		}
	}
}

func appendNotes(notes []string, strategyName string, messages []string) []string {
	for _, m := range messages {
		notes = append(notes, strategyName+": "+m)
	}
	return notes
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
