package docpipe

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// textEncodings is the fixed retry order for byte-level decoding, shared by
// the plain-text handler and the DOC raw-decode strategy.
var textEncodings = []struct {
	name string
	cm   *charmap.Charmap
}{
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
}

// extractText reads a plain text or Markdown file, retrying the decode with
// latin-1 then cp1252 when the bytes are not valid UTF-8. Method names the
// non-default encoding that won; a clean UTF-8 decode carries no method.
func (p *Pipeline) extractText(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faultf(err, "read %s", path)
	}

	text, encoding, ok := decodeBytes(data)
	if !ok {
		return nil, newError(KindDecodeFailure, "No text content extracted")
	}

	return &Result{
		Format:  FormatText,
		Content: TextContent{Text: text, Method: encoding},
		Method:  encoding,
	}, nil
}

// decodeBytes tries utf-8, latin-1 and cp1252 in order and returns the first
// decode that yields non-blank text, with the encoding name ("" for utf-8).
func decodeBytes(data []byte) (text, encoding string, ok bool) {
	if utf8.Valid(data) {
		s := string(data)
		if strings.TrimSpace(s) != "" {
			return s, "", true
		}
		return "", "", false
	}
	for _, enc := range textEncodings {
		decoded, err := enc.cm.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		s := string(decoded)
		if strings.TrimSpace(s) != "" {
			return s, enc.name, true
		}
	}
	return "", "", false
}
