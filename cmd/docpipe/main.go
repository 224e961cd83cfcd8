// Command docpipe extracts text from a single document and prints one JSON
// object on stdout: {"type": ..., "content": ...} on success, or
// {"error": "..."} when extraction fails. Logs and diagnostics go to stderr
// so stdout stays machine-parseable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hazyhaar/docpipe"
)

func main() {
	var (
		simple    = flag.Bool("simple", false, "docx: newline-joined text instead of structured output")
		converter = flag.String("converter", "", "legacy .doc converter binary (default: antiword)")
		language  = flag.String("lang", "", "OCR language code (default: eng)")
		verbose   = flag.Bool("v", false, "debug logging on stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	lvl := slog.LevelWarn
	if *verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	pipe := docpipe.New(docpipe.Config{
		DocxSimple:    *simple,
		ConverterPath: *converter,
		OCRLanguage:   *language,
		Logger:        logger,
	})

	enc := json.NewEncoder(os.Stdout)
	res, err := pipe.Process(context.Background(), flag.Arg(0))
	if err != nil {
		// Extraction failure is still a well-formed result for the caller.
		enc.Encode(map[string]string{"error": docpipe.ErrorMessage(err)})
		return
	}
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
