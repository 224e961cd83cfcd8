package docpipe

import (
	"context"
	"fmt"
	"strings"
)

// strategy is one self-contained extraction attempt, tried in fallback order.
type strategy struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// runStrategies drives an ordered fallback chain. Each strategy's output is
// usable iff it is non-blank after trimming; the first usable result wins
// and no further strategy runs. Failures — errors, panics, blank output —
// become diagnostics ("<name>: <reason>") and the chain moves on. When every
// strategy is spent the returned error is AllMethodsExhausted, naming each
// attempted method once, in order.
func runStrategies(ctx context.Context, strategies []strategy) (text, method string, diagnostics []string, err error) {
	for _, s := range strategies {
		out, serr := tryStrategy(ctx, s)
		if serr != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", s.name, serr))
			continue
		}
		out = strings.TrimSpace(out)
		if out == "" {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: empty result", s.name))
			continue
		}
		return out, s.name, diagnostics, nil
	}

	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.name
	}
	exhausted := newError(KindAllMethodsExhausted,
		fmt.Sprintf("All extraction methods failed: %s", strings.Join(names, ", ")))
	return "", "", diagnostics, exhausted
}

// tryStrategy runs one strategy, downgrading a panic to a plain error so a
// misbehaving attempt can never abort the chain.
func tryStrategy(ctx context.Context, s strategy) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.run(ctx)
}
