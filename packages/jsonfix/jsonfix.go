// Package jsonfix parses structured model output through an ordered chain of
// strategies: strict parse, fenced/brace extraction, then light syntactic
// coercion. Each strategy either produces a value or defers to the next one;
// nothing mutates the payload silently.
package jsonfix

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Strategy attempts one way of reading raw text as JSON for dst.
type Strategy struct {
	Name  string
	Parse func(raw string, dst any) error
}

// Chain is an ordered list of strategies tried until one succeeds.
type Chain []Strategy

// Default is the chain used for all model structured output.
var Default = Chain{
	{Name: "strict", Parse: parseStrict},
	{Name: "extract", Parse: parseExtracted},
	{Name: "coerce", Parse: parseCoerced},
}

// Unmarshal runs the chain; the first strategy that succeeds wins.
func (c Chain) Unmarshal(raw string, dst any) error {
	var errs []string
	for _, s := range c {
		if err := s.Parse(raw, dst); err == nil {
			return nil
		} else {
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name, err))
		}
	}
	return fmt.Errorf("no parse strategy succeeded: %s", strings.Join(errs, "; "))
}

func parseStrict(raw string, dst any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	return dec.Decode(dst)
}

var fenceExpr = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseExtracted pulls the first fenced block or the outermost brace/bracket
// span out of surrounding prose.
func parseExtracted(raw string, dst any) error {
	if m := fenceExpr.FindStringSubmatch(raw); m != nil {
		if err := parseStrict(strings.TrimSpace(m[1]), dst); err == nil {
			return nil
		}
	}

	span, err := outerSpan(raw)
	if err != nil {
		return err
	}
	return parseStrict(span, dst)
}

// parseCoerced additionally strips trailing commas before closing braces and
// brackets, the one malformation models produce constantly.
func parseCoerced(raw string, dst any) error {
	span, err := outerSpan(raw)
	if err != nil {
		span = raw
	}
	span = trailingCommaExpr.ReplaceAllString(span, "$1")
	return parseStrict(span, dst)
}

var trailingCommaExpr = regexp.MustCompile(`,\s*([}\]])`)

func outerSpan(raw string) (string, error) {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON opener found")
	}
	opener := raw[start]
	closer := byte('}')
	if opener == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(raw, closer)
	if end <= start {
		return "", fmt.Errorf("no matching closer found")
	}
	return raw[start : end+1], nil
}
