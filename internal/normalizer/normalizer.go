// Package normalizer repairs extraction artifacts in raw document text,
// chiefly "de-kerned" runs where a space was inserted between every character.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxPasses bounds the fixed-point iteration.
	DefaultMaxPasses = 15
	// DefaultMinRetainedRatio is the share of the original length a result must
	// keep before it is considered destructive and discarded.
	DefaultMinRetainedRatio = 0.2
)

var (
	periodUpperRe  = regexp.MustCompile(`\.(\p{Lu})`)
	commaLetterRe  = regexp.MustCompile(`,(\p{L})`)
	letterParenRe  = regexp.MustCompile(`(\p{L})\(`)
	parenLetterRe  = regexp.MustCompile(`\)(\p{L})`)
	multiSpaceRe   = regexp.MustCompile(` {2,}`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// Options configures a Normalizer.
type Options struct {
	MaxPasses        int
	MinRetainedRatio float64
	// SplitCaseTransitions inserts a space at lower-to-upper case boundaries
	// between two multi-letter pieces ("endNext" -> "end Next").
	SplitCaseTransitions bool
}

// DefaultOptions returns the options used by Normalize.
func DefaultOptions() Options {
	return Options{
		MaxPasses:        DefaultMaxPasses,
		MinRetainedRatio: DefaultMinRetainedRatio,
	}
}

// Result describes one normalization run.
type Result struct {
	Text     string
	Reverted bool // the cleaned text was too short and the original was returned
	Passes   int
}

// Normalizer is stateless and safe for concurrent use.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer, filling out-of-range options with defaults.
func New(opts Options) *Normalizer {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}
	if opts.MinRetainedRatio < 0 || opts.MinRetainedRatio > 1 {
		opts.MinRetainedRatio = DefaultMinRetainedRatio
	}
	return &Normalizer{opts: opts}
}

var defaultNormalizer = New(DefaultOptions())

// Normalize repairs text with the default options.
func Normalize(text string) string {
	return defaultNormalizer.Run(text).Text
}

// Normalize returns only the normalized text.
func (n *Normalizer) Normalize(text string) string {
	return n.Run(text).Text
}

// Run normalizes text and reports whether the destructive-result fallback fired.
func (n *Normalizer) Run(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	out := text
	passes := 0
	for passes < n.opts.MaxPasses {
		next := n.pass(out)
		passes++
		if next == out {
			break
		}
		out = next
	}

	original := utf8.RuneCountInString(text)
	if float64(utf8.RuneCountInString(out)) < float64(original)*n.opts.MinRetainedRatio {
		return Result{Text: text, Reverted: true, Passes: passes}
	}
	return Result{Text: out, Passes: passes}
}

func (n *Normalizer) pass(s string) string {
	s = collapseLoneRuns(s)

	s = periodUpperRe.ReplaceAllString(s, ". $1")
	s = commaLetterRe.ReplaceAllString(s, ", $1")
	s = letterParenRe.ReplaceAllString(s, "$1 (")
	s = parenLetterRe.ReplaceAllString(s, ") $1")
	if n.opts.SplitCaseTransitions {
		s = splitCaseTransitions(s)
	}

	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = multiNewlineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// collapseLoneRuns removes every single space that sits between two lone
// alphanumerics, so "G e e k s" becomes "Geeks" while "Normal text" is kept.
func collapseLoneRuns(s string) string {
	r := []rune(s)
	lone := func(i int) bool {
		if i < 0 || i >= len(r) || !isAlnum(r[i]) {
			return false
		}
		if i > 0 && isAlnum(r[i-1]) {
			return false
		}
		if i < len(r)-1 && isAlnum(r[i+1]) {
			return false
		}
		return true
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, c := range r {
		if c == ' ' && lone(i-1) && lone(i+1) {
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// splitCaseTransitions only splits when both sides have at least two letters,
// otherwise the split would produce lone characters the next pass rejoins.
func splitCaseTransitions(s string) string {
	r := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i, c := range r {
		if i >= 2 && i+1 < len(r) &&
			unicode.IsUpper(c) && unicode.IsLower(r[i-1]) &&
			unicode.IsLetter(r[i-2]) && unicode.IsLower(r[i+1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
