package uid

import (
	"regexp"
	"strings"
)

// Pattern is a compiled UID match expression.
type Pattern struct {
	source string
	re     *regexp.Regexp
}

// CompileMatch compiles a UID string into an anchored match expression.
// Every character is matched literally except "*", which matches any run of
// characters. The result never matches a strict substring or superstring of
// a wildcard-free source.
func CompileMatch(s string) *Pattern {
	parts := strings.Split(s, Wildcard)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	expr := "^" + strings.Join(parts, "(.*)") + "$"
	return &Pattern{source: s, re: regexp.MustCompile(expr)}
}

// MatchString reports whether a stored uid satisfies the pattern.
func (p *Pattern) MatchString(s string) bool { return p.re.MatchString(s) }

// String returns the source the pattern was compiled from.
func (p *Pattern) String() string { return p.source }

// Expr returns the compiled regular expression text.
func (p *Pattern) Expr() string { return p.re.String() }

// HasWildcard reports whether the pattern matches more than one string.
func (p *Pattern) HasWildcard() bool { return strings.Contains(p.source, Wildcard) }

// LiteralPrefix returns the text every match must start with.
// For a wildcard-free pattern this is the whole source.
func (p *Pattern) LiteralPrefix() string {
	if i := strings.Index(p.source, Wildcard); i >= 0 {
		return p.source[:i]
	}
	return p.source
}
