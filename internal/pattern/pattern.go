// Package pattern wraps regexp2 so URL and index patterns accept the same
// syntax people write for Python's re module (lookarounds, backreferences,
// (?P<name>...) groups) and always match from the start of the subject.
package pattern

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/romangod6/sitemapdump/internal/errs"
)

// DefaultMatchTimeout bounds a single match so a pathological pattern cannot hang a run.
const DefaultMatchTimeout = time.Second

// Pattern is a compiled expression anchored at the start of the subject.
type Pattern struct {
	expr string
	re   *regexp2.Regexp
	// first is the regexp2 number of the first capturing group in source
	// order, 0 when there is none.
	first int
}

// Compile anchors expr at the start of the subject and compiles it.
func Compile(expr string) (*Pattern, error) {
	translated, first := translate(expr)

	// Compiled alone first so an unbalanced ")" cannot close the anchoring group.
	if _, err := regexp2.Compile(translated, regexp2.None); err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %w", errs.ErrConfig, expr, err)
	}

	re, err := regexp2.Compile(`\A(?:`+translated+`)`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %w", errs.ErrConfig, expr, err)
	}
	re.MatchTimeout = DefaultMatchTimeout

	p := &Pattern{expr: expr, re: re}
	switch {
	case !first.found:
	case first.name == "":
		// regexp2 numbers unnamed groups before named ones.
		p.first = 1
	default:
		p.first = re.GroupNumberFromName(first.name)
	}

	return p, nil
}

// String returns the expression as the user wrote it.
func (p *Pattern) String() string {
	return p.expr
}

// NumGroups reports the number of capture groups, named groups included.
func (p *Pattern) NumGroups() int {
	return len(p.re.GetGroupNumbers()) - 1
}

// MatchString reports whether s matches at its start. A match that times out
// counts as no match.
func (p *Pattern) MatchString(s string) bool {
	_, ok := p.match(s)
	return ok
}

// Group returns capture group n of the match at the start of s, numbered the
// way regexp2 numbers them. The second result is false when s does not match
// or group n took no part in the match.
func (p *Pattern) Group(s string, n int) (string, bool) {
	m, ok := p.match(s)
	if !ok {
		return "", false
	}
	return group(m, n)
}

// FirstGroup returns the first capturing group in the order the groups are
// written, named or not, the way Python's match.group(1) does.
func (p *Pattern) FirstGroup(s string) (string, bool) {
	if p.first <= 0 {
		return "", false
	}
	return p.Group(s, p.first)
}

func (p *Pattern) match(s string) (*regexp2.Match, bool) {
	m, err := p.re.FindStringMatch(s)
	if err != nil || m == nil || m.Index != 0 {
		return nil, false
	}
	return m, true
}

func group(m *regexp2.Match, n int) (string, bool) {
	g := m.GroupByNumber(n)
	if g == nil || len(g.Captures) == 0 {
		return "", false
	}
	return g.String(), true
}

type groupRef struct {
	found bool
	name  string
}

// translate rewrites Python-only group syntax ((?P<name>...), (?P=name)) into
// the form regexp2 understands and finds the first capturing group in source
// order. Escapes and character classes are skipped.
func translate(expr string) (string, groupRef) {
	var (
		b       strings.Builder
		first   groupRef
		inClass bool
	)

	record := func(name string) {
		if !first.found {
			first = groupRef{found: true, name: name}
		}
	}

	for i := 0; i < len(expr); i++ {
		c := expr[i]

		if c == '\\' {
			b.WriteByte(c)
			if i+1 < len(expr) {
				i++
				b.WriteByte(expr[i])
			}
			continue
		}

		if inClass {
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
			continue
		}

		if c == '[' {
			inClass = true
			b.WriteByte(c)
			// "]" first in a class, after an optional "^", is a literal.
			if i+1 < len(expr) && expr[i+1] == '^' {
				i++
				b.WriteByte('^')
			}
			if i+1 < len(expr) && expr[i+1] == ']' {
				i++
				b.WriteByte(']')
			}
			continue
		}

		if c != '(' {
			b.WriteByte(c)
			continue
		}

		rest := expr[i+1:]
		switch {
		case strings.HasPrefix(rest, "?P<"):
			record(nameUntil(rest[3:], '>'))
			b.WriteString("(?<")
			i += 3
			continue
		case strings.HasPrefix(rest, "?P="):
			if end := strings.IndexByte(rest, ')'); end > 3 {
				b.WriteString(`\k<` + rest[3:end] + `>`)
				i += 1 + end
				continue
			}
		case strings.HasPrefix(rest, "?<=") || strings.HasPrefix(rest, "?<!"):
		case strings.HasPrefix(rest, "?<"):
			record(nameUntil(rest[2:], '>'))
		case strings.HasPrefix(rest, "?'"):
			record(nameUntil(rest[2:], '\''))
		case !strings.HasPrefix(rest, "?"):
			record("")
		}
		b.WriteByte(c)
	}

	return b.String(), first
}

func nameUntil(s string, end byte) string {
	if i := strings.IndexByte(s, end); i >= 0 {
		return s[:i]
	}
	return s
}
