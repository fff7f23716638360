package cursor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/graphd/model"
)

// ErrSyntax is the base error for malformed cursor text. All scanner
// failures satisfy errors.Is(err, ErrSyntax).
var ErrSyntax = errors.New("cursor: syntax error")

// SplitComponents splits a cursor into its "/"-joined top-level components.
// Separators inside balanced parentheses do not split.
func SplitComponents(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '/':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// TypeTag splits "tag:rest" on the first colon. An empty tag means the
// text did not carry one.
func TypeTag(s string) (tag, rest string) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", s
	}
	return s[:i], s[i+1:]
}

// Scanner consumes cursor text left to right.
type Scanner struct {
	s   string
	pos int
}

// NewScanner returns a scanner over s.
func NewScanner(s string) *Scanner {
	return &Scanner{s: s}
}

// EOF reports whether all input has been consumed.
func (sc *Scanner) EOF() bool {
	return sc.pos >= len(sc.s)
}

// Peek returns the next byte without consuming it, or 0 at EOF.
func (sc *Scanner) Peek() byte {
	if sc.EOF() {
		return 0
	}
	return sc.s[sc.pos]
}

// Rest returns the unconsumed remainder.
func (sc *Scanner) Rest() string {
	return sc.s[sc.pos:]
}

// Expect consumes the given literal prefix.
func (sc *Scanner) Expect(lit string) error {
	if !strings.HasPrefix(sc.s[sc.pos:], lit) {
		return fmt.Errorf("%w: expected %q at offset %d in %q", ErrSyntax, lit, sc.pos, sc.s)
	}
	sc.pos += len(lit)
	return nil
}

// Accept consumes the literal if present and reports whether it did.
func (sc *Scanner) Accept(lit string) bool {
	if strings.HasPrefix(sc.s[sc.pos:], lit) {
		sc.pos += len(lit)
		return true
	}
	return false
}

// ReadUint consumes a decimal unsigned integer.
func (sc *Scanner) ReadUint() (uint64, error) {
	start := sc.pos
	var v uint64
	for !sc.EOF() {
		c := sc.s[sc.pos]
		if c < '0' || c > '9' {
			break
		}
		nv := v*10 + uint64(c-'0')
		if nv < v {
			return 0, fmt.Errorf("%w: integer overflow at offset %d in %q", ErrSyntax, start, sc.s)
		}
		v = nv
		sc.pos++
	}
	if sc.pos == start {
		return 0, fmt.Errorf("%w: expected integer at offset %d in %q", ErrSyntax, start, sc.s)
	}
	return v, nil
}

// ReadID consumes an ID: a decimal value, or "-" for model.IDNone.
func (sc *Scanner) ReadID() (model.ID, error) {
	if sc.Accept("-") {
		return model.IDNone, nil
	}
	v, err := sc.ReadUint()
	if err != nil {
		return model.IDNone, err
	}
	if !model.ID(v).Valid() {
		return model.IDNone, fmt.Errorf("%w: id %d out of range in %q", ErrSyntax, v, sc.s)
	}
	return model.ID(v), nil
}

// ReadParen consumes a balanced "(...)" group and returns its contents.
func (sc *Scanner) ReadParen() (string, error) {
	if err := sc.Expect("("); err != nil {
		return "", err
	}
	depth := 1
	start := sc.pos
	for ; sc.pos < len(sc.s); sc.pos++ {
		switch sc.s[sc.pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				body := sc.s[start:sc.pos]
				sc.pos++
				return body, nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced parentheses at offset %d in %q", ErrSyntax, start-1, sc.s)
}
