package survey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrBadLiteral is returned for value-map strings that are not a flat
// mapping of integer codes to string labels.
var ErrBadLiteral = errors.New("malformed value map literal")

// ParseValueMap parses a stringified value map such as
// `{1: 'Yes', 2: "No"}` or `{"1.0": "Yes"}`. Only integer keys and quoted
// string labels are accepted; nothing is evaluated.
func ParseValueMap(s string) (*ValueMap, error) {
	p := &literalParser{src: []rune(strings.TrimSpace(s))}
	vm := NewValueMap()
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			break
		}
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		p.skipSpace()
		label, err := p.quoted()
		if err != nil {
			return nil, err
		}
		vm.Set(key, label)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, fmt.Errorf("%w: expected ',' or '}' at %d", ErrBadLiteral, p.pos)
		}
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: trailing input at %d", ErrBadLiteral, p.pos)
	}
	return vm, nil
}

type literalParser struct {
	src []rune
	pos int
}

func (p *literalParser) peek() rune {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *literalParser) expect(r rune) error {
	p.skipSpace()
	if p.peek() != r {
		return fmt.Errorf("%w: expected %q at %d", ErrBadLiteral, r, p.pos)
	}
	p.pos++
	return nil
}

// key reads a bare or quoted number and truncates "1.0" style floats.
func (p *literalParser) key() (int, error) {
	p.skipSpace()
	var raw string
	if c := p.peek(); c == '\'' || c == '"' {
		q, err := p.quoted()
		if err != nil {
			return 0, err
		}
		raw = q
	} else {
		start := p.pos
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			if c == '-' || c == '+' || c == '.' || unicode.IsDigit(c) {
				p.pos++
				continue
			}
			break
		}
		raw = string(p.src[start:p.pos])
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: non-integer key %q", ErrBadLiteral, raw)
	}
	return int(f), nil
}

func (p *literalParser) quoted() (string, error) {
	q := p.peek()
	if q != '\'' && q != '"' {
		return "", fmt.Errorf("%w: expected quoted string at %d", ErrBadLiteral, p.pos)
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == '\\' && p.pos < len(p.src):
			n := p.src[p.pos]
			p.pos++
			switch n {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(n)
			}
		case c == q:
			return b.String(), nil
		default:
			b.WriteRune(c)
		}
	}
	return "", fmt.Errorf("%w: unterminated string", ErrBadLiteral)
}
