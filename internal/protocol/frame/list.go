package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatIntList renders values as "[1, 2, 3]".
func FormatIntList(values []int64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatInt(v, 10))
	}
	b.WriteByte(']')
	return b.String()
}

// FormatFloatList renders values as "[0.0, 0.25, 1e-05]": shortest
// round-trip digits, integral values keep a ".0" suffix and very small or
// very large magnitudes switch to exponent form.
func FormatFloatList(values []float64) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		s, err := formatListFloat(v)
		if err != nil {
			return "", fmt.Errorf("element %d: %w", i, err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s)
	}
	b.WriteByte(']')
	return b.String(), nil
}

func formatListFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: %v", ErrNonFinite, v)
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64), nil
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

func ParseIntList(s string) ([]int64, error) {
	out := []int64{}
	err := scanList(s, func(tok string) error {
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad int element %q", ErrMalformedList, tok)
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ParseFloatList(s string) ([]float64, error) {
	out := []float64{}
	err := scanList(s, func(tok string) error {
		if !isDecimalLiteral(tok) {
			return fmt.Errorf("%w: bad float element %q", ErrMalformedList, tok)
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("%w: bad float element %q", ErrMalformedList, tok)
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scanList walks '[' elem (',' elem)* ','? ']' with optional whitespace
// around every token and hands each element literal to fn.
func scanList(s string, fn func(tok string) error) error {
	sc := listScanner{src: s}
	sc.skipSpace()
	if !sc.consume('[') {
		return fmt.Errorf("%w: missing '['", ErrMalformedList)
	}
	sc.skipSpace()
	if sc.consume(']') {
		return sc.finish()
	}
	for {
		tok := sc.element()
		if tok == "" {
			return fmt.Errorf("%w: empty element at offset %d", ErrMalformedList, sc.pos)
		}
		if err := fn(tok); err != nil {
			return err
		}
		sc.skipSpace()
		switch {
		case sc.consume(']'):
			return sc.finish()
		case sc.consume(','):
			sc.skipSpace()
			if sc.consume(']') {
				return sc.finish()
			}
		default:
			return fmt.Errorf("%w: expected ',' or ']' at offset %d", ErrMalformedList, sc.pos)
		}
	}
}

type listScanner struct {
	src string
	pos int
}

func (sc *listScanner) skipSpace() {
	for sc.pos < len(sc.src) {
		switch sc.src[sc.pos] {
		case ' ', '\t', '\r', '\n':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *listScanner) consume(c byte) bool {
	if sc.pos < len(sc.src) && sc.src[sc.pos] == c {
		sc.pos++
		return true
	}
	return false
}

func (sc *listScanner) element() string {
	start := sc.pos
	for sc.pos < len(sc.src) {
		switch sc.src[sc.pos] {
		case ',', ']', '[', ' ', '\t', '\r', '\n':
			return sc.src[start:sc.pos]
		}
		sc.pos++
	}
	return sc.src[start:sc.pos]
}

func (sc *listScanner) finish() error {
	sc.skipSpace()
	if sc.pos != len(sc.src) {
		return fmt.Errorf("%w: trailing data at offset %d", ErrMalformedList, sc.pos)
	}
	return nil
}
