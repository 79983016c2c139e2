package frame

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumericWidth is the fixed character width of every numeric frame,
// length prefixes included.
const NumericWidth = 16

// TokenPair holds the optional sentinels placed around every payload.
// The zero value disables wrapping.
type TokenPair struct {
	Start string
	End   string
}

func (t TokenPair) IsZero() bool {
	return t.Start == "" && t.End == ""
}

// Overhead is the number of bytes wrapping adds to a payload.
func (t TokenPair) Overhead() int {
	return len(t.Start) + len(t.End)
}

// NumericFrameLen is the exact byte count a receiver reads for one bare
// numeric frame.
func (t TokenPair) NumericFrameLen() int {
	return NumericWidth + t.Overhead()
}

func (t TokenPair) Wrap(payload []byte) []byte {
	if t.IsZero() {
		return payload
	}
	out := make([]byte, 0, len(payload)+t.Overhead())
	out = append(out, t.Start...)
	out = append(out, payload...)
	out = append(out, t.End...)
	return out
}

func (t TokenPair) WrapString(payload string) string {
	if t.IsZero() {
		return payload
	}
	return t.Start + payload + t.End
}

// Unwrap validates that msg begins with the start token and that the
// remainder ends with the end token, and returns the payload between them.
func (t TokenPair) Unwrap(msg []byte) ([]byte, error) {
	if t.IsZero() {
		return msg, nil
	}
	if !bytes.HasPrefix(msg, []byte(t.Start)) {
		return nil, &TokenMismatchError{Boundary: BoundaryStart, Token: t.Start, Len: len(msg)}
	}
	rest := msg[len(t.Start):]
	if !bytes.HasSuffix(rest, []byte(t.End)) {
		return nil, &TokenMismatchError{Boundary: BoundaryEnd, Token: t.End, Len: len(msg)}
	}
	return rest[:len(rest)-len(t.End)], nil
}

func (t TokenPair) UnwrapString(msg string) (string, error) {
	out, err := t.Unwrap([]byte(msg))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodeInt renders v as exactly NumericWidth characters, zero padded and
// sign aware. Values needing more characters are rejected, never truncated.
func EncodeInt(v int64) (string, error) {
	s := fmt.Sprintf("%016d", v)
	if len(s) > NumericWidth {
		return "", fmt.Errorf("%w: %d", ErrNumberOverflow, v)
	}
	return s, nil
}

// EncodeFloat renders v with six fractional digits, zero padded to
// NumericWidth characters. Precision past the sixth decimal is lost.
func EncodeFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: %v", ErrNonFinite, v)
	}
	s := fmt.Sprintf("%016f", v)
	if len(s) > NumericWidth {
		return "", fmt.Errorf("%w: %v", ErrNumberOverflow, v)
	}
	return s, nil
}

func DecodeInt(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	return v, nil
}

func DecodeFloat(s string) (float64, error) {
	raw := strings.TrimSpace(s)
	if !isDecimalLiteral(raw) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	return v, nil
}

// EncodeLength renders a payload length prefix.
func EncodeLength(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return EncodeInt(int64(n))
}

func DecodeLength(s string) (int, error) {
	v, err := DecodeInt(s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, v)
	}
	return int(v), nil
}

// FormatBool returns the wire text of a boolean.
func FormatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// ParseBool accepts true/false and the 1/0 forms some peers send.
// ok is false for any other text; value is then false.
func ParseBool(s string) (value bool, ok bool) {
	switch s {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

func isDecimalLiteral(s string) bool {
	if s == "" {
		return false
	}
	digits := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '+' || c == '-' || c == '.' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return digits
}
