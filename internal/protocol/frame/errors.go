package frame

import (
	"errors"
	"fmt"
)

var (
	ErrTokenMismatch   = errors.New("frame: token mismatch")
	ErrNumberOverflow  = errors.New("frame: number does not fit fixed width")
	ErrNonFinite       = errors.New("frame: non-finite float")
	ErrMalformedNumber = errors.New("frame: malformed number")
	ErrMalformedList   = errors.New("frame: malformed list")
	ErrInvalidLength   = errors.New("frame: invalid length prefix")
)

// Boundary names the side of a wrapped payload that failed validation.
type Boundary string

const (
	BoundaryStart Boundary = "start"
	BoundaryEnd   Boundary = "end"
)

// TokenMismatchError reports a frame whose sentinel tokens are missing or
// misplaced. It usually means the peers have desynchronized.
type TokenMismatchError struct {
	Boundary Boundary
	Token    string
	Len      int
}

func (e *TokenMismatchError) Error() string {
	if e.Boundary == BoundaryStart {
		return fmt.Sprintf("frame: start token %q not found at beginning of %d-byte message; "+
			"check that both peers send the same kind of data and use the same tokens", e.Token, e.Len)
	}
	return fmt.Sprintf("frame: end token %q not found at end of %d-byte message; "+
		"check that both peers use the same tokens, or increase the inter-packet delay", e.Token, e.Len)
}

func (e *TokenMismatchError) Is(target error) bool {
	return target == ErrTokenMismatch
}
