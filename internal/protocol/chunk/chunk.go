// Package chunk moves opaque byte payloads across a stream in bounded,
// paced segments and reassembles payloads of a declared length.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"
)

const (
	MaxPacketSizeLimit      = 65535
	DefaultMaxPacketSize    = 59625
	DefaultInterPacketDelay = 50 * time.Microsecond

	// maxEmptyReads matches bufio's tolerance for (0, nil) reads.
	maxEmptyReads = 100
)

var (
	ErrStreamClosed  = errors.New("chunk: stream closed before payload completed")
	ErrInvalidPolicy = errors.New("chunk: invalid packet policy")
	ErrShortWrite    = errors.New("chunk: short write")
)

// Policy bounds and paces segment transfer. It never changes what a
// payload contains.
type Policy struct {
	MaxPacketSize    int
	InterPacketDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxPacketSize:    DefaultMaxPacketSize,
		InterPacketDelay: DefaultInterPacketDelay,
	}
}

func (p Policy) Validate() error {
	if p.MaxPacketSize <= 0 || p.MaxPacketSize > MaxPacketSizeLimit {
		return fmt.Errorf("%w: max packet size %d not in (0, %d]", ErrInvalidPolicy, p.MaxPacketSize, MaxPacketSizeLimit)
	}
	if p.InterPacketDelay < 0 {
		return fmt.Errorf("%w: negative inter-packet delay %v", ErrInvalidPolicy, p.InterPacketDelay)
	}
	return nil
}

// Segments reports how many segments a payload of n bytes occupies.
func (p Policy) Segments(n int) int {
	if n <= 0 || p.MaxPacketSize <= 0 {
		return 0
	}
	return (n + p.MaxPacketSize - 1) / p.MaxPacketSize
}

// Stats describes one completed transfer.
type Stats struct {
	Bytes    int
	Segments int
}

// Send writes data in segments of at most p.MaxPacketSize bytes, waiting
// p.InterPacketDelay between consecutive segments.
func Send(ctx context.Context, w io.Writer, data []byte, p Policy) (Stats, error) {
	if err := p.Validate(); err != nil {
		return Stats{}, err
	}
	pacer := newPacer(p.InterPacketDelay)
	var st Stats
	for st.Bytes < len(data) {
		if err := pacer.Wait(ctx); err != nil {
			return st, err
		}
		seg := data[st.Bytes:min(st.Bytes+p.MaxPacketSize, len(data))]
		n, err := w.Write(seg)
		st.Bytes += n
		if err != nil {
			return st, err
		}
		if n != len(seg) {
			return st, ErrShortWrite
		}
		st.Segments++
	}
	return st, nil
}

// Receive reads exactly n bytes using reads of at most p.MaxPacketSize
// bytes. A read returning fewer bytes than asked is continued against the
// remaining count. A reader that keeps returning no data and no error
// fails with io.ErrNoProgress.
func Receive(ctx context.Context, r io.Reader, n int, p Policy) ([]byte, Stats, error) {
	if err := p.Validate(); err != nil {
		return nil, Stats{}, err
	}
	if n < 0 {
		return nil, Stats{}, fmt.Errorf("chunk: negative receive length %d", n)
	}
	buf := make([]byte, n)
	var st Stats
	empty := 0
	for st.Bytes < n {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		end := min(st.Bytes+p.MaxPacketSize, n)
		k, err := r.Read(buf[st.Bytes:end])
		if k > 0 {
			st.Bytes += k
			st.Segments++
			empty = 0
		} else if err == nil {
			empty++
			if empty >= maxEmptyReads {
				return nil, st, fmt.Errorf("%w: got %d of %d bytes", io.ErrNoProgress, st.Bytes, n)
			}
		}
		if err != nil {
			if st.Bytes == n {
				break
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, st, fmt.Errorf("%w: got %d of %d bytes", ErrStreamClosed, st.Bytes, n)
			}
			return nil, st, err
		}
	}
	return buf, st, nil
}

// newPacer lets the first segment through at once and spaces the rest by
// delay.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
