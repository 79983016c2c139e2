// Package channel is the typed send/receive surface over one established
// byte stream. Every value travels as either a fixed-width numeric frame or
// a length-prefixed frame, optionally wrapped in sentinel tokens.
package channel

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/danmuck/framewire/internal/imagecodec"
	"github.com/danmuck/framewire/internal/logging"
	"github.com/danmuck/framewire/internal/observability"
	"github.com/danmuck/framewire/internal/protocol/chunk"
	"github.com/danmuck/framewire/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// Kind labels a frame for logs and metrics.
type Kind string

const (
	KindBool      Kind = "bool"
	KindString    Kind = "string"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindIntList   Kind = "int_list"
	KindFloatList Kind = "float_list"
	KindImage     Kind = "image"
	KindBytes     Kind = "bytes"
)

var (
	ErrNilStream     = errors.New("channel: nil stream")
	ErrFrameTooLarge = errors.New("channel: declared frame length exceeds limit")
)

// DefaultMaxFrameSize bounds the allocation a single length prefix can cause.
const DefaultMaxFrameSize = 64 << 20

// Options must match on both peers, except Debug and MaxFrameSize.
type Options struct {
	Tokens  frame.TokenPair
	Packets chunk.Policy
	Images  imagecodec.Codec
	// MaxFrameSize caps the declared length a receiver will allocate for.
	// Zero means no cap; DefaultOptions uses DefaultMaxFrameSize.
	MaxFrameSize int
	Debug        bool
}

func DefaultOptions() Options {
	return Options{
		Packets:      chunk.DefaultPolicy(),
		Images:       imagecodec.JPEG{},
		MaxFrameSize: DefaultMaxFrameSize,
	}
}

// Channel is not safe for concurrent use; frames on one stream are strictly
// ordered and a half-read frame leaves the stream unusable.
type Channel struct {
	rw   io.ReadWriter
	opts Options
	log  zerolog.Logger
}

func New(rw io.ReadWriter, opts Options) (*Channel, error) {
	if rw == nil {
		return nil, ErrNilStream
	}
	if opts.Packets == (chunk.Policy{}) {
		opts.Packets = chunk.DefaultPolicy()
	}
	if err := opts.Packets.Validate(); err != nil {
		return nil, err
	}
	if opts.Images == nil {
		opts.Images = imagecodec.JPEG{}
	}
	if opts.MaxFrameSize < 0 {
		return nil, fmt.Errorf("channel: negative max frame size %d", opts.MaxFrameSize)
	}
	return &Channel{
		rw:   rw,
		opts: opts,
		log:  logging.For("channel", opts.Debug),
	}, nil
}

func (c *Channel) Options() Options { return c.opts }

func (c *Channel) SendBool(ctx context.Context, v bool) error {
	err := c.sendFrame(ctx, KindBool, []byte(frame.FormatBool(v)))
	observability.RecordFrame(observability.DirectionSend, string(KindBool), err)
	return err
}

// ReceiveBool reports ok=false, with a false value, when the peer sent
// text that is not a boolean. That case is not an error.
func (c *Channel) ReceiveBool(ctx context.Context) (value bool, ok bool, err error) {
	payload, err := c.receiveFrame(ctx, KindBool)
	observability.RecordFrame(observability.DirectionReceive, string(KindBool), err)
	if err != nil {
		return false, false, err
	}
	value, ok = frame.ParseBool(string(payload))
	if !ok {
		c.log.Warn().Str("payload", string(payload)).Msg("received invalid bool")
	}
	return value, ok, nil
}

func (c *Channel) SendString(ctx context.Context, s string) error {
	err := c.sendFrame(ctx, KindString, []byte(s))
	observability.RecordFrame(observability.DirectionSend, string(KindString), err)
	return err
}

func (c *Channel) ReceiveString(ctx context.Context) (string, error) {
	payload, err := c.receiveFrame(ctx, KindString)
	observability.RecordFrame(observability.DirectionReceive, string(KindString), err)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (c *Channel) SendInt(ctx context.Context, v int64) error {
	text, err := frame.EncodeInt(v)
	if err == nil {
		err = c.sendNumeric(ctx, KindInt, text)
	}
	observability.RecordFrame(observability.DirectionSend, string(KindInt), err)
	return err
}

func (c *Channel) ReceiveInt(ctx context.Context) (int64, error) {
	text, err := c.receiveNumeric(ctx, KindInt)
	var v int64
	if err == nil {
		v, err = frame.DecodeInt(text)
	}
	observability.RecordFrame(observability.DirectionReceive, string(KindInt), err)
	return v, err
}

// SendFloat keeps six fractional digits; see frame.EncodeFloat.
func (c *Channel) SendFloat(ctx context.Context, v float64) error {
	text, err := frame.EncodeFloat(v)
	if err == nil {
		err = c.sendNumeric(ctx, KindFloat, text)
	}
	observability.RecordFrame(observability.DirectionSend, string(KindFloat), err)
	return err
}

func (c *Channel) ReceiveFloat(ctx context.Context) (float64, error) {
	text, err := c.receiveNumeric(ctx, KindFloat)
	var v float64
	if err == nil {
		v, err = frame.DecodeFloat(text)
	}
	observability.RecordFrame(observability.DirectionReceive, string(KindFloat), err)
	return v, err
}

func (c *Channel) SendIntList(ctx context.Context, values []int64) error {
	err := c.sendFrame(ctx, KindIntList, []byte(frame.FormatIntList(values)))
	observability.RecordFrame(observability.DirectionSend, string(KindIntList), err)
	return err
}

func (c *Channel) ReceiveIntList(ctx context.Context) ([]int64, error) {
	payload, err := c.receiveFrame(ctx, KindIntList)
	var values []int64
	if err == nil {
		values, err = frame.ParseIntList(string(payload))
	}
	observability.RecordFrame(observability.DirectionReceive, string(KindIntList), err)
	return values, err
}

func (c *Channel) SendFloatList(ctx context.Context, values []float64) error {
	text, err := frame.FormatFloatList(values)
	if err == nil {
		err = c.sendFrame(ctx, KindFloatList, []byte(text))
	}
	observability.RecordFrame(observability.DirectionSend, string(KindFloatList), err)
	return err
}

func (c *Channel) ReceiveFloatList(ctx context.Context) ([]float64, error) {
	payload, err := c.receiveFrame(ctx, KindFloatList)
	var values []float64
	if err == nil {
		values, err = frame.ParseFloatList(string(payload))
	}
	observability.RecordFrame(observability.DirectionReceive, string(KindFloatList), err)
	return values, err
}

// SendImage encodes img with the configured codec and sends the result as
// an opaque binary frame.
func (c *Channel) SendImage(ctx context.Context, img image.Image) error {
	data, err := c.opts.Images.Encode(img)
	if err == nil {
		err = c.sendFrame(ctx, KindImage, data)
	}
	observability.RecordFrame(observability.DirectionSend, string(KindImage), err)
	return err
}

func (c *Channel) ReceiveImage(ctx context.Context) (image.Image, error) {
	data, err := c.receiveFrame(ctx, KindImage)
	var img image.Image
	if err == nil {
		img, err = c.opts.Images.Decode(data)
	}
	observability.RecordFrame(observability.DirectionReceive, string(KindImage), err)
	return img, err
}

func (c *Channel) SendBytes(ctx context.Context, data []byte) error {
	err := c.sendFrame(ctx, KindBytes, data)
	observability.RecordFrame(observability.DirectionSend, string(KindBytes), err)
	return err
}

func (c *Channel) ReceiveBytes(ctx context.Context) ([]byte, error) {
	data, err := c.receiveFrame(ctx, KindBytes)
	observability.RecordFrame(observability.DirectionReceive, string(KindBytes), err)
	return data, err
}

func (c *Channel) sendNumeric(ctx context.Context, kind Kind, text string) error {
	defer c.bind(ctx)()
	wire := []byte(c.opts.Tokens.WrapString(text))
	if err := c.send(ctx, wire); err != nil {
		return c.fail(ctx, fmt.Errorf("channel: send %s: %w", kind, err))
	}
	c.log.Debug().Str("kind", string(kind)).Str("value", text).Msg("sent numeric frame")
	return nil
}

func (c *Channel) receiveNumeric(ctx context.Context, kind Kind) (string, error) {
	defer c.bind(ctx)()
	wire, err := c.receive(ctx, c.opts.Tokens.NumericFrameLen())
	if err != nil {
		return "", c.fail(ctx, fmt.Errorf("channel: receive %s: %w", kind, err))
	}
	text, err := c.unwrap(wire)
	if err != nil {
		return "", fmt.Errorf("channel: receive %s: %w", kind, err)
	}
	c.log.Debug().Str("kind", string(kind)).Str("value", text).Msg("received numeric frame")
	return text, nil
}

// sendFrame writes the token-wrapped length prefix, then the wrapped
// payload. The prefix counts wrapped bytes.
func (c *Channel) sendFrame(ctx context.Context, kind Kind, payload []byte) error {
	defer c.bind(ctx)()
	wrapped := c.opts.Tokens.Wrap(payload)
	prefix, err := frame.EncodeLength(len(wrapped))
	if err != nil {
		return fmt.Errorf("channel: send %s: %w", kind, err)
	}
	if err := c.send(ctx, []byte(c.opts.Tokens.WrapString(prefix))); err != nil {
		return c.fail(ctx, fmt.Errorf("channel: send %s length: %w", kind, err))
	}
	if err := c.send(ctx, wrapped); err != nil {
		return c.fail(ctx, fmt.Errorf("channel: send %s payload: %w", kind, err))
	}
	c.log.Debug().Str("kind", string(kind)).Int("len", len(wrapped)).Msg("sent frame")
	return nil
}

func (c *Channel) receiveFrame(ctx context.Context, kind Kind) ([]byte, error) {
	defer c.bind(ctx)()
	head, err := c.receive(ctx, c.opts.Tokens.NumericFrameLen())
	if err != nil {
		return nil, c.fail(ctx, fmt.Errorf("channel: receive %s length: %w", kind, err))
	}
	prefix, err := c.unwrap(head)
	if err != nil {
		return nil, fmt.Errorf("channel: receive %s length: %w", kind, err)
	}
	n, err := frame.DecodeLength(prefix)
	if err != nil {
		return nil, fmt.Errorf("channel: receive %s length: %w", kind, err)
	}
	if c.opts.MaxFrameSize > 0 && n > c.opts.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, c.opts.MaxFrameSize)
	}
	wrapped, err := c.receive(ctx, n)
	if err != nil {
		return nil, c.fail(ctx, fmt.Errorf("channel: receive %s payload: %w", kind, err))
	}
	payload, err := c.opts.Tokens.Unwrap(wrapped)
	if err != nil {
		c.violation(err)
		return nil, fmt.Errorf("channel: receive %s payload: %w", kind, err)
	}
	c.log.Debug().Str("kind", string(kind)).Int("len", n).Msg("received frame")
	return payload, nil
}

func (c *Channel) send(ctx context.Context, data []byte) error {
	st, err := chunk.Send(ctx, c.rw, data, c.opts.Packets)
	observability.RecordTransfer(observability.DirectionSend, st.Bytes, st.Segments)
	return err
}

func (c *Channel) receive(ctx context.Context, n int) ([]byte, error) {
	data, st, err := chunk.Receive(ctx, c.rw, n, c.opts.Packets)
	observability.RecordTransfer(observability.DirectionReceive, st.Bytes, st.Segments)
	if err == nil && st.Segments > 1 {
		c.log.Debug().Int("bytes", st.Bytes).Int("segments", st.Segments).Msg("reassembled payload")
	}
	return data, err
}

func (c *Channel) unwrap(wire []byte) (string, error) {
	payload, err := c.opts.Tokens.Unwrap(wire)
	if err != nil {
		c.violation(err)
		return "", err
	}
	return string(payload), nil
}

func (c *Channel) violation(err error) {
	var tm *frame.TokenMismatchError
	if errors.As(err, &tm) {
		observability.RecordProtocolViolation(string(tm.Boundary))
		c.log.Error().Str("boundary", string(tm.Boundary)).Err(err).Msg("protocol violation")
	}
}

// fail prefers the context error when cancellation caused the I/O failure.
func (c *Channel) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// bind maps ctx onto the stream deadline when the stream supports one, so a
// cancelled or expired ctx unblocks a pending read or write. A ctx without a
// deadline clears any deadline left by an earlier call. The returned func
// waits out a racing cancellation and clears the deadline again.
func (c *Channel) bind(ctx context.Context) func() {
	d, ok := c.rw.(deadliner)
	if !ok {
		return func() {}
	}
	if dl, hasDeadline := ctx.Deadline(); hasDeadline {
		_ = d.SetDeadline(dl)
	} else {
		_ = d.SetDeadline(time.Time{})
	}
	if ctx.Done() == nil {
		return func() {}
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = d.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		if !stop() {
			<-fired
		}
		_ = d.SetDeadline(time.Time{})
	}
}
