// Package loop drives a caller-supplied operation repeatedly over an
// established connection and carries the in-band "Active"/"Stop" status
// handshake between the two peers.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/framewire/internal/logging"
	"github.com/danmuck/framewire/internal/observability"
	"github.com/rs/zerolog"
)

const (
	StatusActive = "Active"
	StatusStop   = "Stop"
)

var (
	ErrInvalidMode = errors.New("loop: invalid termination mode")
	ErrNoLink      = errors.New("loop: mode requires a status link")
	ErrBusy        = errors.New("loop: already running")
)

// StatusLink carries status strings between peers. *channel.Channel
// satisfies it.
type StatusLink interface {
	SendString(ctx context.Context, s string) error
	ReceiveString(ctx context.Context) (string, error)
}

// Iteration is the read-only view of loop progress handed to each call.
type Iteration struct {
	Index     int
	StartedAt time.Time
	Elapsed   time.Duration
	IPS       float64
}

type Operation interface {
	Run(ctx context.Context, it Iteration) error
}

type OperationFunc func(ctx context.Context, it Iteration) error

func (f OperationFunc) Run(ctx context.Context, it Iteration) error {
	return f(ctx, it)
}

type modeKind int

const (
	modeForever modeKind = iota
	modeUntilPeerStop
	modeCount
)

// Mode selects when a loop ends.
type Mode struct {
	kind modeKind
	n    int
}

// RunForever repeats until Stop or ctx cancellation.
func RunForever() Mode { return Mode{kind: modeForever} }

// RunUntilPeerStop exchanges a status string after every iteration. The
// server ends when it receives "Stop"; the client ends after sending it.
func RunUntilPeerStop() Mode { return Mode{kind: modeUntilPeerStop} }

// RunCount executes exactly n iterations.
func RunCount(n int) Mode { return Mode{kind: modeCount, n: n} }

func (m Mode) String() string {
	switch m.kind {
	case modeForever:
		return "forever"
	case modeUntilPeerStop:
		return "until-peer-stop"
	case modeCount:
		return fmt.Sprintf("count(%d)", m.n)
	default:
		return "unknown"
	}
}

// ParseMode accepts "forever", "until-peer-stop" and "count" (which uses n).
func ParseMode(name string, n int) (Mode, error) {
	switch name {
	case "forever":
		return RunForever(), nil
	case "until-peer-stop", "until-stop", "":
		return RunUntilPeerStop(), nil
	case "count":
		if n < 0 {
			return Mode{}, fmt.Errorf("%w: negative count %d", ErrInvalidMode, n)
		}
		return RunCount(n), nil
	default:
		return Mode{}, fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
}

type Options struct {
	// Role labels logs and metrics.
	Role    string
	ShowIPS bool
	Debug   bool
}

// Summary describes a finished loop.
type Summary struct {
	Iterations int
	Elapsed    time.Duration
	IPS        float64
}

// Controller runs one loop at a time. Stop may be called from any
// goroutine.
type Controller struct {
	link    StatusLink
	role    string
	showIPS bool
	log     zerolog.Logger

	running atomic.Bool
	busy    atomic.Bool
}

func New(link StatusLink, opts Options) *Controller {
	role := opts.Role
	if role == "" {
		role = "local"
	}
	return &Controller{
		link:    link,
		role:    role,
		showIPS: opts.ShowIPS,
		log:     logging.For("loop", opts.Debug).With().Str("role", role).Logger(),
	}
}

// Stop asks the current loop to end at its next iteration boundary. An
// in-flight operation is not interrupted.
func (c *Controller) Stop() {
	c.running.Store(false)
}

// Running reports whether a loop is in progress and has not been stopped.
func (c *Controller) Running() bool {
	return c.busy.Load() && c.running.Load()
}

// ServerLoop runs op under mode. In until-peer-stop mode the server reads
// one status string after each iteration.
func (c *Controller) ServerLoop(ctx context.Context, op Operation, mode Mode) (Summary, error) {
	return c.run(ctx, op, mode, c.serverStep)
}

// ClientLoop runs op under mode. In until-peer-stop mode the client sends
// its own status after each iteration, and ends once it has sent "Stop".
func (c *Controller) ClientLoop(ctx context.Context, op Operation, mode Mode) (Summary, error) {
	return c.run(ctx, op, mode, c.clientStep)
}

// step runs after each until-peer-stop iteration and reports whether the
// loop is done.
type step func(ctx context.Context) (bool, error)

func (c *Controller) serverStep(ctx context.Context) (bool, error) {
	status, err := c.link.ReceiveString(ctx)
	if err != nil {
		return false, fmt.Errorf("loop: receive status: %w", err)
	}
	return status == StatusStop, nil
}

func (c *Controller) clientStep(ctx context.Context) (bool, error) {
	status := StatusActive
	if !c.running.Load() {
		status = StatusStop
	}
	if err := c.link.SendString(ctx, status); err != nil {
		return false, fmt.Errorf("loop: send status: %w", err)
	}
	return status == StatusStop, nil
}

func (c *Controller) run(ctx context.Context, op Operation, mode Mode, after step) (Summary, error) {
	if op == nil {
		return Summary{}, errors.New("loop: nil operation")
	}
	switch mode.kind {
	case modeForever:
	case modeUntilPeerStop:
		if c.link == nil {
			return Summary{}, ErrNoLink
		}
	case modeCount:
		if mode.n < 0 {
			return Summary{}, fmt.Errorf("%w: negative count %d", ErrInvalidMode, mode.n)
		}
	default:
		return Summary{}, ErrInvalidMode
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Summary{}, ErrBusy
	}
	c.running.Store(true)
	defer func() {
		c.running.Store(false)
		c.busy.Store(false)
	}()

	start := time.Now()
	c.log.Debug().Str("mode", mode.String()).Msg("loop started")
	var count int
	summary := func() Summary {
		elapsed := time.Since(start)
		return Summary{Iterations: count, Elapsed: elapsed, IPS: ips(count, elapsed)}
	}

	for {
		switch mode.kind {
		case modeForever:
			if !c.running.Load() {
				return c.finish(summary(), nil)
			}
		case modeCount:
			if count >= mode.n {
				return c.finish(summary(), nil)
			}
		}
		if err := ctx.Err(); err != nil {
			return c.finish(summary(), err)
		}

		elapsed := time.Since(start)
		it := Iteration{
			Index:     count,
			StartedAt: start,
			Elapsed:   elapsed,
			IPS:       ips(count, elapsed),
		}
		if err := op.Run(ctx, it); err != nil {
			return c.finish(summary(), fmt.Errorf("loop: iteration %d: %w", count, err))
		}
		count++
		c.report(count, time.Since(start))

		if mode.kind == modeUntilPeerStop {
			done, err := after(ctx)
			if err != nil {
				return c.finish(summary(), err)
			}
			if done {
				return c.finish(summary(), nil)
			}
		}
	}
}

func (c *Controller) report(count int, elapsed time.Duration) {
	rate := ips(count, elapsed)
	observability.RecordLoopIteration(c.role, rate)
	ev := c.log.Debug()
	if c.showIPS {
		ev = c.log.Info()
	}
	ev.Int("iteration", count).Float64("ips", rate).Msg("loop iteration")
}

func (c *Controller) finish(s Summary, err error) (Summary, error) {
	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Int("iterations", s.Iterations).Dur("elapsed", s.Elapsed).Float64("ips", s.IPS).Msg("loop finished")
	return s, err
}

func ips(count int, elapsed time.Duration) float64 {
	if count == 0 || elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Seconds()
}
