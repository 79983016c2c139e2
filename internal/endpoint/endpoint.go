// Package endpoint owns the lifecycle of the single byte-stream connection a
// framewire process talks over: bind/accept for servers, connect for
// clients, retry on setup failure, and teardown.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/framewire/internal/logging"
	"github.com/danmuck/framewire/internal/observability"
	"github.com/danmuck/framewire/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

type Family string

const (
	FamilyAny  Family = ""
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

type Transport string

const (
	TransportStream   Transport = "stream"
	TransportDatagram Transport = "datagram"
)

// Config describes one endpoint. Backlog is validated but advisory: the Go
// runtime sizes the listen queue and only one peer is ever accepted.
type Config struct {
	Role       Role
	Address    string
	Port       int
	Family     Family
	Transport  Transport
	Debug      bool
	AutoAccept bool
	Backlog    int
	ReusePort  bool
	Session    session.Config
}

func DefaultConfig() Config {
	return Config{
		Role:       RoleServer,
		Address:    "127.0.0.1",
		Port:       10000,
		Family:     FamilyIPv4,
		Transport:  TransportStream,
		AutoAccept: true,
		Backlog:    1,
		Session:    session.DefaultConfig(),
	}
}

func (c Config) Network() (string, error) {
	switch c.Family {
	case FamilyAny:
		return "tcp", nil
	case FamilyIPv4:
		return "tcp4", nil
	case FamilyIPv6:
		return "tcp6", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFamily, c.Family)
	}
}

func (c Config) HostPort() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func (c Config) Validate() error {
	switch c.Role {
	case RoleServer, RoleClient:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, c.Role)
	}
	if _, err := c.Network(); err != nil {
		return err
	}
	switch c.Transport {
	case TransportStream, "":
	default:
		return fmt.Errorf("%w: %q (only stream is supported)", ErrUnsupportedTransport, c.Transport)
	}
	if c.Role == RoleClient && strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("%w: client requires an address", ErrInvalidAddress)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidAddress, c.Port)
	}
	if c.Role == RoleClient && c.Port == 0 {
		return fmt.Errorf("%w: client requires a port", ErrInvalidAddress)
	}
	if c.Backlog < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidBacklog, c.Backlog)
	}
	return c.Session.Validate()
}

// Endpoint is one live peer connection. It is used by one caller at a
// time; only the lifecycle fields are guarded so Close may come from a
// signal handler.
type Endpoint struct {
	cfg Config
	id  string
	log zerolog.Logger
	rng *rand.Rand

	mu     sync.Mutex
	ln     net.Listener
	conn   net.Conn
	closed bool
}

// Open establishes the endpoint described by cfg. Servers listen and, when
// AutoAccept is set, block until one peer connects. Clients dial.
func Open(ctx context.Context, cfg Config) (*Endpoint, error) {
	if cfg.Transport == "" {
		cfg.Transport = TransportStream
	}
	if cfg.Backlog == 0 {
		cfg.Backlog = 1
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	e := &Endpoint{
		cfg: cfg,
		id:  id,
		log: logging.For("endpoint", cfg.Debug).With().
			Str("endpoint_id", id).
			Str("role", string(cfg.Role)).
			Logger(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	e.log.Debug().Str("addr", cfg.HostPort()).Msg("starting up")

	switch cfg.Role {
	case RoleServer:
		if err := e.listen(ctx); err != nil {
			return nil, err
		}
		if cfg.AutoAccept {
			if err := e.Accept(ctx); err != nil {
				_ = e.Close()
				return nil, err
			}
		}
	case RoleClient:
		if err := e.dial(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Endpoint) listen(ctx context.Context) error {
	network, _ := e.cfg.Network()
	lc := net.ListenConfig{Control: listenControl(e.cfg.ReusePort)}
	return e.withRetry(ctx, "bind", func(ctx context.Context) error {
		ln, err := lc.Listen(ctx, network, e.cfg.HostPort())
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.ln = ln
		e.mu.Unlock()
		e.log.Debug().Str("addr", ln.Addr().String()).Int("backlog", e.cfg.Backlog).Msg("listening")
		return nil
	})
}

func (e *Endpoint) dial(ctx context.Context) error {
	network, _ := e.cfg.Network()
	dialer := net.Dialer{Timeout: e.cfg.Session.ConnectTimeout}
	return e.withRetry(ctx, "connect", func(ctx context.Context) error {
		conn, err := dialer.DialContext(ctx, network, e.cfg.HostPort())
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.conn = conn
		e.mu.Unlock()
		e.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connected to server")
		return nil
	})
}

func (e *Endpoint) withRetry(ctx context.Context, op string, attemptFn func(context.Context) error) error {
	policy := e.cfg.Session.Retry
	var attempt int
	for {
		attempt++
		err := attemptFn(ctx)
		observability.RecordConnectAttempt(string(e.cfg.Role), err == nil)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.log.Warn().Err(err).Int("attempt", attempt).Str("op", op).Str("addr", e.cfg.HostPort()).Msg("setup attempt failed")
		if !policy.ShouldRetry(attempt) {
			return &SetupError{
				Role:         e.cfg.Role,
				Op:           op,
				Addr:         e.cfg.HostPort(),
				Attempts:     attempt,
				RetryEnabled: policy.Enabled,
				Err:          err,
			}
		}
		delay := session.NextRetryDelay(policy, attempt, e.rng)
		e.log.Info().Dur("delay", delay).Msg("will attempt again")
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Accept blocks until one peer connects to a listening server endpoint.
// Cancelling ctx closes the listener.
func (e *Endpoint) Accept(ctx context.Context) error {
	e.mu.Lock()
	ln, conn, closed := e.ln, e.conn, e.closed
	e.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case ln == nil:
		return ErrNotListening
	case conn != nil:
		return ErrAlreadyConnected
	}

	e.log.Info().Str("addr", ln.Addr().String()).Msg("waiting for a connection")
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	c, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("endpoint: accept: %w", err)
	}
	e.mu.Lock()
	e.conn = c
	e.mu.Unlock()
	e.log.Info().Str("remote", c.RemoteAddr().String()).Msg("connection established")
	return nil
}

// Close shuts the connection and listener down. Closing twice is a no-op.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.log.Debug().Msg("connection already closed")
		return nil
	}
	e.closed = true

	var errs []error
	if e.conn != nil {
		if err := e.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if e.ln != nil {
		if err := e.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	e.log.Info().Msg("connection closed")
	return errors.Join(errs...)
}

func (e *Endpoint) live() (net.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.conn == nil {
		return nil, ErrNotConnected
	}
	return e.conn, nil
}

// Read reads from the peer, bounded by the configured read timeout.
func (e *Endpoint) Read(p []byte) (int, error) {
	c, err := e.live()
	if err != nil {
		return 0, err
	}
	if t := e.cfg.Session.ReadTimeout; t > 0 {
		_ = c.SetReadDeadline(time.Now().Add(t))
	}
	return c.Read(p)
}

// Write writes to the peer, bounded by the configured write timeout.
func (e *Endpoint) Write(p []byte) (int, error) {
	c, err := e.live()
	if err != nil {
		return 0, err
	}
	if t := e.cfg.Session.WriteTimeout; t > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(t))
	}
	return c.Write(p)
}

func (e *Endpoint) SetDeadline(t time.Time) error {
	c, err := e.live()
	if err != nil {
		return err
	}
	return c.SetDeadline(t)
}

func (e *Endpoint) Connected() bool {
	_, err := e.live()
	return err == nil
}

func (e *Endpoint) ID() string     { return e.id }
func (e *Endpoint) Role() Role     { return e.cfg.Role }
func (e *Endpoint) Config() Config { return e.cfg }

// ListenAddr is the bound address of a server endpoint, or nil.
func (e *Endpoint) ListenAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

func (e *Endpoint) RemoteAddr() net.Addr {
	c, err := e.live()
	if err != nil {
		return nil
	}
	return c.RemoteAddr()
}
