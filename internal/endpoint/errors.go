package endpoint

import (
	"errors"
	"fmt"
)

var (
	ErrSetupFailed          = errors.New("endpoint: setup failed")
	ErrNotConnected         = errors.New("endpoint: not connected")
	ErrNotListening         = errors.New("endpoint: not listening")
	ErrAlreadyConnected     = errors.New("endpoint: already connected")
	ErrClosed               = errors.New("endpoint: closed")
	ErrInvalidRole          = errors.New("endpoint: invalid role")
	ErrInvalidFamily        = errors.New("endpoint: invalid transport family")
	ErrUnsupportedTransport = errors.New("endpoint: unsupported transport type")
	ErrInvalidAddress       = errors.New("endpoint: invalid address")
	ErrInvalidBacklog       = errors.New("endpoint: invalid backlog")
)

// SetupError is returned when bind or connect fails and the retry policy
// does not allow another attempt.
type SetupError struct {
	Role         Role
	Op           string
	Addr         string
	Attempts     int
	RetryEnabled bool
	Err          error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("endpoint: %s %s %s failed after %d attempt(s): %v", e.Role, e.Op, e.Addr, e.Attempts, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func (e *SetupError) Is(target error) bool {
	return target == ErrSetupFailed
}

// Hint is operator guidance for the failure.
func (e *SetupError) Hint() string {
	if e.RetryEnabled {
		return fmt.Sprintf("gave up after %d attempts; raise retry max_attempts or check that %s is reachable", e.Attempts, e.Addr)
	}
	if e.Role == RoleServer {
		return "make sure the address is free, or enable retry to keep polling at a fixed interval; " +
			"a server that just exited usually releases its port within a few seconds"
	}
	return "make sure the server is up at " + e.Addr + ", or enable retry to keep polling at a fixed interval"
}
