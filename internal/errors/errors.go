// Package errors defines the error taxonomy for the enforcement agent.
//
// Every failure the verification loop can observe resolves into one of
// five categories, and the category alone decides the controller branch:
//
//   - ErrConfig: fatal, triggers self-destruct (or plain exit when disabled)
//   - ErrNetwork: recoverable, retried on an interval, never triggers a kill
//   - ErrUnauthorized: fatal, always triggers the kill engine
//   - ErrProcessControl: best-effort, logged, the kill sequence continues
//   - ErrSecureDelete: best-effort, logged per pass, unlink still attempted
//
// Nothing is propagated past the controller: the process reports outcomes
// only through its exit code and, when present, the health channel.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the five failure categories.
var (
	ErrConfig         = errors.New("configuration error")
	ErrNetwork        = errors.New("network error")
	ErrUnauthorized   = errors.New("license verification denied")
	ErrProcessControl = errors.New("process control error")
	ErrSecureDelete   = errors.New("secure deletion error")
)

// Config wraps err as a fatal configuration error.
func Config(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConfig, op, err)
}

// Configf builds a fatal configuration error from a format string.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Network wraps a transport-level failure. These are distinct from an
// explicit denial: the server never said no, it was never reached.
func Network(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
}

// ProcessControl wraps a failure to open, inspect, or signal a process.
func ProcessControl(op string, pid int, err error) error {
	return fmt.Errorf("%w: %s (pid %d): %w", ErrProcessControl, op, pid, err)
}

// SecureDelete wraps an I/O failure during an overwrite pass or unlink.
func SecureDelete(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSecureDelete, path, err)
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsConfig reports whether err is a fatal configuration error.
func IsConfig(err error) bool { return errors.Is(err, ErrConfig) }
