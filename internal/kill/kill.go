// Package kill maps the abstract kill policy onto process termination and
// file destruction.
//
// The contract is strict about ordering: termination always precedes any
// file mutation, so a binary is never overwritten or deleted while it is
// still the backing image of a live process. Each method is idempotent
// with respect to a target that is already gone; a missing process or
// file degrades to a logged no-op, because the ultimate goal (the target
// is no longer runnable) is already satisfied.
package kill

import (
	"log/slog"
	"os"
	"strings"
	"time"

	apperrors "overload/internal/errors"
	"overload/internal/proc"
	"overload/internal/shred"
)

// Method is the escalating severity of anti-tamper response.
type Method string

const (
	// Stop terminates the target process and leaves its binary intact.
	Stop Method = "stop"
	// Delete terminates the target and unlinks its binary.
	Delete Method = "delete"
	// Shred terminates the target, overwrites its binary with fixed
	// patterns, and unlinks it.
	Shred Method = "shred"
)

// shredPatterns are the per-pass fill bytes for the Shred method, each
// pass synced to storage before the next begins.
var shredPatterns = []byte{0x00, 0xFF, 0xAA}

// settleDelay is how long to wait after termination before touching the
// target's binary, avoiding races with a file lock the dying process may
// still hold.
const settleDelay = 200 * time.Millisecond

// ParseMethod parses a kill method name case-insensitively. The second
// return value is false for unknown names.
func ParseMethod(s string) (Method, bool) {
	switch Method(strings.ToLower(s)) {
	case Stop:
		return Stop, true
	case Delete:
		return Delete, true
	case Shred:
		return Shred, true
	default:
		return "", false
	}
}

// Target is a process and its resolved binary path. Targets are resolved
// freshly at kill time, never cached: the path must reflect the currently
// running image.
type Target struct {
	PID        int
	BinaryPath string
}

// Engine executes kill methods against resolved targets.
type Engine struct {
	control proc.Control
	logger  *slog.Logger
	sleep   func(time.Duration)
}

// NewEngine builds an Engine on the given process control.
func NewEngine(control proc.Control, logger *slog.Logger) *Engine {
	return &Engine{
		control: control,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// ResolveParent resolves the supervising process as a kill target. The
// binary path lookup may fail for a hidden or exited parent; in that case
// the target still carries the PID so Stop remains possible.
func (e *Engine) ResolveParent() (Target, error) {
	pid := e.control.ParentPID()
	path, err := e.control.BinaryPath(pid)
	if err != nil {
		e.logger.Warn("parent binary path unresolved",
			slog.Int("pid", pid),
			slog.String("error", err.Error()))
		return Target{PID: pid}, err
	}
	return Target{PID: pid, BinaryPath: path}, nil
}

// Execute applies method to target. Termination failures are logged and
// the sequence continues best-effort; the first error is returned for the
// caller's record.
func (e *Engine) Execute(method Method, target Target) error {
	e.logger.Info("executing kill method",
		slog.String("method", string(method)),
		slog.Int("pid", target.PID),
		slog.String("binary", target.BinaryPath))

	firstErr := e.control.Terminate(target.PID)
	if firstErr != nil {
		e.logger.Warn("termination degraded, continuing",
			slog.Int("pid", target.PID),
			slog.String("error", firstErr.Error()))
	}

	if method == Stop {
		return firstErr
	}

	if target.BinaryPath == "" {
		e.logger.Warn("no binary path resolved, skipping file mutation",
			slog.Int("pid", target.PID))
		return firstErr
	}

	// Let the process fully exit before mutating its backing file.
	e.sleep(settleDelay)

	var fileErr error
	switch method {
	case Delete:
		fileErr = removeFile(target.BinaryPath)
	case Shred:
		if err := shred.OverwritePatterns(target.BinaryPath, shredPatterns); err != nil {
			e.logger.Warn("shred passes degraded, deleting anyway",
				slog.String("path", target.BinaryPath),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
		fileErr = removeFile(target.BinaryPath)
	}

	if fileErr != nil {
		e.logger.Warn("binary removal failed",
			slog.String("path", target.BinaryPath),
			slog.String("error", fileErr.Error()))
		if firstErr == nil {
			firstErr = fileErr
		}
	} else {
		e.logger.Info("target binary removed", slog.String("path", target.BinaryPath))
	}
	return firstErr
}

// removeFile unlinks path, treating a missing file as success: the goal
// is that the target is no longer runnable.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			slog.Info("target binary already gone", slog.String("path", path))
			return nil
		}
		return apperrors.SecureDelete(path, err)
	}
	return nil
}
