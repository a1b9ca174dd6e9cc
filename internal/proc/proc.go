// Package proc provides cross-platform process introspection and
// termination for the kill engine.
//
// All platform differences live behind the Control interface, selected
// once at startup, rather than being scattered per call site. Termination
// is always two-phase: a graceful signal, a bounded grace period, a
// liveness re-check, and only then a forced kill.
package proc

import (
	"fmt"
	"runtime"
	"time"
)

const (
	// terminateGrace is how long a process gets to exit after the
	// graceful signal before the forced kill is sent.
	terminateGrace = 100 * time.Millisecond
	// treeGrace is the longer allowance for a whole process group.
	treeGrace = 1 * time.Second
)

// Control abstracts the process-table operations the kill engine needs.
// Implementations surface errors as return values; callers decide whether
// to abort or continue best-effort.
type Control interface {
	// ParentPID returns the process id of this process's parent.
	ParentPID() int

	// BinaryPath resolves the path of the image a process is currently
	// executing, not a cached launch path.
	BinaryPath(pid int) (string, error)

	// Alive reports whether pid refers to a live process.
	Alive(pid int) bool

	// Terminate sends a graceful termination signal, waits a short grace
	// period, and escalates to a forceful kill if the process survives.
	Terminate(pid int) error

	// TerminateTree applies the same escalation to the process group of
	// pid, then forces the specific pid as well in case it detached from
	// its group.
	TerminateTree(pid int) error
}

// New returns the Control implementation for the current operating
// system.
func New() Control {
	return newControl()
}

// Platform identifies the operating system and architecture the agent is
// running on. It is a pure lookup over the runtime constants.
type Platform struct {
	OS   string
	Arch string
}

// Detect returns the current platform.
func Detect() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Name returns the canonical "<os>-<arch>" label for the platform.
func (p Platform) Name() string {
	return fmt.Sprintf("%s-%s", p.OS, p.Arch)
}
