//go:build unix

package proc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	apperrors "overload/internal/errors"
)

// unixControl signals processes directly via the kernel. The signal and
// liveness functions are fields so tests can fault-inject a process that
// ignores the graceful signal.
type unixControl struct {
	signal func(pid int, sig unix.Signal) error
	alive  func(pid int) bool
	sleep  func(time.Duration)
}

func newControl() Control {
	return &unixControl{
		signal: func(pid int, sig unix.Signal) error { return unix.Kill(pid, sig) },
		alive:  pidAlive,
		sleep:  time.Sleep,
	}
}

// pidAlive probes the process with signal zero. EPERM means the process
// exists but belongs to someone else, which still counts as alive.
func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func (c *unixControl) ParentPID() int {
	return os.Getppid()
}

func (c *unixControl) Alive(pid int) bool {
	return c.alive(pid)
}

// BinaryPath resolves the currently executing image of pid. On Linux this
// is the /proc exe symlink, which tracks the live image even after the
// on-disk file moves. On darwin there is no procfs, so the process table
// is queried instead.
func (c *unixControl) BinaryPath(pid int) (string, error) {
	if runtime.GOOS == "darwin" {
		out, err := exec.Command("ps", "-p", fmt.Sprint(pid), "-o", "comm=").Output()
		if err != nil {
			return "", apperrors.ProcessControl("resolve binary path", pid, err)
		}
		path := strings.TrimSpace(string(out))
		if path == "" {
			return "", apperrors.ProcessControl("resolve binary path", pid, errors.New("empty process table entry"))
		}
		return path, nil
	}

	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", apperrors.ProcessControl("resolve binary path", pid, err)
	}
	return path, nil
}

// Terminate escalates SIGTERM to SIGKILL. The graceful phase is never
// skipped and the wait is bounded: a process that ignores SIGTERM only
// buys itself the grace period.
func (c *unixControl) Terminate(pid int) error {
	slog.Info("terminating process", slog.Int("pid", pid))

	if err := c.signal(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			// Already gone; the goal is met.
			return nil
		}
		return apperrors.ProcessControl("signal SIGTERM", pid, err)
	}

	c.sleep(terminateGrace)

	if c.alive(pid) {
		slog.Warn("process survived graceful signal, forcing",
			slog.Int("pid", pid))
		if err := c.signal(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return apperrors.ProcessControl("signal SIGKILL", pid, err)
		}
	}
	return nil
}

// TerminateTree signals the whole process group of pid, waits the longer
// grace window, then forces both the group and the specific pid. The
// individual SIGKILL covers a target that detached from its group.
func (c *unixControl) TerminateTree(pid int) error {
	slog.Info("terminating process tree", slog.Int("pid", pid))

	if err := c.signal(-pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return apperrors.ProcessControl("signal group SIGTERM", pid, err)
	}

	c.sleep(treeGrace)

	_ = c.signal(-pid, unix.SIGKILL)
	if err := c.signal(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return apperrors.ProcessControl("signal SIGKILL", pid, err)
	}
	return nil
}
