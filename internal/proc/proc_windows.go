//go:build windows

package proc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/windows"

	apperrors "overload/internal/errors"
)

// windowsControl uses the Win32 process API for introspection and
// TerminateProcess for the forced phase. Windows has no SIGTERM
// equivalent, so the graceful phase is a liveness wait: the target gets
// the grace period to exit on its own before termination.
type windowsControl struct {
	sleep func(time.Duration)
}

func newControl() Control {
	return &windowsControl{sleep: time.Sleep}
}

func (c *windowsControl) ParentPID() int {
	return os.Getppid()
}

func (c *windowsControl) Alive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == 259 // STILL_ACTIVE
}

func (c *windowsControl) BinaryPath(pid int) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return "", apperrors.ProcessControl("open process", pid, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", apperrors.ProcessControl("resolve binary path", pid, err)
	}
	return windows.UTF16ToString(buf[:size]), nil
}

func (c *windowsControl) Terminate(pid int) error {
	slog.Info("terminating process", slog.Int("pid", pid))

	c.sleep(terminateGrace)
	if !c.Alive(pid) {
		return nil
	}

	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return apperrors.ProcessControl("open process", pid, err)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		return apperrors.ProcessControl("terminate process", pid, err)
	}
	return nil
}

func (c *windowsControl) TerminateTree(pid int) error {
	slog.Info("terminating process tree", slog.Int("pid", pid))

	c.sleep(treeGrace)
	if !c.Alive(pid) {
		return nil
	}

	// taskkill walks the child tree; a direct TerminateProcess covers the
	// root if taskkill is unavailable.
	if err := exec.Command("taskkill", "/T", "/F", "/PID", fmt.Sprint(pid)).Run(); err != nil {
		if termErr := c.Terminate(pid); termErr != nil {
			return apperrors.ProcessControl("terminate tree", pid, errors.Join(err, termErr))
		}
	}
	return nil
}
