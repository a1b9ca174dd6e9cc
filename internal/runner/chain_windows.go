//go:build windows

package runner

import (
	"errors"
	"os"
	"os/exec"
)

// chainToBase has no execve equivalent on Windows; spawn the base binary,
// wait, and relay its exit status instead.
func chainToBase(path string, args []string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, err
	}
	return 0, nil
}
