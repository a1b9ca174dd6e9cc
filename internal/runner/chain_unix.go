//go:build unix

package runner

import (
	"os"

	"golang.org/x/sys/unix"
)

// chainToBase replaces the current process image with the base binary.
// On success it never returns; the workload inherits the PID, environment
// and open descriptors, leaving no gate process behind.
func chainToBase(path string, args []string) (int, error) {
	argv := append([]string{path}, args...)
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return 0, err
	}
	return 0, nil // unreachable
}
