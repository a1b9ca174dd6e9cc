//go:build windows

package runner

import "syscall"

// baseSysProcAttr is a no-op on Windows; tree termination goes through
// taskkill rather than process groups.
func baseSysProcAttr() *syscall.SysProcAttr {
	return nil
}
