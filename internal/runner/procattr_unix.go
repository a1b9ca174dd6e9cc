//go:build unix

package runner

import "syscall"

// baseSysProcAttr puts the base binary in its own process group, making
// it a safe target for group-wide signal delivery.
func baseSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
