//go:build !windows

package launcher

import "syscall"

// detachedProcAttr starts the child in its own session so it survives the
// launcher exiting.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
