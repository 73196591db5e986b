//go:build windows

package launcher

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedProcAttr detaches the child from the launcher's console and
// process group so it survives the launcher exiting.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
	}
}
