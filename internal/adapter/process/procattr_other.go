//go:build !linux

package process

import "syscall"

// sysProcAttr returns nil: Pdeathsig is not available outside Linux.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
