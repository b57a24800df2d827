package process

import "syscall"

// sysProcAttr keeps children in the caller's process group so a terminal
// interrupt reaches the whole build. Pdeathsig is a Linux-only safety net: if
// stagehand dies unexpectedly, the kernel sends SIGTERM to the direct child.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGTERM,
	}
}
