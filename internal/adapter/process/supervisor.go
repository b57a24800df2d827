package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"syscall"

	"stagehand/internal/domain"
)

// Supervisor starts external commands and classifies how they end.
type Supervisor struct {
	logger domain.Logger
}

// NewSupervisor creates a supervisor that logs process lifecycle events.
func NewSupervisor(logger domain.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Handle is a started child process. Wait reports its classified result;
// Signal and Stop let the caller end it early.
type Handle struct {
	cmd    *exec.Cmd
	desc   string
	done   chan struct{}
	err    error
	result domain.ProcessResult
}

// Start launches cmd. Stdio is inherited unless cmd overrides a stream.
// A process that cannot be started returns the os/exec error unchanged.
func (s *Supervisor) Start(cmd domain.Command) (*Handle, error) {
	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	c.SysProcAttr = sysProcAttr()

	if err := c.Start(); err != nil {
		return nil, err
	}

	h := &Handle{cmd: c, desc: cmd.String(), done: make(chan struct{})}
	s.logger.Debug("process started", "pid", c.Process.Pid, "cmd", h.desc, "dir", cmd.Dir)

	go func() {
		waitErr := c.Wait()
		h.result = resultOf(c.ProcessState)
		h.err = h.result.Err(h.desc)
		if h.err == nil && waitErr != nil {
			var exitErr *exec.ExitError
			if !errors.As(waitErr, &exitErr) {
				// stream copy failure after a clean exit
				h.err = waitErr
			}
		}
		s.logger.Debug("process exited", "pid", c.Process.Pid, "cmd", h.desc, "result", h.result.String())
		close(h.done)
	}()
	return h, nil
}

// Run starts cmd and waits for it. If ctx ends first the child is stopped
// and ctx.Err() is returned once it has exited.
func (s *Supervisor) Run(ctx context.Context, cmd domain.Command) error {
	s.logger.Info("exec", "cmd", cmd.String())
	h, err := s.Start(cmd)
	if err != nil {
		return err
	}

	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		s.logger.Warn("stopping process", "pid", h.Pid(), "cause", ctx.Err())
		if err := h.Stop(); err != nil {
			s.logger.Error("stop process failed", "pid", h.Pid(), "err", err)
		}
		<-h.done
		return ctx.Err()
	}
}

// Wait blocks until the process exits. It is safe to call more than once
// and from several goroutines.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the raw termination state. Valid only after Done.
func (h *Handle) Result() domain.ProcessResult {
	<-h.done
	return h.result
}

// Signal delivers sig to the child.
func (h *Handle) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

// Stop asks the child to terminate with SIGTERM, which Wait treats as
// success. Windows has no SIGTERM, so the child is killed there.
func (h *Handle) Stop() error {
	if runtime.GOOS == "windows" {
		return h.cmd.Process.Kill()
	}
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Process exposes the live child for callers that need more control.
func (h *Handle) Process() *os.Process {
	return h.cmd.Process
}

func resultOf(state *os.ProcessState) domain.ProcessResult {
	if state == nil {
		return domain.ProcessResult{}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return domain.ProcessResult{Signal: signalName(ws.Signal())}
	}
	code := state.ExitCode()
	return domain.ProcessResult{ExitCode: &code}
}

var signalNames = map[syscall.Signal]string{
	syscall.SIGHUP:  "SIGHUP",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGQUIT: "SIGQUIT",
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGKILL: "SIGKILL",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGPIPE: "SIGPIPE",
	syscall.SIGTERM: "SIGTERM",
}

func signalName(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return sig.String()
}

// mergeEnv appends overrides after base; os/exec keeps the last value for a
// duplicated key.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
