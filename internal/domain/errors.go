package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrProcessExit          = errors.New("process failed")
	ErrIntegrity            = errors.New("checksum mismatch")
	ErrNetwork              = errors.New("network failure")
	ErrFilesystem           = errors.New("filesystem failure")
	ErrInvalidDownload      = errors.New("invalid download")
	ErrUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")
	ErrUnsupportedArchive   = errors.New("unsupported archive format")
	ErrManifestEntryMissing = errors.New("checksum manifest has no entry")
)

// ExitError reports a child process that exited non-zero or was killed by a
// signal other than SIGTERM.
type ExitError struct {
	Command string
	Code    int
	Signal  string
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("%s: terminated by signal %s", e.Command, e.Signal)
	}
	return fmt.Sprintf("%s: exited with code %d", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error { return ErrProcessExit }

// IntegrityError reports a downloaded file whose digest does not match.
// The file is left at Path and must not be trusted.
type IntegrityError struct {
	Path      string
	Algorithm string
	Expected  string
	Actual    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: expected %s, got %s", e.Path, e.Algorithm, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// Err classifies a process termination. Exit code 0 and SIGTERM are success.
// SIGTERM is accepted whoever sent it, so callers can stop a child without
// the stop being reported as a failure.
func (r ProcessResult) Err(command string) error {
	if r.ExitCode != nil {
		if *r.ExitCode == 0 {
			return nil
		}
		return &ExitError{Command: command, Code: *r.ExitCode}
	}
	switch r.Signal {
	case "SIGTERM":
		return nil
	case "":
		return &ExitError{Command: command, Code: -1}
	default:
		return &ExitError{Command: command, Code: -1, Signal: r.Signal}
	}
}

// String is used in debug logs.
func (r ProcessResult) String() string {
	if r.ExitCode != nil {
		return "exit " + strconv.Itoa(*r.ExitCode)
	}
	if r.Signal != "" {
		return "signal " + r.Signal
	}
	return "unknown"
}
