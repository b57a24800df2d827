package domain

import "context"

// ProcessRunner runs one external command to completion.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command) error
}

// Fetcher ensures a verified copy of a remote resource exists locally.
// If a valid copy is already on disk, no network request is made.
type Fetcher interface {
	Fetch(ctx context.Context, d Download) error
}

// Installer unpacks an archive into a target directory.
type Installer interface {
	Extract(ctx context.Context, archivePath, targetDir string) error
}

// Bundler compiles application source into a single distributable module.
type Bundler interface {
	Bundle(ctx context.Context, spec BundleSpec) error
}

// Compiler cross-compiles a helper binary for its target OS/arch.
type Compiler interface {
	Compile(ctx context.Context, target BuildTarget) error
}

// Stager copies a build output to the filename a consumer expects.
type Stager interface {
	Stage(src, dst string) error
}

// Logger provides structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
