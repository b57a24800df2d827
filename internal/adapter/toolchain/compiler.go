package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"stagehand/internal/domain"
)

// defaultLDFlags strips the symbol table and DWARF data.
const defaultLDFlags = "-s -w"

// GoCompiler cross-compiles helper binaries with `go build`.
type GoCompiler struct {
	runner domain.ProcessRunner
	binary string
	logger domain.Logger
}

// NewGoCompiler creates a compiler. An empty binary means "go" on PATH.
func NewGoCompiler(runner domain.ProcessRunner, binary string, logger domain.Logger) *GoCompiler {
	if binary == "" {
		binary = "go"
	}
	return &GoCompiler{runner: runner, binary: binary, logger: logger}
}

// Compile builds target.SourceDir for target.OS/target.Arch into
// target.Output, creating the output directory first.
func (c *GoCompiler) Compile(ctx context.Context, target domain.BuildTarget) error {
	if target.Output == "" {
		return fmt.Errorf("compile %s: missing output", target.Name)
	}
	output, err := filepath.Abs(target.Output)
	if err != nil {
		return fmt.Errorf("compile %s: resolve output: %w", target.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %w", domain.ErrFilesystem, err)
	}

	c.logger.Info("compiling", "name", target.Name, "os", target.OS, "arch", target.Arch)
	return c.runner.Run(ctx, c.command(target, output))
}

func (c *GoCompiler) command(target domain.BuildTarget, output string) domain.Command {
	ldflags := defaultLDFlags
	if target.LDFlags != "" {
		ldflags += " " + target.LDFlags
	}

	src := "."
	if target.SourceDir != "" {
		src = target.SourceDir
	}

	env := map[string]string{"CGO_ENABLED": "0"}
	if target.OS != "" {
		env["GOOS"] = target.OS
	}
	if target.Arch != "" {
		env["GOARCH"] = target.Arch
	}

	return domain.Command{
		Path: c.binary,
		Args: []string{"build", "-trimpath", "-ldflags", ldflags, "-o", output, "./"},
		Dir:  src,
		Env:  env,
	}
}
