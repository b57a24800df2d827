package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"stagehand/internal/domain"
)

// BundleError is returned when the bundler fails. Report holds whatever the
// bundler printed to stderr.
type BundleError struct {
	Name   string
	Report string
	Err    error
}

func (e *BundleError) Error() string {
	if e.Report == "" {
		return fmt.Sprintf("bundle %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("bundle %s: %v\n%s", e.Name, e.Err, e.Report)
}

func (e *BundleError) Unwrap() error { return e.Err }

// Esbuild bundles JavaScript with the esbuild CLI.
type Esbuild struct {
	runner domain.ProcessRunner
	binary string
	logger domain.Logger
}

// NewEsbuild creates a bundler. An empty binary means "esbuild" on PATH.
func NewEsbuild(runner domain.ProcessRunner, binary string, logger domain.Logger) *Esbuild {
	if binary == "" {
		binary = "esbuild"
	}
	return &Esbuild{runner: runner, binary: binary, logger: logger}
}

// Bundle writes spec.Entry and its imports into spec.OutDir.
func (b *Esbuild) Bundle(ctx context.Context, spec domain.BundleSpec) error {
	args, err := bundleArgs(spec)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := domain.Command{Path: b.binary, Args: args, Stderr: &stderr}

	b.logger.Info("bundling", "name", spec.Name, "entry", spec.Entry)
	if err := b.runner.Run(ctx, cmd); err != nil {
		return &BundleError{Name: spec.Name, Report: strings.TrimSpace(stderr.String()), Err: err}
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		b.logger.Debug("bundler output", "name", spec.Name, "report", s)
	}
	return nil
}

func bundleArgs(spec domain.BundleSpec) ([]string, error) {
	if spec.Entry == "" {
		return nil, fmt.Errorf("bundle %s: missing entry", spec.Name)
	}
	outDir, err := filepath.Abs(spec.OutDir)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: resolve outdir: %w", spec.Name, err)
	}

	args := []string{spec.Entry, "--bundle", "--outdir=" + outDir}
	if spec.Platform != "" {
		args = append(args, "--platform="+spec.Platform)
	}
	if spec.Format != "" {
		args = append(args, "--format="+spec.Format)
	}
	if spec.Minify {
		args = append(args, "--minify")
	}
	if spec.Sourcemap {
		args = append(args, "--sourcemap")
	}
	for _, ext := range spec.Externals {
		args = append(args, "--external:"+ext)
	}
	return args, nil
}
