package extractor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"stagehand/internal/domain"
)

// Tools names the archive executables. Empty fields fall back to the
// binaries on PATH.
type Tools struct {
	Tar      string
	Unzip    string
	SevenZip string
}

func (t Tools) withDefaults() Tools {
	if t.Tar == "" {
		t.Tar = "tar"
	}
	if t.Unzip == "" {
		t.Unzip = "unzip"
	}
	if t.SevenZip == "" {
		t.SevenZip = "7z"
	}
	return t
}

// ArchiveInstaller unpacks archives with the system archive tools, run
// through a process runner.
type ArchiveInstaller struct {
	runner domain.ProcessRunner
	tools  Tools
	hostOS string
	logger domain.Logger
}

// NewArchiveInstaller creates an installer that runs tools through runner.
func NewArchiveInstaller(runner domain.ProcessRunner, tools Tools, logger domain.Logger) *ArchiveInstaller {
	return &ArchiveInstaller{
		runner: runner,
		tools:  tools.withDefaults(),
		hostOS: runtime.GOOS,
		logger: logger,
	}
}

// Extract creates targetDir and unpacks archivePath into it. Existing files
// are overwritten. Nothing is cleaned up on failure.
func (e *ArchiveInstaller) Extract(ctx context.Context, archivePath, targetDir string) error {
	cmd, err := e.command(archivePath, targetDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("%w: create extract dir: %w", domain.ErrFilesystem, err)
	}

	e.logger.Info("extracting", "archive", archivePath, "target", targetDir)
	if err := e.runner.Run(ctx, cmd); err != nil {
		return err
	}
	e.logger.Info("extraction complete", "path", targetDir)
	return nil
}

// command picks the tool invocation for archivePath by extension.
func (e *ArchiveInstaller) command(archivePath, targetDir string) (domain.Command, error) {
	name := strings.ToLower(archivePath)
	tar := func(flags string) domain.Command {
		return domain.Command{Path: e.tools.Tar, Args: []string{flags, archivePath, "-C", targetDir}}
	}

	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return tar("-xzf"), nil
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return tar("-xJf"), nil
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		return tar("-xjf"), nil
	case strings.HasSuffix(name, ".tar"):
		return tar("-xf"), nil
	case strings.HasSuffix(name, ".zip"):
		// bsdtar ships with Windows 10+ and reads zip; unzip usually does not.
		if e.hostOS == "windows" {
			return tar("-xf"), nil
		}
		return domain.Command{Path: e.tools.Unzip, Args: []string{"-o", "-q", archivePath, "-d", targetDir}}, nil
	case strings.HasSuffix(name, ".7z"):
		return domain.Command{Path: e.tools.SevenZip, Args: []string{"x", "-y", "-o" + targetDir, archivePath}}, nil
	}
	return domain.Command{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedArchive, archivePath)
}
