package toolchain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stagehand/internal/domain"
)

// FileStager copies build outputs to secondary filenames.
type FileStager struct {
	logger domain.Logger
}

// NewFileStager creates a stager.
func NewFileStager(logger domain.Logger) *FileStager {
	return &FileStager{logger: logger}
}

// Stage copies src to dst, keeping src's permission bits. dst's directory is
// created if needed and an existing dst is overwritten.
func (s *FileStager) Stage(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: stage %s: %w", domain.ErrFilesystem, src, err)
	}
	if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: stage %s -> %s: %w", domain.ErrFilesystem, src, dst, err)
	}
	s.logger.Debug("staged", "src", src, "dst", dst)
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, perm)
}
