package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stagehand/internal/adapter/logger"
	"stagehand/internal/domain"
)

type recordingRunner struct {
	cmds []domain.Command
	err  error
}

func (r *recordingRunner) Run(_ context.Context, cmd domain.Command) error {
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func TestExtract_CommandByExtension(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")

	tests := []struct {
		archive string
		hostOS  string
		want    domain.Command
	}{
		{"a.tar.gz", "linux", domain.Command{Path: "tar", Args: []string{"-xzf", "a.tar.gz", "-C", target}}},
		{"a.TGZ", "linux", domain.Command{Path: "tar", Args: []string{"-xzf", "a.TGZ", "-C", target}}},
		{"a.tar.xz", "darwin", domain.Command{Path: "tar", Args: []string{"-xJf", "a.tar.xz", "-C", target}}},
		{"a.tar.bz2", "linux", domain.Command{Path: "tar", Args: []string{"-xjf", "a.tar.bz2", "-C", target}}},
		{"a.tar", "linux", domain.Command{Path: "tar", Args: []string{"-xf", "a.tar", "-C", target}}},
		{"a.zip", "linux", domain.Command{Path: "unzip", Args: []string{"-o", "-q", "a.zip", "-d", target}}},
		{"a.zip", "windows", domain.Command{Path: "tar", Args: []string{"-xf", "a.zip", "-C", target}}},
		{"a.7z", "windows", domain.Command{Path: "7z", Args: []string{"x", "-y", "-o" + target, "a.7z"}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.archive+"/"+tt.hostOS, func(t *testing.T) {
			r := &recordingRunner{}
			e := NewArchiveInstaller(r, Tools{}, logger.NewNop())
			e.hostOS = tt.hostOS

			if err := e.Extract(context.Background(), tt.archive, target); err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(r.cmds) != 1 {
				t.Fatalf("expected 1 command, got %d", len(r.cmds))
			}
			if diff := cmp.Diff(tt.want, r.cmds[0]); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_CreatesTarget(t *testing.T) {
	target := filepath.Join(t.TempDir(), "deep", "nested")
	e := NewArchiveInstaller(&recordingRunner{}, Tools{}, logger.NewNop())

	if err := e.Extract(context.Background(), "x.tar.gz", target); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		t.Fatalf("target dir not created: %v", err)
	}
}

func TestExtract_CustomTools(t *testing.T) {
	r := &recordingRunner{}
	e := NewArchiveInstaller(r, Tools{Tar: "/usr/bin/bsdtar", SevenZip: "7za"}, logger.NewNop())
	e.hostOS = "linux"
	target := t.TempDir()

	_ = e.Extract(context.Background(), "a.tgz", target)
	_ = e.Extract(context.Background(), "b.7z", target)

	if r.cmds[0].Path != "/usr/bin/bsdtar" || r.cmds[1].Path != "7za" {
		t.Errorf("custom tools not used: %v, %v", r.cmds[0].Path, r.cmds[1].Path)
	}
}

func TestExtract_RunnerErrorPassesThrough(t *testing.T) {
	want := &domain.ExitError{Command: "tar -xzf x.tar.gz", Code: 2}
	e := NewArchiveInstaller(&recordingRunner{err: want}, Tools{}, logger.NewNop())

	err := e.Extract(context.Background(), "x.tar.gz", t.TempDir())
	if err != want {
		t.Fatalf("expected the runner's error unchanged, got %v", err)
	}
}

func TestExtract_UnsupportedArchive(t *testing.T) {
	r := &recordingRunner{}
	target := filepath.Join(t.TempDir(), "out")
	e := NewArchiveInstaller(r, Tools{}, logger.NewNop())

	err := e.Extract(context.Background(), "x.rar", target)
	if !errors.Is(err, domain.ErrUnsupportedArchive) {
		t.Fatalf("expected ErrUnsupportedArchive, got %v", err)
	}
	if len(r.cmds) != 0 {
		t.Error("no command should run for an unsupported archive")
	}
	if _, err := os.Stat(target); !errors.Is(err, os.ErrNotExist) {
		t.Error("target should not be created for an unsupported archive")
	}
}
