package extractor

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"stagehand/internal/adapter/logger"
	"stagehand/internal/adapter/process"
	"stagehand/internal/domain"
)

func requireTar(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX tar")
	}
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not found in PATH")
	}
}

// writeTarGz creates a gzipped tarball at path holding files.
func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func newTarInstaller() *ArchiveInstaller {
	log := logger.NewNop()
	return NewArchiveInstaller(process.NewSupervisor(log), Tools{}, log)
}

func TestExtract_TarGzTwiceIntoSameDir(t *testing.T) {
	requireTar(t)
	dir := t.TempDir()
	archive := filepath.Join(dir, "fonts.tar.gz")
	writeTarGz(t, archive, map[string]string{"x.txt": "x", "sub/y.txt": "y"})
	target := filepath.Join(dir, "resources", "linux", "fonts")

	e := newTarInstaller()
	for i := 0; i < 2; i++ {
		if err := e.Extract(context.Background(), archive, target); err != nil {
			t.Fatalf("Extract #%d: %v", i+1, err)
		}
	}

	for name, want := range map[string]string{"x.txt": "x", "sub/y.txt": "y"} {
		data, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
}

func TestExtract_MissingArchiveIsProcessExit(t *testing.T) {
	requireTar(t)
	dir := t.TempDir()

	err := newTarInstaller().Extract(context.Background(), filepath.Join(dir, "missing.tar.gz"), filepath.Join(dir, "out"))
	if !errors.Is(err, domain.ErrProcessExit) {
		t.Fatalf("expected ErrProcessExit, got %v", err)
	}
}
