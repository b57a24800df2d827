package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/adapter/logger"
	"stagehand/internal/domain"
)

// fakeRunner records commands and optionally writes to the command's stderr.
type fakeRunner struct {
	cmds   []domain.Command
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cmd domain.Command) error {
	f.cmds = append(f.cmds, cmd)
	if f.stderr != "" && cmd.Stderr != nil {
		fmt.Fprint(cmd.Stderr, f.stderr)
	}
	return f.err
}

func TestEsbuild_Args(t *testing.T) {
	r := &fakeRunner{}
	b := NewEsbuild(r, "", logger.NewNop())

	err := b.Bundle(context.Background(), domain.BundleSpec{
		Name:      "main",
		Entry:     "src/main.ts",
		OutDir:    "dist",
		Externals: []string{"electron", "fsevents"},
		Platform:  "node",
		Format:    "cjs",
		Minify:    true,
	})
	require.NoError(t, err)
	require.Len(t, r.cmds, 1)

	abs, _ := filepath.Abs("dist")
	assert.Equal(t, "esbuild", r.cmds[0].Path)
	assert.Equal(t, []string{
		"src/main.ts", "--bundle", "--outdir=" + abs,
		"--platform=node", "--format=cjs", "--minify",
		"--external:electron", "--external:fsevents",
	}, r.cmds[0].Args)
}

func TestEsbuild_FailureCarriesReport(t *testing.T) {
	exit := &domain.ExitError{Command: "esbuild", Code: 1}
	r := &fakeRunner{stderr: "✘ [ERROR] Could not resolve \"left-pad\"\n", err: exit}
	b := NewEsbuild(r, "/opt/esbuild", logger.NewNop())

	err := b.Bundle(context.Background(), domain.BundleSpec{Name: "main", Entry: "a.ts", OutDir: "out"})
	var be *BundleError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "main", be.Name)
	assert.Contains(t, be.Report, "Could not resolve")
	assert.ErrorIs(t, err, domain.ErrProcessExit)
	assert.Equal(t, "/opt/esbuild", r.cmds[0].Path)
}

func TestEsbuild_MissingEntry(t *testing.T) {
	r := &fakeRunner{}
	err := NewEsbuild(r, "", logger.NewNop()).Bundle(context.Background(), domain.BundleSpec{Name: "x"})
	require.Error(t, err)
	assert.Empty(t, r.cmds)
}

func TestGoCompiler_Command(t *testing.T) {
	r := &fakeRunner{}
	c := NewGoCompiler(r, "", logger.NewNop())
	out := filepath.Join(t.TempDir(), "bin", "win", "helper.exe")

	err := c.Compile(context.Background(), domain.BuildTarget{
		Name:      "helper",
		SourceDir: "helpers/elevate",
		Output:    out,
		OS:        "windows",
		Arch:      "amd64",
		LDFlags:   "-H windowsgui",
	})
	require.NoError(t, err)
	require.Len(t, r.cmds, 1)

	cmd := r.cmds[0]
	assert.Equal(t, "go", cmd.Path)
	assert.Equal(t, "helpers/elevate", cmd.Dir)
	assert.Equal(t, []string{"build", "-trimpath", "-ldflags", "-s -w -H windowsgui", "-o", out, "./"}, cmd.Args)
	assert.Equal(t, map[string]string{"GOOS": "windows", "GOARCH": "amd64", "CGO_ENABLED": "0"}, cmd.Env)

	assert.DirExists(t, filepath.Dir(out))
}

func TestGoCompiler_PropagatesFailure(t *testing.T) {
	exit := &domain.ExitError{Command: "go build", Code: 2}
	c := NewGoCompiler(&fakeRunner{err: exit}, "", logger.NewNop())

	err := c.Compile(context.Background(), domain.BuildTarget{Name: "x", Output: filepath.Join(t.TempDir(), "x")})
	assert.True(t, errors.Is(err, domain.ErrProcessExit))
}

func TestGoCompiler_MissingOutput(t *testing.T) {
	r := &fakeRunner{}
	err := NewGoCompiler(r, "", logger.NewNop()).Compile(context.Background(), domain.BuildTarget{Name: "x"})
	require.Error(t, err)
	assert.Empty(t, r.cmds)
}

func TestFileStager_Copies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "helper.exe")
	require.NoError(t, os.WriteFile(src, []byte("MZ"), 0o755))

	dst := filepath.Join(dir, "stage", "helper-legacy.exe")
	require.NoError(t, NewFileStager(logger.NewNop()).Stage(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "MZ", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dst)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestFileStager_Overwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old contents"), 0o644))

	require.NoError(t, NewFileStager(logger.NewNop()).Stage(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFileStager_MissingSource(t *testing.T) {
	err := NewFileStager(logger.NewNop()).Stage(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, domain.ErrFilesystem)
}
