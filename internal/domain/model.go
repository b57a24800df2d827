package domain

import (
	"context"
	"io"
	"io/fs"
	"strings"
)

// Command describes one external process invocation.
// Env entries are merged over the parent environment. Nil streams are
// inherited from the parent process.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// ProcessResult is how a child process terminated. ExitCode is nil when the
// process was killed by a signal.
type ProcessResult struct {
	ExitCode *int
	Signal   string
}

// Task is one unit of work handed to a coordinator. Name is only used in
// logs and reports.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// ChecksumSource pairs a resource URL with the manifest that lists its digest.
type ChecksumSource struct {
	ResourceURL string
	ManifestURL string
	Algorithm   string
}

// CompanionManifest returns the conventional manifest location for url:
// the resource URL with the algorithm name appended as an extension.
func CompanionManifest(url, algorithm string) *ChecksumSource {
	return &ChecksumSource{
		ResourceURL: url,
		ManifestURL: url + "." + algorithm,
		Algorithm:   algorithm,
	}
}

// Download describes one verified fetch. Exactly one of Expected or Manifest
// supplies the digest. Mode lists permission bits that must be set on Dest
// after a successful download; zero leaves the written mode alone.
type Download struct {
	URL       string
	Dest      string
	Algorithm string
	Expected  string
	Manifest  *ChecksumSource
	Mode      fs.FileMode
}

// Resource is a manifest entry: a download plus optional extraction.
type Resource struct {
	Name      string
	Download  Download
	ExtractTo string
	Platforms []string
}

// BuildTarget is a helper binary cross-compiled for OS/Arch and written to
// Output. Stage lists extra filenames the output is copied to afterwards.
type BuildTarget struct {
	Name      string
	SourceDir string
	Output    string
	OS        string
	Arch      string
	LDFlags   string
	Stage     []string
	Hosts     []string
}

// BundleSpec describes one bundler invocation.
type BundleSpec struct {
	Name      string
	Entry     string
	OutDir    string
	Externals []string
	Platform  string
	Format    string
	Minify    bool
	Sourcemap bool
}

// Host identifies the platform the pipeline runs on.
type Host struct {
	OS   string
	Arch string
}
