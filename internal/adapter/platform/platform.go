package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"stagehand/internal/domain"
)

// Environment variables consulted between command-line flags and the
// settings file.
const (
	EnvManifest     = "STAGEHAND_MANIFEST"
	EnvResourceRoot = "STAGEHAND_RESOURCE_ROOT"
	EnvSettings     = "STAGEHAND_CONFIG"
	EnvMode         = "STAGEHAND_MODE"
	EnvJobs         = "STAGEHAND_JOBS"
	EnvAggregate    = "STAGEHAND_AGGREGATE"
)

const (
	DefaultManifest     = "stagehand.hcl"
	DefaultSettings     = "stagehand.toml"
	DefaultResourceRoot = "resources"
)

// Platform resolves the host platform and paths relative to the working
// directory.
type Platform struct {
	workDir string
	host    domain.Host
}

// New creates a Platform rooted at the current working directory.
func New() (*Platform, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return &Platform{workDir: wd, host: DetectHost()}, nil
}

// DetectHost returns the OS and architecture this process runs on.
func DetectHost() domain.Host {
	return domain.Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Host returns the host detected when the Platform was created.
func (p *Platform) Host() domain.Host {
	return p.host
}

// WorkDir returns the directory relative paths are resolved against.
func (p *Platform) WorkDir() string {
	return p.workDir
}

// PlatformDir returns the resource subdirectory name for goos
// (win, mac, linux).
func PlatformDir(goos string) (string, error) {
	switch goos {
	case "windows":
		return "win", nil
	case "darwin":
		return "mac", nil
	case "linux":
		return "linux", nil
	default:
		return "", fmt.Errorf("unsupported platform: %s", goos)
	}
}

// ResourceDir returns <workdir>/<root>/<platform_dir> for the host.
func (p *Platform) ResourceDir(root string) (string, error) {
	dir, err := PlatformDir(p.host.OS)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(root) {
		return filepath.Join(root, dir), nil
	}
	return filepath.Join(p.workDir, root, dir), nil
}

// Abs resolves path against the working directory.
func (p *Platform) Abs(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.workDir, path)
}

// ResolveString returns the first non-empty value of flag, env, file, then def.
func ResolveString(flagValue, env, fileValue, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return def
}

// ResolveBool applies the same precedence as ResolveString. A nil flagValue
// means the flag was not given.
func ResolveBool(flagValue *bool, env string, fileValue bool) (bool, error) {
	if flagValue != nil {
		return *flagValue, nil
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s: invalid boolean %q", env, v)
		}
		return b, nil
	}
	return fileValue, nil
}

// ResolveCount applies the same precedence as ResolveString to a
// non-negative count. A nil flagValue means the flag was not given; zero in
// the file means unset.
func ResolveCount(flagValue *int, env string, fileValue, def int) (int, error) {
	if flagValue != nil {
		if *flagValue < 0 {
			return 0, fmt.Errorf("must be >= 0, got %d", *flagValue)
		}
		return *flagValue, nil
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid integer %q", env, v)
		}
		if n < 0 {
			return 0, fmt.Errorf("%s: must be >= 0, got %d", env, n)
		}
		return n, nil
	}
	if fileValue != 0 {
		return fileValue, nil
	}
	return def, nil
}
