package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"stagehand/internal/adapter/coordinator"
)

// Settings is the optional stagehand.toml file. Zero values mean "not set";
// flags and environment variables take precedence over anything here.
type Settings struct {
	Manifest     string       `toml:"manifest"`
	ResourceRoot string       `toml:"resource_root"`
	Mode         string       `toml:"mode"`
	Jobs         int          `toml:"jobs"`
	Aggregate    bool         `toml:"aggregate"`
	Log          LogSettings  `toml:"log"`
	Toolchain    ToolSettings `toml:"toolchain"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ToolSettings overrides the external executables. Empty means PATH lookup.
type ToolSettings struct {
	Go       string `toml:"go"`
	Esbuild  string `toml:"esbuild"`
	Tar      string `toml:"tar"`
	Unzip    string `toml:"unzip"`
	SevenZip string `toml:"sevenzip"`
}

// LoadSettings reads path. A missing file yields zero Settings unless
// required is set. Unknown keys are rejected.
func LoadSettings(path string, required bool) (Settings, error) {
	var s Settings
	meta, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Settings{}, fmt.Errorf("load settings %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if _, err := coordinator.ParseMode(s.Mode); err != nil {
		return Settings{}, fmt.Errorf("load settings %s: %w", path, err)
	}
	if s.Jobs < 0 {
		return Settings{}, fmt.Errorf("load settings %s: jobs must be >= 0, got %d", path, s.Jobs)
	}
	return s, nil
}
