package checksum

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"stagehand/internal/domain"
)

// bsdLine matches "SHA512 (file.tar.gz) = <digest>" as written by BSD tools.
var bsdLine = regexp.MustCompile(`^([A-Za-z0-9-]+)\s*\((.+)\)\s*=\s*([0-9A-Za-z+/=]+)$`)

// releaseManifest is the electron-builder style update manifest (latest.yml).
type releaseManifest struct {
	Path   string         `yaml:"path"`
	SHA256 string         `yaml:"sha256"`
	SHA512 string         `yaml:"sha512"`
	Files  []releaseEntry `yaml:"files"`
}

type releaseEntry struct {
	URL    string `yaml:"url"`
	SHA256 string `yaml:"sha256"`
	SHA512 string `yaml:"sha512"`
}

func (e releaseEntry) digest(algorithm string) string {
	switch algorithm {
	case SHA256:
		return e.SHA256
	case SHA512:
		return e.SHA512
	}
	return ""
}

// ParseManifest extracts the digest of fileName from a checksum manifest and
// returns it as lowercase hex. manifestName selects the format: names ending
// in .yml or .yaml are read as release manifests; everything else as a
// sums file (GNU "<digest>  <file>", BSD "ALG (file) = <digest>", or a bare
// digest).
func ParseManifest(body []byte, manifestName, fileName, algorithm string) (string, error) {
	algorithm = Canonical(algorithm)
	if _, err := New(algorithm); err != nil {
		return "", err
	}

	var (
		raw string
		err error
	)
	switch strings.ToLower(path.Ext(manifestName)) {
	case ".yml", ".yaml":
		raw, err = parseRelease(body, fileName, algorithm)
	default:
		raw, err = parseSums(body, fileName, algorithm)
	}
	if err != nil {
		return "", err
	}
	return Normalize(raw, algorithm)
}

func parseRelease(body []byte, fileName, algorithm string) (string, error) {
	var m releaseManifest
	if err := yaml.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("parse release manifest: %w", err)
	}

	for _, f := range m.Files {
		if path.Base(f.URL) == fileName {
			if d := f.digest(algorithm); d != "" {
				return d, nil
			}
		}
	}
	top := releaseEntry{URL: m.Path, SHA256: m.SHA256, SHA512: m.SHA512}
	if d := top.digest(algorithm); d != "" && (m.Path == "" || path.Base(m.Path) == fileName) {
		return d, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", domain.ErrManifestEntryMissing, fileName, algorithm)
}

func parseSums(body []byte, fileName, algorithm string) (string, error) {
	var (
		bare    []string
		matched string
	)

	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := bsdLine.FindStringSubmatch(line); m != nil {
			if Canonical(m[1]) == algorithm && path.Base(m[2]) == fileName {
				matched = m[3]
			}
			continue
		}

		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			bare = append(bare, fields[0])
		default:
			name := strings.TrimPrefix(strings.Join(fields[1:], " "), "*")
			if path.Base(name) == fileName {
				matched = fields[0]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read sums manifest: %w", err)
	}

	if matched != "" {
		return matched, nil
	}
	if len(bare) == 1 {
		return bare[0], nil
	}
	return "", fmt.Errorf("%w: %s (%s)", domain.ErrManifestEntryMissing, fileName, algorithm)
}
