package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"stagehand/internal/adapter/checksum"
	"stagehand/internal/domain"
)

// writableMode is OR-ed into a resource's permissions when it is marked
// writable.
const writableMode = 0o200

// Manifest is the decoded build manifest.
type Manifest struct {
	Bundles   []domain.BundleSpec
	Helpers   []domain.BuildTarget
	Resources []domain.Resource
}

// Variables are exposed to manifest expressions. ResourceDir is the
// absolute <resource_root>/<platform_dir> tree for the host.
type Variables struct {
	Host         domain.Host
	PlatformDir  string
	ResourceRoot string
	ResourceDir  string
	Env          map[string]string
}

// manifestFile is the top-level structure of a manifest for decoding.
type manifestFile struct {
	Bundles   []*bundleBlock   `hcl:"bundle,block"`
	Helpers   []*helperBlock   `hcl:"helper,block"`
	Resources []*resourceBlock `hcl:"resource,block"`
}

type bundleBlock struct {
	Name      string   `hcl:"name,label"`
	Entry     string   `hcl:"entry"`
	OutDir    string   `hcl:"outdir"`
	Externals []string `hcl:"externals,optional"`
	Platform  string   `hcl:"platform,optional"`
	Format    string   `hcl:"format,optional"`
	Minify    bool     `hcl:"minify,optional"`
	Sourcemap bool     `hcl:"sourcemap,optional"`
}

type helperBlock struct {
	Name    string   `hcl:"name,label"`
	Source  string   `hcl:"source,optional"`
	Output  string   `hcl:"output"`
	OS      string   `hcl:"os"`
	Arch    string   `hcl:"arch"`
	LDFlags string   `hcl:"ldflags,optional"`
	Stage   []string `hcl:"stage,optional"`
	Hosts   []string `hcl:"hosts,optional"`
}

type resourceBlock struct {
	Name              string   `hcl:"name,label"`
	URL               string   `hcl:"url"`
	Dest              string   `hcl:"dest"`
	Algorithm         string   `hcl:"algorithm,optional"`
	Checksum          string   `hcl:"checksum,optional"`
	ManifestURL       string   `hcl:"manifest_url,optional"`
	CompanionManifest bool     `hcl:"companion_manifest,optional"`
	Writable          bool     `hcl:"writable,optional"`
	ExtractTo         string   `hcl:"extract_to,optional"`
	Platforms         []string `hcl:"platforms,optional"`
}

// LoadManifest parses and decodes the manifest at path.
func LoadManifest(path string, vars Variables) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(src, filepath.Base(path), vars)
}

// ParseManifest decodes manifest source. filename is only used in
// diagnostics.
func ParseManifest(src []byte, filename string, vars Variables) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var raw manifestFile
	diags = gohcl.DecodeBody(file.Body, evalContext(vars), &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	m, err := raw.build()
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", filename, err)
	}
	return m, nil
}

func evalContext(vars Variables) *hcl.EvalContext {
	env := vars.Env
	if env == nil {
		env = environ()
	}
	envVals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		envVals[k] = cty.StringVal(v)
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(envVals) > 0 {
		envVal = cty.MapVal(envVals)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"host": cty.ObjectVal(map[string]cty.Value{
				"os":   cty.StringVal(vars.Host.OS),
				"arch": cty.StringVal(vars.Host.Arch),
			}),
			"platform_dir":  cty.StringVal(vars.PlatformDir),
			"resource_root": cty.StringVal(vars.ResourceRoot),
			"resource_dir":  cty.StringVal(vars.ResourceDir),
			"env":           envVal,
		},
		Functions: map[string]function.Function{
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
			"join":   stdlib.JoinFunc,
			"format": stdlib.FormatFunc,
			"concat": stdlib.ConcatFunc,
		},
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	return env
}

func (f *manifestFile) build() (*Manifest, error) {
	m := &Manifest{}
	seen := map[string]bool{}
	claim := func(kind, name string) error {
		key := kind + "." + name
		if seen[key] {
			return fmt.Errorf("duplicate %s %q", kind, name)
		}
		seen[key] = true
		return nil
	}

	for _, b := range f.Bundles {
		if err := claim("bundle", b.Name); err != nil {
			return nil, err
		}
		m.Bundles = append(m.Bundles, domain.BundleSpec{
			Name:      b.Name,
			Entry:     b.Entry,
			OutDir:    b.OutDir,
			Externals: b.Externals,
			Platform:  b.Platform,
			Format:    b.Format,
			Minify:    b.Minify,
			Sourcemap: b.Sourcemap,
		})
	}

	for _, h := range f.Helpers {
		if err := claim("helper", h.Name); err != nil {
			return nil, err
		}
		m.Helpers = append(m.Helpers, domain.BuildTarget{
			Name:      h.Name,
			SourceDir: h.Source,
			Output:    h.Output,
			OS:        h.OS,
			Arch:      h.Arch,
			LDFlags:   h.LDFlags,
			Stage:     h.Stage,
			Hosts:     h.Hosts,
		})
	}

	dests := map[string]string{}
	for _, r := range f.Resources {
		if err := claim("resource", r.Name); err != nil {
			return nil, err
		}
		res, err := r.resource()
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", r.Name, err)
		}
		key := filepath.Clean(res.Download.Dest)
		if other, dup := dests[key]; dup {
			return nil, fmt.Errorf("resources %q and %q share destination %s", other, r.Name, res.Download.Dest)
		}
		dests[key] = r.Name
		m.Resources = append(m.Resources, res)
	}
	return m, nil
}

func (r *resourceBlock) resource() (domain.Resource, error) {
	algorithm := checksum.SHA512
	if r.Algorithm != "" {
		algorithm = checksum.Canonical(r.Algorithm)
	}
	if _, err := checksum.New(algorithm); err != nil {
		return domain.Resource{}, err
	}

	sources := 0
	for _, set := range []bool{r.Checksum != "", r.ManifestURL != "", r.CompanionManifest} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return domain.Resource{}, fmt.Errorf("exactly one of checksum, manifest_url or companion_manifest is required")
	}

	d := domain.Download{
		URL:       r.URL,
		Dest:      r.Dest,
		Algorithm: algorithm,
	}
	switch {
	case r.Checksum != "":
		expected, err := checksum.Normalize(r.Checksum, algorithm)
		if err != nil {
			return domain.Resource{}, err
		}
		d.Expected = expected
	case r.ManifestURL != "":
		d.Manifest = &domain.ChecksumSource{ResourceURL: r.URL, ManifestURL: r.ManifestURL, Algorithm: algorithm}
	default:
		d.Manifest = domain.CompanionManifest(r.URL, algorithm)
	}
	if r.Writable {
		d.Mode = writableMode
	}

	return domain.Resource{
		Name:      r.Name,
		Download:  d,
		ExtractTo: r.ExtractTo,
		Platforms: r.Platforms,
	}, nil
}

// Names returns the resource names in the manifest, sorted.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Resources))
	for _, r := range m.Resources {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}
