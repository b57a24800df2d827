package app

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"stagehand/internal/adapter/coordinator"
	"stagehand/internal/adapter/platform"
	"stagehand/internal/config"
	"stagehand/internal/domain"
)

// Coordinator runs a flat task list in one execution mode.
type Coordinator interface {
	Run(ctx context.Context, mode coordinator.Mode, tasks []domain.Task) error
	RunAll(ctx context.Context, mode coordinator.Mode, tasks []domain.Task) (*coordinator.Report, error)
}

// RunOptions controls one Build or Acquire call.
type RunOptions struct {
	Mode coordinator.Mode
	// Aggregate waits for every task and returns a report; otherwise the
	// first failure is returned as soon as it is seen.
	Aggregate bool
	// Names restricts Acquire to these resources. Empty means all.
	Names []string
}

// Service builds the per-platform task lists and hands them to the
// coordinator.
type Service struct {
	manifest  *config.Manifest
	coord     Coordinator
	bundler   domain.Bundler
	compiler  domain.Compiler
	stager    domain.Stager
	fetcher   domain.Fetcher
	installer domain.Installer
	logger    domain.Logger
}

// NewService creates the application service with all dependencies injected.
func NewService(
	m *config.Manifest,
	co Coordinator,
	bd domain.Bundler,
	cp domain.Compiler,
	sg domain.Stager,
	ft domain.Fetcher,
	in domain.Installer,
	lg domain.Logger,
) *Service {
	return &Service{
		manifest:  m,
		coord:     co,
		bundler:   bd,
		compiler:  cp,
		stager:    sg,
		fetcher:   ft,
		installer: in,
		logger:    lg,
	}
}

// BuildTasks returns one task per bundle, plus one per helper whose hosts
// include host.OS. A helper with no hosts is built everywhere.
func (s *Service) BuildTasks(host domain.Host) []domain.Task {
	var tasks []domain.Task
	for _, b := range s.manifest.Bundles {
		b := b
		tasks = append(tasks, domain.Task{
			Name: "bundle:" + b.Name,
			Run: func(ctx context.Context) error {
				return s.bundler.Bundle(ctx, b)
			},
		})
	}

	for _, h := range s.manifest.Helpers {
		h := h
		if !matchesHost(h.Hosts, host) {
			s.logger.Debug("helper not built on this host", "helper", h.Name, "host", host.OS)
			continue
		}
		tasks = append(tasks, domain.Task{
			Name: "helper:" + h.Name,
			Run: func(ctx context.Context) error {
				return s.buildHelper(ctx, h)
			},
		})
	}
	return tasks
}

// buildHelper compiles target and then copies the output to each staged name.
func (s *Service) buildHelper(ctx context.Context, target domain.BuildTarget) error {
	if err := s.compiler.Compile(ctx, target); err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	for _, dst := range target.Stage {
		// A bare file name is staged next to the output.
		if filepath.Base(dst) == dst {
			dst = filepath.Join(filepath.Dir(target.Output), dst)
		}
		if err := s.stager.Stage(target.Output, dst); err != nil {
			return fmt.Errorf("stage: %w", err)
		}
	}
	return nil
}

// Build runs BuildTasks(host) as a single coordination call. The report is
// nil unless opts.Aggregate is set.
func (s *Service) Build(ctx context.Context, host domain.Host, opts RunOptions) (*coordinator.Report, error) {
	tasks := s.BuildTasks(host)
	s.logger.Info("building", "host", host.OS, "arch", host.Arch, "tasks", len(tasks), "mode", opts.Mode.String())
	return s.run(ctx, opts, tasks)
}

// AcquireTasks returns one task per resource available on host: fetch, then
// extract when the resource names an extract directory.
func (s *Service) AcquireTasks(host domain.Host, names []string) ([]domain.Task, error) {
	for _, n := range names {
		n := n
		if !slices.ContainsFunc(s.manifest.Resources, func(r domain.Resource) bool { return r.Name == n }) {
			return nil, fmt.Errorf("unknown resource %q (have: %s)", n, strings.Join(s.manifest.Names(), ", "))
		}
	}

	var tasks []domain.Task
	for _, r := range s.manifest.Resources {
		r := r
		if len(names) > 0 && !slices.Contains(names, r.Name) {
			continue
		}
		if !matchesHost(r.Platforms, host) {
			s.logger.Debug("resource not used on this host", "resource", r.Name, "host", host.OS)
			continue
		}
		tasks = append(tasks, domain.Task{
			Name: "resource:" + r.Name,
			Run: func(ctx context.Context) error {
				return s.acquire(ctx, r)
			},
		})
	}
	return tasks, nil
}

func (s *Service) acquire(ctx context.Context, r domain.Resource) error {
	if err := s.fetcher.Fetch(ctx, r.Download); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if r.ExtractTo == "" {
		return nil
	}
	if err := s.installer.Extract(ctx, r.Download.Dest, r.ExtractTo); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	return nil
}

// Acquire runs AcquireTasks(host, opts.Names) as a single coordination call.
func (s *Service) Acquire(ctx context.Context, host domain.Host, opts RunOptions) (*coordinator.Report, error) {
	tasks, err := s.AcquireTasks(host, opts.Names)
	if err != nil {
		return nil, err
	}
	s.logger.Info("acquiring resources", "host", host.OS, "tasks", len(tasks), "mode", opts.Mode.String())
	return s.run(ctx, opts, tasks)
}

func (s *Service) run(ctx context.Context, opts RunOptions, tasks []domain.Task) (*coordinator.Report, error) {
	if opts.Aggregate {
		return s.coord.RunAll(ctx, opts.Mode, tasks)
	}
	return nil, s.coord.Run(ctx, opts.Mode, tasks)
}

// matchesHost reports whether host is in filter. Entries may be GOOS values
// (windows) or resource directory names (win). An empty filter matches all.
func matchesHost(filter []string, host domain.Host) bool {
	if len(filter) == 0 {
		return true
	}
	dir, _ := platform.PlatformDir(host.OS)
	for _, f := range filter {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == host.OS || (dir != "" && f == dir) {
			return true
		}
	}
	return false
}
