package app

import (
	"context"
	"sync"

	"stagehand/internal/adapter/coordinator"
	"stagehand/internal/domain"
)

// mockCoordinator records each coordination call and runs the tasks
// serially so tests stay deterministic.
type mockCoordinator struct {
	mu        sync.Mutex
	calls     int
	lastMode  coordinator.Mode
	lastTasks []domain.Task
	aggregate bool
}

func (m *mockCoordinator) record(mode coordinator.Mode, tasks []domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMode = mode
	m.lastTasks = tasks
}

func (m *mockCoordinator) Run(ctx context.Context, mode coordinator.Mode, tasks []domain.Task) error {
	m.record(mode, tasks)
	for _, t := range tasks {
		if err := t.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunAll delegates to a real coordinator in the requested mode.
func (m *mockCoordinator) RunAll(ctx context.Context, mode coordinator.Mode, tasks []domain.Task) (*coordinator.Report, error) {
	m.record(mode, tasks)
	m.aggregate = true
	return coordinator.New(coordinator.Options{}, &mockLogger{}).RunAll(ctx, mode, tasks)
}

// eventLog is an ordered, concurrency-safe record of side effects.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// mockBundler records bundle specs.
type mockBundler struct {
	mu    sync.Mutex
	specs []domain.BundleSpec
	err   error
}

func (m *mockBundler) Bundle(_ context.Context, spec domain.BundleSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.specs = append(m.specs, spec)
	return m.err
}

// mockCompiler records compiled targets.
type mockCompiler struct {
	log     *eventLog
	mu      sync.Mutex
	targets []domain.BuildTarget
	err     error
}

func (m *mockCompiler) Compile(_ context.Context, target domain.BuildTarget) error {
	m.mu.Lock()
	m.targets = append(m.targets, target)
	m.mu.Unlock()
	m.log.add("compile " + target.Name)
	return m.err
}

// mockStager records staging copies.
type mockStager struct {
	log *eventLog
	err error
}

func (m *mockStager) Stage(src, dst string) error {
	m.log.add("stage " + src + " -> " + dst)
	return m.err
}

// mockFetcher records downloads.
type mockFetcher struct {
	log *eventLog
	err error
}

func (m *mockFetcher) Fetch(_ context.Context, d domain.Download) error {
	m.log.add("fetch " + d.Dest)
	return m.err
}

// mockInstaller records extractions.
type mockInstaller struct {
	log *eventLog
	err error
}

func (m *mockInstaller) Extract(_ context.Context, archive, target string) error {
	m.log.add("extract " + archive + " -> " + target)
	return m.err
}

// mockLogger discards all log output.
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any) {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
