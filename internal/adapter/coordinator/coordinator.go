// Package coordinator runs a flat list of tasks either all at once or one
// after another.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stagehand/internal/domain"
)

// Mode selects how a list of tasks is executed.
type Mode int

const (
	// Parallel starts every task immediately and waits for all of them.
	Parallel Mode = iota
	// Serial runs tasks in list order, stopping at the first failure.
	Serial
)

func (m Mode) String() string {
	if m == Serial {
		return "serial"
	}
	return "parallel"
}

// ParseMode maps "serial" or "parallel" to a Mode. Empty means Parallel.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "parallel":
		return Parallel, nil
	case "serial":
		return Serial, nil
	default:
		return Parallel, fmt.Errorf("unknown execution mode %q: expected serial or parallel", raw)
	}
}

// Options tunes a Coordinator.
type Options struct {
	// Jobs caps concurrently running tasks in Parallel mode. Zero means no cap.
	Jobs int
}

// Coordinator executes task lists.
type Coordinator struct {
	jobs   int
	logger domain.Logger
}

// New creates a Coordinator.
func New(opts Options, logger domain.Logger) *Coordinator {
	return &Coordinator{jobs: opts.Jobs, logger: logger}
}

// TaskError ties a failure to the task that produced it.
type TaskError struct {
	Index int
	Name  string
	Err   error
}

func (e *TaskError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("task %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Run executes tasks in the given mode.
//
// Parallel: returns the first failure as soon as it is observed. Tasks still
// running keep going in the background and their errors are dropped.
// Serial: returns the first failure; later tasks are never started.
//
// The mode is read once per call, so two concurrent calls may run in
// different modes if callers pass different values.
func (c *Coordinator) Run(ctx context.Context, mode Mode, tasks []domain.Task) error {
	c.logger.Debug("coordinating tasks", "mode", mode.String(), "count", len(tasks))
	if mode == Serial {
		return c.runSerial(ctx, tasks, nil)
	}
	return c.runParallel(ctx, tasks)
}

func (c *Coordinator) runSerial(ctx context.Context, tasks []domain.Task, report *Report) error {
	for i, t := range tasks {
		if report != nil {
			report.start(i)
		}
		err := c.runTask(ctx, i, t)
		if report != nil {
			report.finish(i, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) runParallel(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	if c.jobs > 0 {
		g.SetLimit(c.jobs)
	}

	failed := make(chan error, len(tasks))
	all := make(chan error, 1)

	// Dispatch from a separate goroutine: with a job limit, g.Go blocks, and
	// the first failure must still reach the caller without waiting.
	go func() {
		for i, t := range tasks {
			i, t := i, t
			g.Go(func() error {
				err := c.runTask(ctx, i, t)
				if err != nil {
					failed <- err
				}
				return err
			})
		}
		all <- g.Wait()
	}()

	select {
	case err := <-failed:
		return err
	case err := <-all:
		return err
	}
}

// RunAll executes tasks like Run but waits for every started task and
// reports each outcome. The returned error joins every task failure; it is
// nil only when all tasks succeeded.
func (c *Coordinator) RunAll(ctx context.Context, mode Mode, tasks []domain.Task) (*Report, error) {
	report := newReport(mode, tasks)

	if mode == Serial {
		_ = c.runSerial(ctx, tasks, report)
		return report, report.Err()
	}

	var g errgroup.Group
	if c.jobs > 0 {
		g.SetLimit(c.jobs)
	}
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			report.start(i)
			report.finish(i, c.runTask(ctx, i, t))
			return nil
		})
	}
	_ = g.Wait()
	return report, report.Err()
}

func (c *Coordinator) runTask(ctx context.Context, i int, t domain.Task) error {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("task-%d", i)
	}
	c.logger.Info("task started", "task", name)
	start := time.Now()

	var err error
	if t.Run == nil {
		err = errors.New("task has no run function")
	} else {
		err = t.Run(ctx)
	}

	if err != nil {
		c.logger.Error("task failed", "task", name, "elapsed", time.Since(start), "err", err)
		return &TaskError{Index: i, Name: t.Name, Err: err}
	}
	c.logger.Info("task finished", "task", name, "elapsed", time.Since(start))
	return nil
}

// Status is the final state of one task in a Report.
type Status int

const (
	StatusSkipped Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "ok"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome records what happened to one task.
type Outcome struct {
	Index    int
	Name     string
	Status   Status
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Report collects outcomes in task-list order.
type Report struct {
	Mode     Mode
	mu       sync.Mutex
	outcomes []Outcome
}

func newReport(mode Mode, tasks []domain.Task) *Report {
	r := &Report{Mode: mode, outcomes: make([]Outcome, len(tasks))}
	for i, t := range tasks {
		r.outcomes[i] = Outcome{Index: i, Name: t.Name, Status: StatusSkipped}
	}
	return r
}

func (r *Report) start(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[i].Started = time.Now()
}

func (r *Report) finish(i int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := &r.outcomes[i]
	o.Duration = time.Since(o.Started)
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
		return
	}
	o.Status = StatusSucceeded
}

// Outcomes returns a copy of every outcome in task-list order.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Failed returns the failed outcomes in task-list order.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes() {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins every task failure, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}
