// Package service accepts job submissions and runs them.
//
// Create validates a descriptor, builds its task and block forests, records
// every task as PENDING and hands the work to a launcher in the background.
// Configuration errors are returned before anything is stored or run.
// Everything that happens afterwards reaches the store and the relay through
// the job's dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/dispatch"
	"github.com/vk/jobgridgo/internal/executor"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/forest"
	"github.com/vk/jobgridgo/internal/jobstore"
	"github.com/vk/jobgridgo/internal/launcher"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/notify"
	"github.com/vk/jobgridgo/internal/packages"
	"github.com/vk/jobgridgo/internal/runtime"
	"github.com/vk/jobgridgo/internal/tree"
	"github.com/vk/jobgridgo/internal/validate"
)

// ErrPreconditionsFailed is reported by Wait when the setup job failed and
// the job's tasks were never submitted.
var ErrPreconditionsFailed = errors.New("preconditions failed")

// Options wires a Service. Store and Runtime are required.
type Options struct {
	Store   jobstore.Store
	Runtime runtime.Runtime
	// Relay is optional.
	Relay notify.Relay
	// Packages resolves precondition packages. Its Steps field is ignored;
	// install steps are built with Steps below.
	Packages packages.Installer
	Steps    flow.StepBuilder
	// Workers bounds the steps running at once per job; 0 means unbounded.
	Workers int
	NewID   func() string
	Now     func() time.Time
}

// Outcome is what a finished job reports to Wait.
type Outcome struct {
	launcher.Report
	// Err is set when the job did not get to run its tasks.
	Err error
}

type run struct {
	launcher *launcher.Launcher
	done     chan struct{}
	outcome  Outcome
}

// Service runs jobs.
type Service struct {
	opts Options

	mu   sync.Mutex
	runs map[string]*run
}

func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("service: store is required")
	}
	if opts.Runtime == nil {
		return nil, errors.New("service: runtime is required")
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Packages.Steps = opts.Steps
	return &Service{opts: opts, runs: make(map[string]*run)}, nil
}

// Create submits d and returns immediately with every task PENDING. The job
// keeps running after ctx ends; use Cancel to stop it.
func (s *Service) Create(ctx context.Context, d *model.Descriptor) (*model.JobStatus, error) {
	d.Normalize(s.opts.NewID, s.opts.Now())
	ctx = ctxlog.With(context.WithoutCancel(ctx), "job_id", d.ID, "job", d.Name)
	logger := ctxlog.FromContext(ctx)

	if err := validate.Blocks(d.Blocks).Err(); err != nil {
		logger.Error("Job rejected.", "error", err)
		return nil, err
	}
	if err := validate.TaskIDs(d.AllTasks()); err != nil {
		logger.Error("Job rejected.", "error", err)
		return nil, err
	}
	if err := s.unusedIDs(ctx, d); err != nil {
		logger.Error("Job rejected.", "error", err)
		return nil, err
	}
	taskTrees, err := forest.Tasks(d.Tasks)
	if err != nil {
		logger.Error("Job rejected.", "error", err)
		return nil, err
	}
	blockTrees, err := forest.Blocks(d.Blocks)
	if err != nil {
		logger.Error("Job rejected.", "error", err)
		return nil, err
	}
	setup, err := s.opts.Packages.Job(ctx, d.ID, d.Preconditions)
	if err != nil {
		return nil, fmt.Errorf("building preconditions of job %s: %w", d.ID, err)
	}

	status := s.persist(ctx, d)

	known := make(map[string]struct{})
	for _, t := range d.AllTasks() {
		known[t.ID] = struct{}{}
	}
	events := dispatch.New(ctx, d.ID)
	events.Subscribe("store", s.handlers(d.ID, known))

	l := launcher.New(ctx, executor.NewSteps(s.opts.Runtime, events, d.ID), events, s.opts.Workers)
	r := &run{launcher: l, done: make(chan struct{})}
	s.mu.Lock()
	s.runs[d.ID] = r
	s.mu.Unlock()

	logger.Info("📥 Job accepted", "tasks", len(status.Statuses), "trees", len(taskTrees), "blocks", len(d.Blocks))
	go s.execute(ctx, d.ID, r, events, setup, taskTrees, blockTrees)
	return status, nil
}

// unusedIDs rejects a job or task id that an earlier submission already
// stored.
func (s *Service) unusedIDs(ctx context.Context, d *model.Descriptor) error {
	_, err := s.opts.Store.Job(ctx, d.ID)
	switch {
	case err == nil:
		return &model.ConfigError{Subject: "job " + d.ID, Err: fmt.Errorf("%w: job id %s already submitted", model.ErrDuplicateID, d.ID)}
	case !errors.Is(err, jobstore.ErrNotFound):
		return fmt.Errorf("checking job id %s: %w", d.ID, err)
	}
	for _, t := range d.AllTasks() {
		taken, err := s.opts.Store.HasTask(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("checking task id %s: %w", t.ID, err)
		}
		if taken {
			return &model.ConfigError{Subject: "task " + t.Name, Err: fmt.Errorf("%w: task id %s already submitted", model.ErrDuplicateID, t.ID)}
		}
	}
	return nil
}

// persist stores the job, its tasks and blocks, and one PENDING status per
// task. Store errors are logged and skipped.
func (s *Service) persist(ctx context.Context, d *model.Descriptor) *model.JobStatus {
	logger := ctxlog.FromContext(ctx)
	st := s.opts.Store
	status := &model.JobStatus{ID: d.ID, Name: d.Name}

	if err := st.InsertJob(ctx, model.Job{ID: d.ID, Name: d.Name, User: d.User, CreatedAt: d.CreatedAt}); err != nil {
		logger.Error("Failed to store job.", "error", err)
	}
	pending := func(blockID string, t *model.Task) {
		if err := st.InsertTask(ctx, d.ID, blockID, t); err != nil {
			logger.Error("Failed to store task.", "task", t.Name, "error", err)
		}
		ts := model.TaskStatus{TaskID: t.ID, TaskName: t.Name, JobID: d.ID, Type: model.StatusPending, Time: s.opts.Now()}
		if err := st.InsertStatus(ctx, ts); err != nil {
			logger.Error("Failed to store status.", "task", t.Name, "error", err)
		}
		status.Statuses = append(status.Statuses, ts)
	}
	for _, t := range d.Tasks {
		pending("", t)
	}
	for _, b := range d.Blocks {
		if err := st.InsertBlock(ctx, d.ID, b); err != nil {
			logger.Error("Failed to store block.", "block", b.Name, "error", err)
		}
		for _, t := range b.Tasks {
			pending(b.ID, t)
		}
	}
	return status
}

func (s *Service) execute(
	ctx context.Context,
	jobID string,
	r *run,
	d *dispatch.Dispatcher,
	setup *flow.Job,
	taskTrees []*tree.Tree[*model.Task],
	blockTrees []*tree.Tree[*forest.BlockNode],
) {
	logger := ctxlog.FromContext(ctx)
	defer close(r.done)
	defer d.Close()

	if len(setup.Flows()) > 0 {
		execution := <-r.launcher.RunJob(setup)
		if execution == nil || !execution.Successful() {
			logger.Error("❌ Preconditions failed, job tasks will not run.")
			r.outcome.Err = ErrPreconditionsFailed
		}
	}

	if r.outcome.Err == nil {
		steps := make([]*tree.Tree[*flow.Step], len(taskTrees))
		for i, t := range taskTrees {
			steps[i] = tree.Map(t, s.opts.Steps.Build)
		}
		blocks := make([]*tree.Tree[*flow.Block], len(blockTrees))
		for i, t := range blockTrees {
			blocks[i] = tree.Map(t, s.block)
		}
		r.launcher.SubmitTrees(steps)
		r.launcher.SubmitBlocks(blocks)
	}
	r.outcome.Report = r.launcher.Wait()

	if err := s.opts.Store.FinishJob(ctx, jobID, s.opts.Now()); err != nil {
		logger.Error("Failed to mark job finished.", "error", err)
	}
	logger.Info("🏁 Job done", "executed", r.outcome.Executed, "failed", r.outcome.Failed)
}

func (s *Service) block(n *forest.BlockNode) *flow.Block {
	return &flow.Block{
		ID:     n.Block.ID,
		Name:   n.Block.Name,
		Repeat: n.Block.Iterations(),
		Steps:  tree.Map(n.Tasks, s.opts.Steps.Build),
	}
}

// Wait blocks until the job has finished or ctx ends.
func (s *Service) Wait(ctx context.Context, jobID string) (Outcome, error) {
	r, err := s.run(jobID)
	if err != nil {
		return Outcome{}, err
	}
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel stops the job from starting anything new. Commands already running
// finish on their own.
func (s *Service) Cancel(jobID string) error {
	r, err := s.run(jobID)
	if err != nil {
		return err
	}
	r.launcher.Cancel()
	return nil
}

func (s *Service) run(jobID string) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, jobstore.ErrNotFound)
	}
	return r, nil
}
