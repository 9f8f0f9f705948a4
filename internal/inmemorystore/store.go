// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the jobstore.Store interface.
//
// # Purpose
//
// This package keeps the history of every job submitted to one process:
// the job records, their tasks and blocks, each task's status transitions,
// outputs and resource samples. Nothing survives a restart.
//
// # Concurrency Model
//
// Jobs and tasks are stored in sync.Maps keyed by id. Their histories are
// append-only slices guarded by a mutex per entry, so writes to different
// tasks never contend:
//   - **Write-Heavy Workload:** every status transition appends to a history
//   - **Independent Keys:** tasks of concurrent branches never share an entry
//   - **Concurrent Reads + Writes:** status queries run while the job executes
//
// Reads return copies; callers never observe a slice the store still appends to.
package inmemorystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/jobgridgo/internal/jobstore"
	"github.com/vk/jobgridgo/internal/model"
)

// Store is an in-memory implementation of jobstore.Store.
//
// The store maintains three independent sync.Maps:
//   - jobs: job id to *jobEntry (record plus task list in insertion order)
//   - tasks: task id to *taskEntry (statuses, outputs, stats)
//   - blocks: block id to *model.Block
type Store struct {
	jobs   sync.Map // Key: job id, Value: *jobEntry
	tasks  sync.Map // Key: task id, Value: *taskEntry
	blocks sync.Map // Key: block id, Value: *model.Block
}

type jobEntry struct {
	mu    sync.Mutex
	job   model.Job
	tasks []*model.Task
}

type taskEntry struct {
	mu       sync.Mutex
	jobID    string
	blockID  string
	statuses []model.TaskStatus
	outputs  []model.TaskOutput
	stats    []model.ProcessStats
}

// New creates a new, empty in-memory job store.
func New() *Store {
	return &Store{}
}

var _ jobstore.Store = (*Store)(nil)

func (s *Store) InsertJob(ctx context.Context, job model.Job) error {
	if _, loaded := s.jobs.LoadOrStore(job.ID, &jobEntry{job: job}); loaded {
		return fmt.Errorf("job %s already stored", job.ID)
	}
	return nil
}

// InsertTask records a task and appends it to its job's task list.
func (s *Store) InsertTask(ctx context.Context, jobID, blockID string, task *model.Task) error {
	je, err := s.job(jobID)
	if err != nil {
		return err
	}
	if _, loaded := s.tasks.LoadOrStore(task.ID, &taskEntry{jobID: jobID, blockID: blockID}); loaded {
		return fmt.Errorf("task %s already stored", task.ID)
	}
	je.mu.Lock()
	je.tasks = append(je.tasks, task)
	je.mu.Unlock()
	return nil
}

func (s *Store) InsertBlock(ctx context.Context, jobID string, block *model.Block) error {
	if _, err := s.job(jobID); err != nil {
		return err
	}
	s.blocks.Store(block.ID, block)
	return nil
}

// InsertStatus appends a status to the task's history. A status naming a
// job other than the task's own is refused.
func (s *Store) InsertStatus(ctx context.Context, status model.TaskStatus) error {
	te, err := s.task(status.TaskID)
	if err != nil {
		return err
	}
	if status.JobID != "" && status.JobID != te.jobID {
		return fmt.Errorf("task %s belongs to job %s, not %s", status.TaskID, te.jobID, status.JobID)
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	te.statuses = append(te.statuses, status)
	return nil
}

// UpdatePid sets the pid on the task's most recent status.
func (s *Store) UpdatePid(ctx context.Context, taskID string, pid int) error {
	te, err := s.task(taskID)
	if err != nil {
		return err
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	if len(te.statuses) == 0 {
		return fmt.Errorf("no status for task %s: %w", taskID, jobstore.ErrNotFound)
	}
	te.statuses[len(te.statuses)-1].Pid = pid
	return nil
}

func (s *Store) InsertStats(ctx context.Context, taskID string, stats []model.ProcessStats) error {
	te, err := s.task(taskID)
	if err != nil {
		return err
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	te.stats = append(te.stats, stats...)
	return nil
}

func (s *Store) InsertOutput(ctx context.Context, output model.TaskOutput) error {
	te, err := s.task(output.TaskID)
	if err != nil {
		return err
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	te.outputs = append(te.outputs, output)
	return nil
}

func (s *Store) FinishJob(ctx context.Context, jobID string, at time.Time) error {
	je, err := s.job(jobID)
	if err != nil {
		return err
	}
	je.mu.Lock()
	defer je.mu.Unlock()
	je.job.FinishedAt = at
	return nil
}

func (s *Store) Job(ctx context.Context, jobID string) (model.Job, error) {
	je, err := s.job(jobID)
	if err != nil {
		return model.Job{}, err
	}
	je.mu.Lock()
	defer je.mu.Unlock()
	return je.job, nil
}

func (s *Store) TasksOfJob(ctx context.Context, jobID string) ([]*model.Task, error) {
	je, err := s.job(jobID)
	if err != nil {
		return nil, err
	}
	je.mu.Lock()
	defer je.mu.Unlock()
	return append([]*model.Task(nil), je.tasks...), nil
}

func (s *Store) HasTask(ctx context.Context, taskID string) (bool, error) {
	_, ok := s.tasks.Load(taskID)
	return ok, nil
}

// LastStatus returns the most recent status of a task. A task stored
// without any status is reported as ErrNotFound.
func (s *Store) LastStatus(ctx context.Context, taskID string) (model.TaskStatus, error) {
	te, err := s.task(taskID)
	if err != nil {
		return model.TaskStatus{}, err
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	if len(te.statuses) == 0 {
		return model.TaskStatus{}, fmt.Errorf("no status for task %s: %w", taskID, jobstore.ErrNotFound)
	}
	return te.statuses[len(te.statuses)-1], nil
}

func (s *Store) Stats(ctx context.Context, taskID string) ([]model.ProcessStats, error) {
	te, err := s.task(taskID)
	if err != nil {
		return nil, err
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	return append([]model.ProcessStats(nil), te.stats...), nil
}

func (s *Store) Outputs(ctx context.Context, taskID string) ([]model.TaskOutput, error) {
	te, err := s.task(taskID)
	if err != nil {
		return nil, err
	}
	te.mu.Lock()
	defer te.mu.Unlock()
	return append([]model.TaskOutput(nil), te.outputs...), nil
}

func (s *Store) job(id string) (*jobEntry, error) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, jobstore.ErrNotFound)
	}
	return v.(*jobEntry), nil
}

func (s *Store) task(id string) (*taskEntry, error) {
	v, ok := s.tasks.Load(id)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, jobstore.ErrNotFound)
	}
	return v.(*taskEntry), nil
}
