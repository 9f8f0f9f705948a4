// Package jobstore defines the interface for persisting what happens to a
// job: its tasks and blocks, every status transition, the captured outputs
// and the resource samples of each attempt.
//
// # Why a Job Store Exists
//
// The scheduler never reads its own history back. Persistence exists for
// the people watching a job: the last known status of every task must stay
// queryable while the job runs and after it ends, including for tasks that
// never ran because of a cancel or an upstream failure.
//
// # Failure Semantics
//
// Writes are best-effort from the engine's point of view. A store error is
// logged by the caller and swallowed; it never aborts scheduling. Reads
// return ErrNotFound for unknown jobs and tasks.
//
// # Lifecycle
//
//  1. InsertJob, InsertTask and InsertBlock run once at submission, followed
//     by one PENDING status per task.
//  2. InsertStatus, UpdatePid, InsertStats and InsertOutput run as events
//     arrive from the dispatcher.
//  3. FinishJob marks the job done once every tree and block has finished.
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/vk/jobgridgo/internal/model"
)

// ErrNotFound is returned by queries for unknown jobs or tasks.
var ErrNotFound = errors.New("not found")

// Store persists job state.
//
// Implementations MUST be safe for concurrent use: the dispatcher serializes
// event delivery, but status queries arrive from other goroutines.
type Store interface {
	// InsertJob records a submission.
	InsertJob(ctx context.Context, job model.Job) error

	// InsertTask records a task of a job. Block tasks carry the block id.
	InsertTask(ctx context.Context, jobID, blockID string, task *model.Task) error

	// InsertBlock records a block of a job.
	InsertBlock(ctx context.Context, jobID string, block *model.Block) error

	// InsertStatus appends a lifecycle transition to the task's history.
	InsertStatus(ctx context.Context, status model.TaskStatus) error

	// UpdatePid backfills the process id into the task's last status.
	UpdatePid(ctx context.Context, taskID string, pid int) error

	// InsertStats appends resource samples of an attempt.
	InsertStats(ctx context.Context, taskID string, stats []model.ProcessStats) error

	// InsertOutput appends the captured output of an attempt.
	InsertOutput(ctx context.Context, output model.TaskOutput) error

	// FinishJob sets the job-finished marker.
	FinishJob(ctx context.Context, jobID string, at time.Time) error

	// Job returns the job record.
	Job(ctx context.Context, jobID string) (model.Job, error)

	// TasksOfJob returns the job's tasks in insertion order.
	TasksOfJob(ctx context.Context, jobID string) ([]*model.Task, error)

	// HasTask reports whether a task id is already taken by any job.
	HasTask(ctx context.Context, taskID string) (bool, error)

	// LastStatus returns the most recent status of a task.
	LastStatus(ctx context.Context, taskID string) (model.TaskStatus, error)

	// Stats returns every resource sample recorded for a task.
	Stats(ctx context.Context, taskID string) ([]model.ProcessStats, error)

	// Outputs returns every output recorded for a task, oldest first.
	Outputs(ctx context.Context, taskID string) ([]model.TaskOutput, error)
}
