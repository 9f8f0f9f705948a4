package service

import (
	"context"
	"errors"

	"github.com/vk/jobgridgo/internal/jobstore"
	"github.com/vk/jobgridgo/internal/model"
)

func (s *Service) Job(ctx context.Context, jobID string) (model.Job, error) {
	return s.opts.Store.Job(ctx, jobID)
}

func (s *Service) TasksOfJob(ctx context.Context, jobID string) ([]*model.Task, error) {
	return s.opts.Store.TasksOfJob(ctx, jobID)
}

func (s *Service) LastTaskStatus(ctx context.Context, taskID string) (model.TaskStatus, error) {
	return s.opts.Store.LastStatus(ctx, taskID)
}

// JobStatus returns the last status of every task of the job, in the order
// the tasks were submitted.
func (s *Service) JobStatus(ctx context.Context, jobID string) (*model.JobStatus, error) {
	job, err := s.opts.Store.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.opts.Store.TasksOfJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	status := &model.JobStatus{ID: job.ID, Name: job.Name, Statuses: make([]model.TaskStatus, 0, len(tasks))}
	for _, t := range tasks {
		ts, err := s.opts.Store.LastStatus(ctx, t.ID)
		if errors.Is(err, jobstore.ErrNotFound) {
			ts = model.TaskStatus{TaskID: t.ID, TaskName: t.Name, JobID: jobID, Type: model.StatusPending}
		} else if err != nil {
			return nil, err
		}
		status.Statuses = append(status.Statuses, ts)
	}
	return status, nil
}

func (s *Service) TaskStats(ctx context.Context, taskID string) ([]model.ProcessStats, error) {
	return s.opts.Store.Stats(ctx, taskID)
}

func (s *Service) TaskOutputs(ctx context.Context, taskID string) ([]model.TaskOutput, error) {
	return s.opts.Store.Outputs(ctx, taskID)
}
