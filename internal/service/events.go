package service

import (
	"context"
	"errors"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/dispatch"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/notify"
)

// handlers persists and relays the events of one job. Events of steps that
// are not tasks of the job, such as precondition installs, are only logged.
func (s *Service) handlers(jobID string, known map[string]struct{}) dispatch.Handlers {
	isTask := func(id string) bool {
		_, ok := known[id]
		return ok
	}

	return dispatch.Handlers{
		TaskStatusChanged: func(ctx context.Context, e dispatch.TaskStatusChanged) error {
			if !isTask(e.Status.TaskID) {
				ctxlog.FromContext(ctx).Debug("Setup step status.", "step", e.Status.TaskName, "status", e.Status.Type.String())
				return nil
			}
			var errs []error
			if err := s.opts.Store.InsertStatus(ctx, e.Status); err != nil {
				errs = append(errs, err)
			}
			if s.opts.Relay != nil {
				if err := s.opts.Relay.Notify(ctx, notify.NewMessage(e.Status, e.Output)); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},

		StepResult: func(ctx context.Context, e dispatch.StepResult) error {
			r := e.Result
			if r == nil || r.Step == nil || !isTask(r.Step.ID) {
				return nil
			}
			taskID := r.Step.ID
			var errs []error
			if r.Success != nil || r.Failure != nil {
				out := model.NewTaskOutput(s.opts.NewID(), jobID, taskID, r.Output(), s.opts.Now())
				if err := s.opts.Store.InsertOutput(ctx, out); err != nil {
					errs = append(errs, err)
				}
			}
			if r.Success != nil && len(r.Success.Stats) > 0 {
				if err := s.opts.Store.InsertStats(ctx, taskID, r.Success.Stats); err != nil {
					errs = append(errs, err)
				}
			}
			if pid := r.Pid(); pid > 0 {
				if err := s.opts.Store.UpdatePid(ctx, taskID, pid); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},

		FlowCompleted: func(ctx context.Context, e dispatch.FlowCompleted) error {
			ctxlog.FromContext(ctx).Info("Flow completed.", "flow", e.Result.Flow.Name,
				"successful", e.Result.Successful(), "cancelled", e.Result.WasCancelled)
			return nil
		},

		JobCompleted: func(ctx context.Context, e dispatch.JobCompleted) error {
			ctxlog.FromContext(ctx).Info("Setup job completed.", "name", e.Execution.Job.Name,
				"elapsed", e.Execution.Elapsed, "successful", e.Execution.Successful())
			return nil
		},
	}
}
