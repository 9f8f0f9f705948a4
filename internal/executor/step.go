// Package executor runs single steps and sequential flows, classifies their
// outcomes and reports every transition to a dispatcher.
//
// Cancellation is cooperative. A running command is never interrupted: step
// commands run detached from the caller's cancellation, and a cancel only
// prevents steps that have not started yet from starting.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/vk/jobgridgo/internal/classify"
	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/dispatch"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/runtime"
)

// Steps executes individual steps of one job.
type Steps struct {
	runtime    runtime.Runtime
	dispatcher *dispatch.Dispatcher
	jobID      string
	now        func() time.Time
}

func NewSteps(rt runtime.Runtime, d *dispatch.Dispatcher, jobID string) *Steps {
	return &Steps{runtime: rt, dispatcher: d, jobID: jobID, now: time.Now}
}

func (s *Steps) JobID() string {
	return s.jobID
}

// Execute runs the step's tasklets and command, classifies the output and
// posts RUNNING, then FINISHED or FAILED, then the step result.
func (s *Steps) Execute(ctx context.Context, step *flow.Step) *flow.StepExecutionResult {
	ctx = ctxlog.With(context.WithoutCancel(ctx), "step", step.Name, "step_id", step.ID)
	logger := ctxlog.FromContext(ctx)
	result := &flow.StepExecutionResult{Step: step}

	s.postStatus(ctx, step, model.StatusRunning, "")
	logger.Info("▶️ Starting step")

	for _, tasklet := range step.Tasklets {
		if _, err := s.runtime.Run(ctx, tasklet); err != nil {
			logger.Warn("Tasklet failed, continuing.", "tasklet", tasklet.ID, "error", err)
		}
	}

	res, err := s.runtime.Run(ctx, step.Command)
	if err != nil {
		var timeoutErr *runtime.TimeoutError
		var failedErr *runtime.FailedError
		switch {
		case errors.As(err, &timeoutErr):
			logger.Warn("⏱️ Step timed out in the runtime.", "timeout", timeoutErr.Timeout)
			s.postStatus(ctx, step, model.StatusFailed, timeoutErr.Output)
			return result
		case errors.As(err, &failedErr):
			result.Failure = &flow.Failure{
				ExitCode:    failedErr.ExitCode,
				HasExitCode: failedErr.HasExitCode,
				Output:      failedErr.Output,
				Pid:         failedErr.Pid,
				Reason:      flow.ReasonRuntime,
			}
		default:
			result.Failure = &flow.Failure{Output: err.Error(), Reason: flow.ReasonRuntime}
		}
		logger.Error("❌ Step could not be run.", "error", err)
		s.postStatus(ctx, step, model.StatusFailed, result.Failure.Output)
		s.post(ctx, dispatch.StepResult{JobID: s.jobID, Result: result})
		return result
	}

	verdict := classify.Classify(step.Command.Line, res.Output)
	switch verdict.Outcome {
	case classify.Success:
		result.Success = &flow.Success{
			ExitCode: verdict.ExitCode,
			Output:   res.Output,
			Pid:      res.Pid,
			Stats:    res.Stats,
		}
		logger.Info("✅ Finished step", "exit_code", verdict.ExitCode, "pid", res.Pid)
		s.postStatus(ctx, step, model.StatusFinished, res.Output)
	default:
		reason := flow.ReasonExit
		if verdict.Outcome == classify.Timeout {
			reason = flow.ReasonWallTime
		}
		result.Failure = &flow.Failure{
			ExitCode:    verdict.ExitCode,
			HasExitCode: verdict.HasExitCode,
			Output:      res.Output,
			Pid:         res.Pid,
			Reason:      reason,
		}
		logger.Warn("❌ Step failed", "outcome", verdict.Outcome.String(), "exit_code", verdict.ExitCode,
			"has_exit_code", verdict.HasExitCode, "walltime", verdict.WallTime, "limit", verdict.Limit)
		s.postStatus(ctx, step, model.StatusFailed, res.Output)
	}
	s.post(ctx, dispatch.StepResult{JobID: s.jobID, Result: result})
	return result
}

// Cancel reports the step as CANCELLED. It does not touch a running
// invocation.
func (s *Steps) Cancel(ctx context.Context, step *flow.Step) *flow.StepExecutionResult {
	ctxlog.FromContext(ctx).Info("🛑 Cancelling step", "step", step.Name, "step_id", step.ID)
	s.postStatus(ctx, step, model.StatusCancelled, "")
	return &flow.StepExecutionResult{Step: step, Cancelled: true}
}

func (s *Steps) postStatus(ctx context.Context, step *flow.Step, typ model.StatusType, output string) {
	s.post(ctx, dispatch.TaskStatusChanged{
		Status: model.TaskStatus{
			TaskID:   step.ID,
			TaskName: step.Name,
			JobID:    s.jobID,
			Type:     typ,
			Time:     s.now(),
		},
		Output: output,
	})
}

func (s *Steps) post(ctx context.Context, e dispatch.Event) {
	if err := s.dispatcher.Post(e); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to post event.", "event", e.Kind().String(), "error", err)
	}
}
