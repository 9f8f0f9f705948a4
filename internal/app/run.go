package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/descriptor"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/notify"
)

// ErrTasksFailed is returned by Run when at least one step failed.
var ErrTasksFailed = errors.New("job finished with failed tasks")

// Run loads the configured job, submits it and waits for it to finish.
// Cancelling ctx stops the job from starting new steps; steps already
// running are waited for.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer a.closeHealthCheckServer()
	if a.remote != nil {
		defer a.remote.Close()
	}

	d, err := descriptor.Load(ctx, a.config.JobPath)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	progress := a.hub.Register("", 256)
	defer progress.Close()
	go a.logProgress(progress.C())

	status, err := a.service.Create(ctx, d)
	if err != nil {
		return fmt.Errorf("job rejected: %w", err)
	}
	a.jobID.Store(status.ID)
	a.logger.Info("🚀 Job submitted", "job_id", status.ID, "job", status.Name, "tasks", len(status.Statuses))

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			a.logger.Warn("🛑 Interrupted, no new tasks will start.")
			_ = a.service.Cancel(status.ID)
		case <-finished:
		}
	}()

	outcome, err := a.service.Wait(context.WithoutCancel(ctx), status.ID)
	if err != nil {
		return err
	}
	final, err := a.service.JobStatus(context.WithoutCancel(ctx), status.ID)
	if err == nil {
		a.summarize(final)
	}
	a.logger.Info("🏁 Execution finished.", "executed", outcome.Executed, "failed", outcome.Failed)

	switch {
	case outcome.Err != nil:
		return outcome.Err
	case outcome.Failed > 0:
		return fmt.Errorf("%w: %d of %d steps failed", ErrTasksFailed, outcome.Failed, outcome.Executed)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) logProgress(ch <-chan notify.Message) {
	for msg := range ch {
		a.logger.Info("📣 Task status", "task", msg.TaskName, "task_id", msg.TaskID, "status", msg.Status.String())
	}
}

func (a *App) summarize(s *model.JobStatus) {
	for _, ts := range s.Statuses {
		a.logger.Info("Task result", "task", ts.TaskName, "status", ts.Type.String(), "pid", ts.Pid)
	}
}
