package executor

import (
	"context"
	"sync/atomic"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/dispatch"
	"github.com/vk/jobgridgo/internal/flow"
)

// Flow executes the steps of one flow strictly in order.
type Flow struct {
	flow       *flow.Flow
	steps      *Steps
	dispatcher *dispatch.Dispatcher
	cancelled  atomic.Bool
}

func NewFlow(f *flow.Flow, steps *Steps, d *dispatch.Dispatcher) *Flow {
	return &Flow{flow: f, steps: steps, dispatcher: d}
}

// Cancel asks the flow to stop before its next step. Safe to call from any
// goroutine, including from inside a running step.
func (e *Flow) Cancel() {
	e.cancelled.Store(true)
}

func (e *Flow) Cancelled() bool {
	return e.cancelled.Load()
}

// Execute runs every step in order. A failed step does not stop the flow;
// only a cancel, or the end of ctx, does. Steps left unattempted are
// reported CANCELLED. FlowCompleted is posted once done.
func (e *Flow) Execute(ctx context.Context) *flow.FlowExecutionResult {
	logger := ctxlog.FromContext(ctx).With("flow", e.flow.Name)
	result := flow.NewFlowExecutionResult(e.flow)

	for _, step := range e.flow.Steps() {
		if !result.WasCancelled && (e.cancelled.Load() || ctx.Err() != nil) {
			logger.Info("Flow cancelled, remaining steps will not run.", "next_step", step.Name)
			result.WasCancelled = true
		}
		if result.WasCancelled {
			result.Put(step.Name, e.steps.Cancel(ctx, step))
			continue
		}
		result.Put(step.Name, e.steps.Execute(ctx, step))
	}

	logger.Debug("Flow finished.", "cancelled", result.WasCancelled, "successful", result.Successful())
	if err := e.dispatcher.Post(dispatch.FlowCompleted{JobID: e.steps.jobID, Result: result}); err != nil {
		logger.Error("Failed to post event.", "event", dispatch.KindFlowCompleted.String(), "error", err)
	}
	return result
}
