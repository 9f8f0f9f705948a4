package dispatch

import (
	"context"
	"fmt"

	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
)

// Event is one of TaskStatusChanged, StepResult, FlowCompleted or
// JobCompleted. The set is closed.
type Event interface {
	isEvent()
	Kind() Kind
}

// Kind names an event type.
type Kind int

const (
	KindTaskStatusChanged Kind = iota
	KindStepResult
	KindFlowCompleted
	KindJobCompleted
)

func (k Kind) String() string {
	switch k {
	case KindTaskStatusChanged:
		return "TaskStatusChanged"
	case KindStepResult:
		return "StepResult"
	case KindFlowCompleted:
		return "FlowCompleted"
	case KindJobCompleted:
		return "JobCompleted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TaskStatusChanged reports a lifecycle transition. Output is set on
// terminal transitions when the attempt produced any.
type TaskStatusChanged struct {
	Status model.TaskStatus
	Output string
}

// StepResult carries the success or failure payload of a finished step.
type StepResult struct {
	JobID  string
	Result *flow.StepExecutionResult
}

// FlowCompleted carries the per-step results of a flow.
type FlowCompleted struct {
	JobID  string
	Result *flow.FlowExecutionResult
}

// JobCompleted is posted once all flows of a job have finished.
type JobCompleted struct {
	JobID     string
	Execution *flow.JobExecution
}

func (TaskStatusChanged) isEvent() {}
func (StepResult) isEvent()        {}
func (FlowCompleted) isEvent()     {}
func (JobCompleted) isEvent()      {}

func (TaskStatusChanged) Kind() Kind { return KindTaskStatusChanged }
func (StepResult) Kind() Kind        { return KindStepResult }
func (FlowCompleted) Kind() Kind     { return KindFlowCompleted }
func (JobCompleted) Kind() Kind      { return KindJobCompleted }

// Handlers is a subscriber's dispatch table. Nil entries ignore the kind.
type Handlers struct {
	TaskStatusChanged func(context.Context, TaskStatusChanged) error
	StepResult        func(context.Context, StepResult) error
	FlowCompleted     func(context.Context, FlowCompleted) error
	JobCompleted      func(context.Context, JobCompleted) error
}

func (h Handlers) route(ctx context.Context, e Event) error {
	switch ev := e.(type) {
	case TaskStatusChanged:
		if h.TaskStatusChanged != nil {
			return h.TaskStatusChanged(ctx, ev)
		}
	case StepResult:
		if h.StepResult != nil {
			return h.StepResult(ctx, ev)
		}
	case FlowCompleted:
		if h.FlowCompleted != nil {
			return h.FlowCompleted(ctx, ev)
		}
	case JobCompleted:
		if h.JobCompleted != nil {
			return h.JobCompleted(ctx, ev)
		}
	default:
		return fmt.Errorf("unrouted event %T", e)
	}
	return nil
}
