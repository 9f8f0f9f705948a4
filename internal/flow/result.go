package flow

import (
	"time"

	"github.com/vk/jobgridgo/internal/model"
)

// FailureReason tells how a failed step came to fail.
type FailureReason int

const (
	// ReasonExit covers a non-zero or missing exit code, or a termination
	// reason in the output.
	ReasonExit FailureReason = iota
	// ReasonWallTime means the reported wall time exceeded the declared limit.
	ReasonWallTime
	// ReasonRuntime means the runtime itself could not complete the command.
	ReasonRuntime
)

func (r FailureReason) String() string {
	switch r {
	case ReasonExit:
		return "exit"
	case ReasonWallTime:
		return "walltime"
	case ReasonRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// Success is the payload of a step that completed and classified as SUCCESS.
type Success struct {
	ExitCode int
	Output   string
	Pid      int
	Stats    []model.ProcessStats
}

// Failure is the payload of a step that completed but did not succeed.
type Failure struct {
	// ExitCode is only meaningful when HasExitCode is set.
	ExitCode    int
	HasExitCode bool
	Output      string
	Pid         int
	Reason      FailureReason
}

// StepExecutionResult is the outcome of one step attempt. A result with
// neither payload means the attempt was cancelled or the runtime timed out.
type StepExecutionResult struct {
	Step      *Step
	Success   *Success
	Failure   *Failure
	Cancelled bool
}

// Successful holds iff a success payload is present and no failure payload.
func (r *StepExecutionResult) Successful() bool {
	return r != nil && r.Success != nil && r.Failure == nil
}

// Pid returns the process id carried by whichever payload is present.
func (r *StepExecutionResult) Pid() int {
	switch {
	case r.Success != nil:
		return r.Success.Pid
	case r.Failure != nil:
		return r.Failure.Pid
	}
	return 0
}

// Output returns the captured output carried by whichever payload is present.
func (r *StepExecutionResult) Output() string {
	switch {
	case r.Success != nil:
		return r.Success.Output
	case r.Failure != nil:
		return r.Failure.Output
	}
	return ""
}

// FlowExecutionResult collects the step results of one flow in step order.
type FlowExecutionResult struct {
	Flow         *Flow
	WasCancelled bool
	order        []string
	results      map[string]*StepExecutionResult
}

func NewFlowExecutionResult(f *Flow) *FlowExecutionResult {
	return &FlowExecutionResult{Flow: f, results: make(map[string]*StepExecutionResult)}
}

// Put records the result for a step name, keeping first-insertion order.
func (r *FlowExecutionResult) Put(name string, res *StepExecutionResult) {
	if _, ok := r.results[name]; !ok {
		r.order = append(r.order, name)
	}
	r.results[name] = res
}

func (r *FlowExecutionResult) Get(name string) (*StepExecutionResult, bool) {
	res, ok := r.results[name]
	return res, ok
}

// Results returns the step results in step order.
func (r *FlowExecutionResult) Results() []*StepExecutionResult {
	out := make([]*StepExecutionResult, len(r.order))
	for i, name := range r.order {
		out[i] = r.results[name]
	}
	return out
}

// Successful reports whether the flow ran to the end and every step
// succeeded.
func (r *FlowExecutionResult) Successful() bool {
	if r.WasCancelled {
		return false
	}
	for _, res := range r.results {
		if !res.Successful() {
			return false
		}
	}
	return true
}

// JobExecution is produced once all flows of a job have finished.
type JobExecution struct {
	Job     *Job
	Elapsed time.Duration
	Flows   []*FlowExecutionResult
}

// Successful reports whether every flow of the job succeeded.
func (e *JobExecution) Successful() bool {
	for _, f := range e.Flows {
		if !f.Successful() {
			return false
		}
	}
	return true
}
