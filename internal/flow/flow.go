// Package flow holds the execution model: steps ready to run, flows that run
// steps one after the other, jobs that run flows side by side, and the
// results each of them produces.
package flow

import (
	"fmt"
	"time"

	"github.com/vk/jobgridgo/internal/tree"
)

// Command is one invocation handed to a runtime.
type Command struct {
	ID   string
	Line string
	Env  map[string]string
	// Timeout is enforced by the runtime.
	Timeout time.Duration
	// ExcludeEnv runs the command without Env.
	ExcludeEnv bool
}

// Step is the execution-ready projection of a task.
type Step struct {
	ID      string
	Name    string
	Command Command
	// Tasklets run before Command. Their failures are logged and ignored.
	Tasklets []Command
}

func (s *Step) String() string {
	return s.Name
}

// Flow is an ordered set of steps run strictly one after the other.
type Flow struct {
	Name  string
	steps []*Step
	index map[string]int
}

func NewFlow(name string) *Flow {
	return &Flow{Name: name, index: make(map[string]int)}
}

// Add appends a step. Step names are unique within a flow.
func (f *Flow) Add(s *Step) error {
	if _, ok := f.index[s.Name]; ok {
		return fmt.Errorf("flow %s: step %q already added", f.Name, s.Name)
	}
	f.index[s.Name] = len(f.steps)
	f.steps = append(f.steps, s)
	return nil
}

// Steps returns the steps in execution order.
func (f *Flow) Steps() []*Step {
	return append([]*Step(nil), f.steps...)
}

func (f *Flow) Step(name string) (*Step, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.steps[i], true
}

func (f *Flow) Len() int { return len(f.steps) }

// Job is a set of flows run concurrently, with no ordering between them.
type Job struct {
	Name  string
	flows []*Flow
	names map[string]struct{}
}

func NewJob(name string) *Job {
	return &Job{Name: name, names: make(map[string]struct{})}
}

// Add appends a flow. Flow names are unique within a job.
func (j *Job) Add(f *Flow) error {
	if _, ok := j.names[f.Name]; ok {
		return fmt.Errorf("job %s: flow %q already added", j.Name, f.Name)
	}
	j.names[f.Name] = struct{}{}
	j.flows = append(j.flows, f)
	return nil
}

func (j *Job) Flows() []*Flow {
	return append([]*Flow(nil), j.flows...)
}

// Block is a repeatable step tree ready for scheduling.
type Block struct {
	ID     string
	Name   string
	Repeat int
	Steps  *tree.Tree[*Step]
}

func (b *Block) String() string {
	return b.Name
}
