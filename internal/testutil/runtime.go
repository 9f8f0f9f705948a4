package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/runtime"
)

// ExecutionRecord stores the start and end times of a command.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two executions ran at the same time.
func (r ExecutionRecord) Overlaps(o ExecutionRecord) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// ScriptedRuntime stands in for a real runtime. Every command line is
// answered with classifier tokens; lines containing "fail" exit with code 1
// and lines containing "hang" report a wall time past the default limit.
type ScriptedRuntime struct {
	// Sleep is how long each command pretends to run.
	Sleep time.Duration

	mu      sync.Mutex
	records map[string]ExecutionRecord
	order   []string
}

var _ runtime.Runtime = (*ScriptedRuntime)(nil)

func (s *ScriptedRuntime) Run(ctx context.Context, cmd flow.Command) (*runtime.Result, error) {
	start := time.Now()
	if s.Sleep > 0 {
		select {
		case <-time.After(s.Sleep):
		case <-ctx.Done():
			return nil, &runtime.FailedError{CommandID: cmd.ID, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	if s.records == nil {
		s.records = make(map[string]ExecutionRecord)
	}
	s.records[cmd.Line] = ExecutionRecord{Start: start, End: time.Now()}
	s.order = append(s.order, cmd.Line)
	n := len(s.order)
	s.mu.Unlock()

	exitCode := 0
	output := fmt.Sprintf("%s\nwalltime=1\nexitcode=0\n", cmd.Line)
	switch {
	case strings.Contains(cmd.Line, "hang"):
		output = fmt.Sprintf("%s\nterminationreason=walltime\nwalltime=7200\n", cmd.Line)
	case strings.Contains(cmd.Line, "fail"):
		exitCode = 1
		output = fmt.Sprintf("%s\nwalltime=1\nexitcode=1\n", cmd.Line)
	}
	return &runtime.Result{
		ExitCode: exitCode,
		Output:   output,
		Pid:      1000 + n,
		Stats:    []model.ProcessStats{{Time: time.Now(), MaxRSS: 1024}},
	}, nil
}

// Ran reports whether a command line was run.
func (s *ScriptedRuntime) Ran(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[line]
	return ok
}

// Record returns the execution record of a command line.
func (s *ScriptedRuntime) Record(line string) (ExecutionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[line]
	return r, ok
}

// Order returns the command lines in the order they finished.
func (s *ScriptedRuntime) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
