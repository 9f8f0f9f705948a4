// Package runtime defines the command-execution boundary and ships two
// implementations: a local shell and a Docker container.
//
// A runtime either returns a Result, whatever the exit code, or one of two
// typed errors: TimeoutError when it had to enforce the command's timeout
// itself, and FailedError when the command could not be run to completion.
package runtime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
)

// Runtime runs one command and blocks until it has finished.
type Runtime interface {
	Run(ctx context.Context, cmd flow.Command) (*Result, error)
}

// Result is a command that ran to completion.
type Result struct {
	ExitCode int
	Output   string
	Pid      int
	Stats    []model.ProcessStats
}

// TimeoutError is returned when the runtime stopped a command that outlived
// its timeout.
type TimeoutError struct {
	CommandID string
	Timeout   time.Duration
	Output    string
	Pid       int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %s", e.CommandID, e.Timeout)
}

// FailedError is returned when a command could not be started or did not
// exit normally. Whatever partial state was observed is carried along.
type FailedError struct {
	CommandID   string
	ExitCode    int
	HasExitCode bool
	Output      string
	Pid         int
	Err         error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.CommandID, e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// environ renders cmd.Env as sorted KEY=VALUE pairs appended to base.
func environ(base []string, cmd flow.Command) []string {
	if cmd.ExcludeEnv || len(cmd.Env) == 0 {
		return base
	}
	keys := make([]string, 0, len(cmd.Env))
	for k := range cmd.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := append([]string(nil), base...)
	for _, k := range keys {
		out = append(out, k+"="+cmd.Env[k])
	}
	return out
}

// deadline returns the context the command runs under: its own timeout plus
// grace, leaving the wrapper room to report a wall-time overrun first.
func deadline(ctx context.Context, cmd flow.Command, grace time.Duration) (context.Context, context.CancelFunc) {
	if cmd.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cmd.Timeout+grace)
}
