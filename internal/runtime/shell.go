package runtime

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
)

// Shell runs commands on the local host through a POSIX shell.
type Shell struct {
	// Path is the shell binary, "bash" when empty.
	Path string
	// Grace is added to every command's timeout before the process is killed.
	Grace time.Duration
}

func NewShell(grace time.Duration) *Shell {
	return &Shell{Path: "bash", Grace: grace}
}

// syncBuffer collects stdout and stderr written from two copier goroutines.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func (s *Shell) Run(ctx context.Context, cmd flow.Command) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("runtime", "shell", "command_id", cmd.ID)

	runCtx, cancel := deadline(ctx, cmd, s.Grace)
	defer cancel()

	shell := s.Path
	if shell == "" {
		shell = "bash"
	}
	proc := exec.CommandContext(runCtx, shell, "-c", cmd.Line)
	proc.Env = environ(os.Environ(), cmd)
	proc.WaitDelay = 5 * time.Second
	ownGroup(proc)
	var out syncBuffer
	proc.Stdout = &out
	proc.Stderr = &out

	logger.Debug("Starting process.", "line", cmd.Line)
	if err := proc.Start(); err != nil {
		return nil, &FailedError{CommandID: cmd.ID, Err: err}
	}
	pid := proc.Process.Pid
	err := proc.Wait()

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("Process outlived its timeout and was killed.", "pid", pid, "timeout", cmd.Timeout)
		return nil, &TimeoutError{CommandID: cmd.ID, Timeout: cmd.Timeout, Output: out.String(), Pid: pid}
	}

	res := &Result{Output: out.String(), Pid: pid}
	if state := proc.ProcessState; state != nil {
		res.ExitCode = state.ExitCode()
		res.Stats = []model.ProcessStats{{
			Time:      time.Now(),
			UserCPU:   state.UserTime(),
			SystemCPU: state.SystemTime(),
			MaxRSS:    maxRSS(state),
		}}
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		// A non-zero exit is a completed run; the classifier decides.
	default:
		logger.Debug("Process did not exit normally.", "pid", pid, "error", err)
		return nil, &FailedError{
			CommandID:   cmd.ID,
			ExitCode:    res.ExitCode,
			HasExitCode: res.ExitCode >= 0,
			Output:      res.Output,
			Pid:         pid,
			Err:         err,
		}
	}

	logger.Debug("Process finished.", "pid", pid, "exit_code", res.ExitCode)
	return res, nil
}
