package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/dispatch"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/runtime"
)

type fakeRuntime struct {
	mu    sync.Mutex
	calls []string
	run   func(cmd flow.Command) (*runtime.Result, error)
}

func (f *fakeRuntime) Run(_ context.Context, cmd flow.Command) (*runtime.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd.ID)
	f.mu.Unlock()
	return f.run(cmd)
}

func (f *fakeRuntime) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recorder struct {
	mu       sync.Mutex
	statuses []string
	results  []*flow.StepExecutionResult
	flows    []*flow.FlowExecutionResult
}

func (r *recorder) handlers() dispatch.Handlers {
	return dispatch.Handlers{
		TaskStatusChanged: func(_ context.Context, e dispatch.TaskStatusChanged) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, e.Status.TaskName+":"+e.Status.Type.String())
			return nil
		},
		StepResult: func(_ context.Context, e dispatch.StepResult) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.results = append(r.results, e.Result)
			return nil
		},
		FlowCompleted: func(_ context.Context, e dispatch.FlowCompleted) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.flows = append(r.flows, e.Result)
			return nil
		},
	}
}

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setup(t *testing.T, run func(flow.Command) (*runtime.Result, error)) (*Steps, *dispatch.Dispatcher, *fakeRuntime, *recorder) {
	t.Helper()
	rt := &fakeRuntime{run: run}
	d := dispatch.New(testContext(), "job-1")
	rec := &recorder{}
	d.Subscribe("recorder", rec.handlers())
	return NewSteps(rt, d, "job-1"), d, rt, rec
}

func ok(cmd flow.Command) (*runtime.Result, error) {
	return &runtime.Result{Output: "walltime=1\nexitcode=0\n", Pid: 100}, nil
}

func step(name string) *flow.Step {
	return &flow.Step{ID: name, Name: name, Command: flow.Command{ID: name, Line: "runexec --walltimelimit 60 -- " + name}}
}

func TestStepsExecute(t *testing.T) {
	t.Run("success posts RUNNING, FINISHED and a result", func(t *testing.T) {
		// --- Arrange ---
		steps, d, _, rec := setup(t, ok)

		// --- Act ---
		res := steps.Execute(testContext(), step("a"))
		d.Close()

		// --- Assert ---
		require.True(t, res.Successful())
		assert.Equal(t, 100, res.Success.Pid)
		assert.Equal(t, []string{"a:RUNNING", "a:FINISHED"}, rec.statuses)
		require.Len(t, rec.results, 1)
		assert.Same(t, res, rec.results[0])
	})

	t.Run("classified failure carries the parsed exit code", func(t *testing.T) {
		steps, d, _, rec := setup(t, func(flow.Command) (*runtime.Result, error) {
			return &runtime.Result{Output: "exitcode=2", Pid: 7}, nil
		})

		res := steps.Execute(testContext(), step("a"))
		d.Close()

		require.False(t, res.Successful())
		require.NotNil(t, res.Failure)
		assert.Equal(t, 2, res.Failure.ExitCode)
		assert.Equal(t, flow.ReasonExit, res.Failure.Reason)
		assert.Equal(t, []string{"a:RUNNING", "a:FAILED"}, rec.statuses)
		assert.Len(t, rec.results, 1)
	})

	t.Run("wall time overrun is a failure with exit code 9", func(t *testing.T) {
		steps, d, _, _ := setup(t, func(flow.Command) (*runtime.Result, error) {
			return &runtime.Result{Output: "walltime=61\nexitcode=0"}, nil
		})

		res := steps.Execute(testContext(), step("a"))
		d.Close()

		require.NotNil(t, res.Failure)
		assert.Equal(t, 9, res.Failure.ExitCode)
		assert.Equal(t, flow.ReasonWallTime, res.Failure.Reason)
	})

	t.Run("runtime timeout posts FAILED without a result payload", func(t *testing.T) {
		steps, d, _, rec := setup(t, func(flow.Command) (*runtime.Result, error) {
			return nil, &runtime.TimeoutError{CommandID: "a"}
		})

		res := steps.Execute(testContext(), step("a"))
		d.Close()

		assert.False(t, res.Successful())
		assert.Nil(t, res.Success)
		assert.Nil(t, res.Failure)
		assert.Equal(t, []string{"a:RUNNING", "a:FAILED"}, rec.statuses)
		assert.Empty(t, rec.results)
	})

	t.Run("runtime failure builds a synthetic failure", func(t *testing.T) {
		steps, d, _, rec := setup(t, func(flow.Command) (*runtime.Result, error) {
			return nil, &runtime.FailedError{CommandID: "a", ExitCode: 137, HasExitCode: true, Output: "killed", Pid: 55, Err: errors.New("signal")}
		})

		res := steps.Execute(testContext(), step("a"))
		d.Close()

		require.NotNil(t, res.Failure)
		assert.Equal(t, flow.Failure{ExitCode: 137, HasExitCode: true, Output: "killed", Pid: 55, Reason: flow.ReasonRuntime}, *res.Failure)
		assert.Len(t, rec.results, 1)
	})

	t.Run("tasklet failures are not fatal", func(t *testing.T) {
		steps, d, rt, _ := setup(t, func(cmd flow.Command) (*runtime.Result, error) {
			if cmd.ID == "fetch" {
				return nil, errors.New("404")
			}
			return ok(cmd)
		})
		s := step("a")
		s.Tasklets = []flow.Command{{ID: "fetch"}}

		res := steps.Execute(testContext(), s)
		d.Close()

		assert.True(t, res.Successful())
		assert.Equal(t, []string{"fetch", "a"}, rt.Calls())
	})

	t.Run("cancel only reports", func(t *testing.T) {
		steps, d, rt, rec := setup(t, ok)

		res := steps.Cancel(testContext(), step("a"))
		d.Close()

		assert.True(t, res.Cancelled)
		assert.False(t, res.Successful())
		assert.Empty(t, rt.Calls())
		assert.Equal(t, []string{"a:CANCELLED"}, rec.statuses)
	})
}

func TestFlowExecute(t *testing.T) {
	t.Run("runs every step in order despite failures", func(t *testing.T) {
		steps, d, rt, rec := setup(t, func(cmd flow.Command) (*runtime.Result, error) {
			if cmd.ID == "b" {
				return &runtime.Result{Output: "exitcode=1"}, nil
			}
			return ok(cmd)
		})
		f := flow.NewFlow("f")
		for _, n := range []string{"a", "b", "c"} {
			require.NoError(t, f.Add(step(n)))
		}

		res := NewFlow(f, steps, d).Execute(testContext())
		d.Close()

		assert.Equal(t, []string{"a", "b", "c"}, rt.Calls())
		assert.False(t, res.WasCancelled)
		assert.False(t, res.Successful())
		require.Len(t, rec.flows, 1)
		assert.Same(t, res, rec.flows[0])
	})

	t.Run("cancel during a step stops the flow before the next one", func(t *testing.T) {
		var exec *Flow
		steps, d, rt, rec := setup(t, func(cmd flow.Command) (*runtime.Result, error) {
			if cmd.ID == "b" {
				exec.Cancel()
			}
			return ok(cmd)
		})
		f := flow.NewFlow("f")
		for _, n := range []string{"a", "b", "c"} {
			require.NoError(t, f.Add(step(n)))
		}
		exec = NewFlow(f, steps, d)

		res := exec.Execute(testContext())
		d.Close()

		assert.Equal(t, []string{"a", "b"}, rt.Calls(), "c is never attempted")
		assert.True(t, res.WasCancelled)
		assert.True(t, exec.Cancelled())
		c, found := res.Get("c")
		require.True(t, found)
		assert.True(t, c.Cancelled)
		b, _ := res.Get("b")
		assert.True(t, b.Successful(), "the running step is not interrupted")
		assert.Contains(t, rec.statuses, "c:CANCELLED")
		assert.NotContains(t, rec.statuses, "c:RUNNING")
	})

	t.Run("cancelled context stops the flow", func(t *testing.T) {
		steps, d, rt, _ := setup(t, ok)
		f := flow.NewFlow("f")
		require.NoError(t, f.Add(step("a")))
		ctx, cancel := context.WithCancel(testContext())
		cancel()

		res := NewFlow(f, steps, d).Execute(ctx)
		d.Close()

		assert.Empty(t, rt.Calls())
		assert.True(t, res.WasCancelled)
	})
}

func TestStatusCarriesJob(t *testing.T) {
	rt := &fakeRuntime{run: ok}
	d := dispatch.New(testContext(), "job-9")
	var got []model.TaskStatus
	d.Subscribe("s", dispatch.Handlers{TaskStatusChanged: func(_ context.Context, e dispatch.TaskStatusChanged) error {
		got = append(got, e.Status)
		return nil
	}})

	NewSteps(rt, d, "job-9").Execute(testContext(), step("a"))
	d.Close()

	require.Len(t, got, 2)
	for _, s := range got {
		assert.Equal(t, "job-9", s.JobID)
		assert.Equal(t, "a", s.TaskID)
		assert.False(t, s.Time.IsZero())
	}
}
