package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/classify"
	"github.com/vk/jobgridgo/internal/model"
)

func TestFlowKeepsInsertionOrder(t *testing.T) {
	f := NewFlow("f")
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, f.Add(&Step{Name: name}))
	}
	require.Error(t, f.Add(&Step{Name: "a"}), "duplicate step names are rejected")

	var got []string
	for _, s := range f.Steps() {
		got = append(got, s.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
	assert.Equal(t, 3, f.Len())

	s, ok := f.Step("a")
	require.True(t, ok)
	assert.Equal(t, "a", s.Name)
}

func TestJobRejectsDuplicateFlows(t *testing.T) {
	j := NewJob("j")
	require.NoError(t, j.Add(NewFlow("one")))
	require.Error(t, j.Add(NewFlow("one")))
	assert.Len(t, j.Flows(), 1)
}

func TestStepExecutionResultSuccessful(t *testing.T) {
	testCases := []struct {
		name   string
		result *StepExecutionResult
		want   bool
	}{
		{"nil result", nil, false},
		{"no payload", &StepExecutionResult{}, false},
		{"success only", &StepExecutionResult{Success: &Success{}}, true},
		{"failure only", &StepExecutionResult{Failure: &Failure{}}, false},
		{"both payloads", &StepExecutionResult{Success: &Success{}, Failure: &Failure{}}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.result.Successful())
		})
	}
}

func TestFlowExecutionResult(t *testing.T) {
	f := NewFlow("f")
	r := NewFlowExecutionResult(f)
	r.Put("b", &StepExecutionResult{Success: &Success{Output: "b"}})
	r.Put("a", &StepExecutionResult{Success: &Success{Output: "a"}})
	r.Put("b", &StepExecutionResult{Success: &Success{Output: "b2"}})

	results := r.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "b2", results[0].Output())
	assert.Equal(t, "a", results[1].Output())
	assert.True(t, r.Successful())

	r.Put("c", &StepExecutionResult{Cancelled: true})
	assert.False(t, r.Successful())
}

func TestWrappers(t *testing.T) {
	t.Run("runexec", func(t *testing.T) {
		got := Runexec{}.Wrap("t1", "make all", 90*time.Second)
		assert.Equal(t, "runexec --output t1.log --walltimelimit 90 -- make all; cat t1.log;  rm -f t1.log", got)
	})

	t.Run("posix keeps the declared limit visible", func(t *testing.T) {
		got := Posix{}.Wrap("t1", "make all", time.Minute)
		assert.Contains(t, got, ": walltimelimit 60;")
		assert.Contains(t, got, "( make all )")
		assert.Contains(t, got, `echo "exitcode=$__jg_rc"`)
	})

	t.Run("raw leaves the line untouched", func(t *testing.T) {
		assert.Equal(t, "make all", Raw{}.Wrap("t1", "make all", time.Minute))
	})

	t.Run("by name", func(t *testing.T) {
		w, err := WrapperByName("POSIX")
		require.NoError(t, err)
		assert.IsType(t, Posix{}, w)

		_, err = WrapperByName("ssh")
		assert.Error(t, err)
	})
}

func TestStepBuilder(t *testing.T) {
	b := StepBuilder{Wrapper: Raw{}, Home: "/home/alice"}
	task := &model.Task{
		ID:          "t1",
		Name:        "analyse",
		CommandLine: "./analyse $INPUT",
		Files: []model.FileBinding{
			{Name: "INPUT", Dest: "~/data/../in/input.csv", Source: "https://example.com/input.csv"},
			{Name: "CONF", Dest: "/etc/app/conf.yml"},
		},
	}

	step := b.Build(task)

	assert.Equal(t, "t1", step.ID)
	assert.Equal(t, "analyse", step.Name)
	assert.Equal(t, "./analyse $INPUT", step.Command.Line)
	assert.Equal(t, model.DefaultTimeout, step.Command.Timeout)
	assert.Equal(t, map[string]string{
		"INPUT": "/home/alice/in/input.csv",
		"CONF":  "/etc/app/conf.yml",
	}, step.Command.Env)

	require.Len(t, step.Tasklets, 1, "only remote sources are downloaded")
	tasklet := step.Tasklets[0]
	assert.True(t, tasklet.ExcludeEnv)
	assert.Equal(t,
		"mkdir -p /home/alice/in && cd /home/alice/in && wget --no-cookies --no-check-certificate -O /home/alice/in/input.csv https://example.com/input.csv && chmod +x *",
		tasklet.Line)
}

func TestWrappersRoundTimeoutsUp(t *testing.T) {
	testCases := []struct {
		timeout time.Duration
		want    string
	}{
		{timeout: 500 * time.Millisecond, want: "--walltimelimit 1 "},
		{timeout: 1500 * time.Millisecond, want: "--walltimelimit 2 "},
		{timeout: 2 * time.Second, want: "--walltimelimit 2 "},
	}
	for _, tc := range testCases {
		t.Run(tc.timeout.String(), func(t *testing.T) {
			assert.Contains(t, Runexec{}.Wrap("t", "true", tc.timeout), tc.want)
		})
	}

	t.Run("sub-second timeout does not classify a quick run as timed out", func(t *testing.T) {
		step := StepBuilder{Wrapper: Runexec{}}.Build(&model.Task{ID: "t", Name: "t", CommandLine: "true", Timeout: 500 * time.Millisecond})

		v := classify.Classify(step.Command.Line, "walltime= 0.01\nexitcode= 0")

		assert.Equal(t, classify.Success, v.Outcome)
		assert.Equal(t, 1.0, v.Limit)
	})
}
