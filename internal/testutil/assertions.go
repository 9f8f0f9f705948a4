package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/model"
)

// TaskStatuses returns the last status of every task of the submitted job,
// keyed by task name.
func TaskStatuses(t *testing.T, result *HarnessResult) map[string]model.StatusType {
	t.Helper()
	require.NotNil(t, result.App, "the app never started")
	jobID := result.App.JobID()
	require.NotEmpty(t, jobID, "no job was submitted")

	status, err := result.App.Service().JobStatus(context.Background(), jobID)
	require.NoError(t, err)
	out := make(map[string]model.StatusType, len(status.Statuses))
	for _, ts := range status.Statuses {
		out[ts.TaskName] = ts.Type
	}
	return out
}

// AssertTaskStatus checks the last status recorded for a task.
func AssertTaskStatus(t *testing.T, result *HarnessResult, taskName string, want model.StatusType) {
	t.Helper()
	statuses := TaskStatuses(t, result)
	got, ok := statuses[taskName]
	require.True(t, ok, "task %q is not part of the job", taskName)
	require.Equal(t, want, got, "unexpected status for task %q", taskName)
}
