package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/app"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/testutil"
)

// Test for: a failed task never starts its children while unrelated
// branches keep running, and the run reports the failure.
func TestErrorHandling_FailedTaskSkipsDependents(t *testing.T) {
	// --- Arrange ---
	hcl := `
		job "etl" {
			task "extract" {
				command = "extract"
			}
			task "load" {
				command = "load-then-fail"
				parents = ["extract"]
			}
			task "publish" {
				command = "publish"
				parents = ["load"]
			}
			task "audit" {
				command = "audit"
				parents = ["extract"]
			}
		}
	`
	rt := &testutil.ScriptedRuntime{}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, map[string]string{"main.hcl": hcl}, rt)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, app.ErrTasksFailed)
	assert.Equal(t, map[string]model.StatusType{
		"extract": model.StatusFinished,
		"load":    model.StatusFailed,
		"publish": model.StatusPending,
		"audit":   model.StatusFinished,
	}, testutil.TaskStatuses(t, result))
	assert.False(t, rt.Ran("publish"))
}
