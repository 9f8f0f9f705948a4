package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/app"
	"github.com/vk/jobgridgo/internal/runtime"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// RunIntegrationTest writes files into a temporary job directory and runs the
// app over it with a background context.
func RunIntegrationTest(t *testing.T, files map[string]string, rt runtime.Runtime) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, rt)
}

// RunIntegrationTestWithContext runs the app over files with a caller supplied
// context. Commands are handed to rt untouched by any wrapper.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, rt runtime.Runtime) *HarnessResult {
	t.Helper()

	jobDir := filepath.Join(t.TempDir(), "job")
	require.NoError(t, os.Mkdir(jobDir, 0o755))
	for name, content := range files {
		path := filepath.Join(jobDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg, err := app.NewConfig(app.Config{
		JobPath:     jobDir,
		LogFormat:   "text",
		WorkerCount: 4,
		Wrapper:     "raw",
	})
	require.NoError(t, err)

	var testApp *app.App
	var logs *app.SafeBuffer
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp, logs = app.SetupAppTest(t, cfg, app.WithRuntime(rt))
	}()
	if panicErr != nil {
		return &HarnessResult{Err: fmt.Errorf("application startup panicked | %v", panicErr)}
	}

	runErr := testApp.Run(ctx)
	return &HarnessResult{
		LogOutput: logs.String(),
		Err:       runErr,
		App:       testApp,
	}
}
