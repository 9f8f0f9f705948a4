package runtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/flow"
)

type fakeDocker struct {
	createdCmd []string
	createdEnv []string
	exitCode   int64
	waitErr    error
	block      bool
	output     string
	removed    bool
	stopped    bool
	createErr  error
}

func (f *fakeDocker) ContainerCreate(_ context.Context, config *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	f.createdCmd = config.Cmd
	f.createdEnv = config.Env
	return container.CreateResponse{ID: "c0ffee"}, nil
}

func (f *fakeDocker) ContainerStart(context.Context, string, container.StartOptions) error {
	return nil
}

func (f *fakeDocker) ContainerInspect(context.Context, string) (types.ContainerJSON, error) {
	return types.ContainerJSON{ContainerJSONBase: &types.ContainerJSONBase{State: &types.ContainerState{Pid: 4242}}}, nil
}

func (f *fakeDocker) ContainerWait(ctx context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	switch {
	case f.block:
		go func() {
			<-ctx.Done()
			errCh <- ctx.Err()
		}()
	case f.waitErr != nil:
		errCh <- f.waitErr
	default:
		statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.output))
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ContainerStop(context.Context, string, container.StopOptions) error {
	f.stopped = true
	return nil
}

func (f *fakeDocker) ContainerRemove(context.Context, string, container.RemoveOptions) error {
	f.removed = true
	return nil
}

func TestDocker(t *testing.T) {
	ctx := testContext()

	t.Run("runs the command and returns demultiplexed logs", func(t *testing.T) {
		api := &fakeDocker{exitCode: 0, output: "exitcode=0\n"}
		d := &Docker{api: api, Image: "ubuntu:24.04"}

		res, err := d.Run(ctx, flow.Command{ID: "t", Line: "true", Env: map[string]string{"K": "v"}, Timeout: time.Minute})

		require.NoError(t, err)
		assert.Equal(t, []string{"sh", "-c", "true"}, api.createdCmd)
		assert.Equal(t, []string{"K=v"}, api.createdEnv)
		assert.Equal(t, "exitcode=0\n", res.Output)
		assert.Equal(t, 4242, res.Pid)
		assert.True(t, api.removed, "container is always removed")
	})

	t.Run("non-zero status is a completed run", func(t *testing.T) {
		api := &fakeDocker{exitCode: 7}
		res, err := (&Docker{api: api}).Run(ctx, flow.Command{ID: "t", Line: "exit 7"})
		require.NoError(t, err)
		assert.Equal(t, 7, res.ExitCode)
	})

	t.Run("create failure", func(t *testing.T) {
		api := &fakeDocker{createErr: errors.New("no such image")}
		_, err := (&Docker{api: api}).Run(ctx, flow.Command{ID: "t"})
		var fe *FailedError
		require.ErrorAs(t, err, &fe)
		assert.False(t, api.removed)
	})

	t.Run("wait failure carries partial state", func(t *testing.T) {
		api := &fakeDocker{waitErr: errors.New("daemon gone"), output: "partial"}
		_, err := (&Docker{api: api}).Run(ctx, flow.Command{ID: "t"})
		var fe *FailedError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "partial", fe.Output)
		assert.Equal(t, 4242, fe.Pid)
	})

	t.Run("timeout stops the container", func(t *testing.T) {
		api := &fakeDocker{block: true}
		_, err := (&Docker{api: api}).Run(ctx, flow.Command{ID: "t", Timeout: 50 * time.Millisecond})
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.True(t, api.stopped)
		assert.True(t, api.removed)
	})
}
