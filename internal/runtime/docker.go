package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
)

// dockerAPI is the subset of the Docker client used by Docker.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Docker runs every command in a fresh container of one image.
type Docker struct {
	api   dockerAPI
	Image string
	// Shell is the shell binary inside the image, "sh" when empty.
	Shell string
	// Network is the container network mode, "host" when empty.
	Network string
	Grace   time.Duration
}

// NewDocker connects to the daemon configured in the environment.
func NewDocker(image string, grace time.Duration) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Docker{api: cli, Image: image, Shell: "sh", Network: "host", Grace: grace}, nil
}

func (d *Docker) Run(ctx context.Context, cmd flow.Command) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("runtime", "docker", "image", d.Image, "command_id", cmd.ID)

	shell := d.Shell
	if shell == "" {
		shell = "sh"
	}
	netMode := d.Network
	if netMode == "" {
		netMode = "host"
	}

	logger.Debug("Creating container.")
	resp, err := d.api.ContainerCreate(ctx, &container.Config{
		Image: d.Image,
		Cmd:   []string{shell, "-c", cmd.Line},
		Env:   environ(nil, cmd),
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode(netMode),
	}, nil, nil, "")
	if err != nil {
		return nil, &FailedError{CommandID: cmd.ID, Err: fmt.Errorf("container create: %w", err)}
	}
	id := resp.ID
	logger = logger.With("container_id", id)

	// Removal must happen even when the caller's context is done.
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := d.api.ContainerRemove(cleanupCtx, id, container.RemoveOptions{Force: true}); err != nil {
			logger.Warn("Failed to remove container.", "error", err)
		}
	}()

	if err := d.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, &FailedError{CommandID: cmd.ID, Err: fmt.Errorf("container start: %w", err)}
	}

	pid := 0
	if info, err := d.api.ContainerInspect(ctx, id); err == nil && info.ContainerJSONBase != nil && info.State != nil {
		pid = info.State.Pid
	}

	runCtx, cancel := deadline(ctx, cmd, d.Grace)
	defer cancel()

	statusCh, errCh := d.api.ContainerWait(runCtx, id, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err == nil {
			break
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Container outlived its timeout, stopping it.", "timeout", cmd.Timeout)
			_ = d.api.ContainerStop(cleanupCtx, id, container.StopOptions{})
			return nil, &TimeoutError{CommandID: cmd.ID, Timeout: cmd.Timeout, Output: d.logs(cleanupCtx, id), Pid: pid}
		}
		return nil, &FailedError{CommandID: cmd.ID, Output: d.logs(cleanupCtx, id), Pid: pid, Err: fmt.Errorf("container wait: %w", err)}
	case status := <-statusCh:
		if status.Error != nil {
			return nil, &FailedError{
				CommandID:   cmd.ID,
				ExitCode:    int(status.StatusCode),
				HasExitCode: true,
				Output:      d.logs(cleanupCtx, id),
				Pid:         pid,
				Err:         errors.New(status.Error.Message),
			}
		}
		exitCode = status.StatusCode
	}

	res := &Result{
		ExitCode: int(exitCode),
		Output:   d.logs(cleanupCtx, id),
		Pid:      pid,
		Stats:    []model.ProcessStats{{Time: time.Now()}},
	}
	logger.Debug("Container finished.", "exit_code", res.ExitCode)
	return res, nil
}

// logs returns stdout and stderr of the container, demultiplexed into one
// stream. Errors yield whatever was read so far.
func (d *Docker) logs(ctx context.Context, id string) string {
	rc, err := d.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return ""
	}
	defer rc.Close()
	var buf bytes.Buffer
	_, _ = stdcopy.StdCopy(&buf, &buf, rc)
	return buf.String()
}
