package sandbox

import (
	"context"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
	"go.uber.org/zap"
)

// DockerRunner runs sandboxed executions as one-shot Docker containers.
// Images are expected to be present on the host; the runner never pulls.
type DockerRunner struct {
	log *zap.Logger
}

func NewDockerRunner(log *zap.Logger) *DockerRunner {
	return &DockerRunner{log: log.Named("sandbox")}
}

func (r *DockerRunner) Run(ctx context.Context, spec Spec) (*Outcome, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &InfraError{Op: "creating docker client", Err: err}
	}
	defer cli.Close()

	envSlice := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	mounts := []mount.Mount{
		{
			Type:     mount.TypeBind,
			Source:   spec.WorkspaceDir,
			Target:   WorkspacePath,
			ReadOnly: true,
		},
	}
	if spec.OutDir != "" {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: spec.OutDir,
			Target: OutPath,
		})
	}
	for _, m := range spec.ExtraMounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: mounts,
		Init:   &initTrue,
	}
	if !spec.Network {
		hostCfg.NetworkMode = "none"
	}
	if spec.Limits.CPU > 0 {
		hostCfg.NanoCPUs = int64(spec.Limits.CPU * 1e9)
	}
	if spec.Limits.MemoryBytes > 0 {
		hostCfg.Memory = spec.Limits.MemoryBytes
	}
	if spec.Limits.Pids > 0 {
		pids := spec.Limits.Pids
		hostCfg.PidsLimit = &pids
	}

	containerCfg := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Command,
		Env:        envSlice,
		WorkingDir: WorkspacePath,
		Labels:     map[string]string{"raggrader": "true"},
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, &InfraError{Op: "creating container", Err: err}
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	r.log.Debug("starting sandboxed run",
		zap.String("image", spec.Image),
		zap.Strings("command", spec.Command),
		zap.Duration("wall_clock", spec.Limits.WallClock))

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, &InfraError{Op: "starting container", Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, spec.Limits.WallClock)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err == nil {
				// No error on this channel; keep waiting for the result.
				continue
			}
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if timeoutCtx.Err() != nil {
				stdout, stderr, truncated := r.collectLogs(cli, containerID, spec.Limits.OutputBytes)
				return &Outcome{
					ExitCode:  KilledExitCode,
					TimedOut:  true,
					Stdout:    stdout,
					Stderr:    stderr,
					Truncated: truncated,
					Duration:  time.Since(start),
				}, nil
			}
			return nil, &InfraError{Op: "waiting for container", Err: err}
		case status := <-waitResult.Result:
			stdout, stderr, truncated := r.collectLogs(cli, containerID, spec.Limits.OutputBytes)
			return &Outcome{
				ExitCode:  int(status.StatusCode),
				TimedOut:  false,
				Stdout:    stdout,
				Stderr:    stderr,
				Truncated: truncated,
				Duration:  time.Since(start),
			}, nil
		}
	}
}

func (r *DockerRunner) collectLogs(cli *client.Client, containerID string, capBytes int) (string, string, bool) {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		r.log.Warn("fetching container logs", zap.Error(err))
		return "", "", false
	}
	defer logReader.Close()
	return demuxLogs(logReader, capBytes)
}
