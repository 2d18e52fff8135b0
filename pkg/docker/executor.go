package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mockint",
		Subsystem: "container",
		Name:      "run_duration_seconds",
		Help:      "Duration of sandbox container runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockint",
		Subsystem: "container",
		Name:      "run_timeouts_total",
		Help:      "Number of sandbox container runs killed at the deadline",
	}, []string{"image"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockint",
		Subsystem: "container",
		Name:      "run_failures_total",
		Help:      "Number of sandbox container runs that could not complete",
	}, []string{"image"})
)

// ErrTimedOut is returned alongside a result whose TimedOut flag is set.
var ErrTimedOut = errors.New("execution timed out")

// Executor runs a command inside an isolated container.
type Executor interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// ExecutionRequest describes one sandboxed command. Workspace is bind-mounted read-only
// at the working directory.
type ExecutionRequest struct {
	Image         string
	Cmd           []string
	Env           []string
	Timeout       time.Duration
	Workspace     string
	MemoryLimitMB int64
	CPUShares     int64
}

// ExecutionResult is what the container produced before it exited or was killed.
// Output is collected in both cases.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
	// OOMKilled is set when the kernel killed the container for exceeding its memory limit.
	OOMKilled bool
}

// Config groups executor defaults.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkingDir    string
	Logger        zerolog.Logger
}

// DockerExecutor implements Executor with the Docker Engine API.
type DockerExecutor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor constructs a Docker backed executor.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/mock-interview-api/pkg/docker"),
		logger: logger.With().Str("component", "docker_executor").Logger(),
	}, nil
}

// Run creates, starts and waits for a locked-down container, then collects its logs.
// The container never has network access and is always removed afterwards.
func (e *DockerExecutor) Run(parent context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if req.Image == "" {
		return ExecutionResult{}, errors.New("image is required")
	}

	ctx, span := e.tracer.Start(parent, "docker.executor.run", trace.WithAttributes(
		attribute.String("docker.image", req.Image),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	containerID, err := e.create(runCtx, req)
	if err != nil {
		return ExecutionResult{}, e.failed(span, req.Image, fmt.Errorf("container create: %w", err))
	}
	defer e.remove(containerID)

	if err := e.client.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		return ExecutionResult{}, e.failed(span, req.Image, fmt.Errorf("container start: %w", err))
	}

	result := ExecutionResult{}
	statusCh, errCh := e.client.ContainerWait(runCtx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		if runCtx.Err() == nil {
			return result, e.failed(span, req.Image, fmt.Errorf("container wait: %w", err))
		}
		result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
	case <-runCtx.Done():
		result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
	}

	result.Duration = time.Since(start)
	runDuration.WithLabelValues(req.Image).Observe(result.Duration.Seconds())

	if result.TimedOut {
		runTimeouts.WithLabelValues(req.Image).Inc()
		e.kill(containerID)
	}
	if err := parent.Err(); err != nil {
		return result, err
	}

	stdout, stderr, err := e.logs(parent, containerID)
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
	}
	result.Stdout = stdout
	result.Stderr = stderr

	if result.TimedOut {
		span.SetStatus(codes.Error, "execution timed out")
		return result, fmt.Errorf("%w after %s", ErrTimedOut, timeout)
	}

	result.OOMKilled = e.oomKilled(parent, containerID)
	if result.OOMKilled {
		span.SetAttributes(attribute.Bool("docker.oom_killed", true))
	}
	return result, nil
}

func (e *DockerExecutor) oomKilled(ctx context.Context, containerID string) bool {
	info, err := e.client.ContainerInspect(ctx, containerID)
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to inspect container")
		return false
	}
	return info.ContainerJSONBase != nil && info.State != nil && info.State.OOMKilled
}

func (e *DockerExecutor) create(ctx context.Context, req ExecutionRequest) (string, error) {
	memoryMB := req.MemoryLimitMB
	if memoryMB <= 0 {
		memoryMB = e.cfg.MemoryLimitMB
	}
	cpuShares := req.CPUShares
	if cpuShares <= 0 {
		cpuShares = e.cfg.CPUShares
	}
	pids := int64(64)

	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:    memoryMB * 1024 * 1024,
			CPUShares: cpuShares,
			PidsLimit: &pids,
		},
	}
	if req.Workspace != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   req.Workspace,
			Target:   e.cfg.WorkingDir,
			ReadOnly: true,
		}}
	}

	resp, err := e.client.ContainerCreate(ctx, &container.Config{
		Image:           req.Image,
		Cmd:             req.Cmd,
		Env:             req.Env,
		WorkingDir:      e.cfg.WorkingDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (e *DockerExecutor) logs(ctx context.Context, containerID string) (string, string, error) {
	reader, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer reader.Close()
	return splitDockerLogs(reader)
}

func (e *DockerExecutor) kill(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.client.ContainerKill(ctx, containerID, "KILL"); err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
	}
}

func (e *DockerExecutor) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
	}
}

func (e *DockerExecutor) failed(span trace.Span, image string, err error) error {
	runFailures.WithLabelValues(image).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
