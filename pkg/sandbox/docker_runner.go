package sandbox

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dockerexec "github.com/noah-isme/mock-interview-api/pkg/docker"
)

// BackendDocker names the container backend.
const BackendDocker = "docker"

const resultMarker = "@@mockint-result@@"

// startupGrace is added to the per-case budget to cover container start and node boot.
const startupGrace = 3 * time.Second

//go:embed harness/harness.js
var nodeHarness []byte

// DockerConfig configures the container backend.
type DockerConfig struct {
	Image         string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkspaceRoot string
	Logger        zerolog.Logger
}

// DockerRunner evaluates candidate code with Node.js inside a network-less container.
// Node enforces the per-case timeout; the container deadline is a backstop for the run.
type DockerRunner struct {
	executor dockerexec.Executor
	cfg      DockerConfig
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// harnessLine is one marker line written by harness.js.
type harnessLine struct {
	CompileError    *string `json:"compileError"`
	CompileTimedOut bool    `json:"compileTimedOut"`
	Ready           bool    `json:"ready"`
	Done            bool    `json:"done"`
	Index           *int    `json:"index"`
	Output          *string `json:"output"`
	Matched         bool    `json:"matched"`
	Error           *string `json:"error"`
	TimedOut        bool    `json:"timedOut"`
}

type harnessReport struct {
	compileError    *string
	compileTimedOut bool
	ready           bool
	done            bool
	cases           map[int]harnessLine
}

type harnessCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// NewDockerRunner wraps executor as a Runner.
func NewDockerRunner(executor dockerexec.Executor, cfg DockerConfig) *DockerRunner {
	if cfg.Image == "" {
		cfg.Image = "node:20-alpine"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &DockerRunner{
		executor: executor,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/noah-isme/mock-interview-api/pkg/sandbox"),
		logger:   logger.With().Str("component", "docker_runner").Logger(),
	}
}

// Name implements Runner.
func (r *DockerRunner) Name() string {
	return BackendDocker
}

// Run writes the submission into a scratch workspace and executes the Node harness on it.
// Cases finished before the container stopped keep their results. The case that was
// running is failed with the reason and the rest are reported as not run.
func (r *DockerRunner) Run(parent context.Context, req Request) (report Report, err error) {
	ctx, span := r.tracer.Start(parent, "sandbox.run", trace.WithAttributes(
		attribute.String("sandbox.backend", BackendDocker),
		attribute.Int("sandbox.cases", len(req.Inputs)),
	))
	started := time.Now()
	defer func() {
		report.Duration = time.Since(started)
		observeRun(BackendDocker, started, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	perCase := req.Timeout
	if perCase <= 0 {
		perCase = r.cfg.Timeout
	}
	// One extra case budget covers loading the submission.
	budget := perCase*time.Duration(len(req.Inputs)+1) + startupGrace

	workspace, err := r.prepareWorkspace(req)
	if err != nil {
		return Report{}, err
	}
	defer os.RemoveAll(workspace)

	result, execErr := r.executor.Run(ctx, dockerexec.ExecutionRequest{
		Image:         r.cfg.Image,
		Cmd:           r.command(),
		Env:           []string{fmt.Sprintf("MOCKINT_CASE_TIMEOUT_MS=%d", perCase.Milliseconds())},
		Timeout:       budget,
		Workspace:     workspace,
		MemoryLimitMB: r.cfg.MemoryLimitMB,
		CPUShares:     r.cfg.CPUShares,
	})
	if execErr != nil && !result.TimedOut {
		return Report{}, fmt.Errorf("run container: %w", execErr)
	}

	parsed := parseHarnessOutput(result.Stdout)
	outOfMemory := result.OOMKilled || strings.Contains(result.Stderr, "heap out of memory")

	switch {
	case parsed.compileError != nil:
		return Report{}, compileError(*parsed.compileError)
	case parsed.compileTimedOut:
		caseTimeouts.WithLabelValues(BackendDocker).Inc()
		return Report{}, compileError(timedOutMessage(perCase))
	case !parsed.ready && result.TimedOut:
		caseTimeouts.WithLabelValues(BackendDocker).Inc()
		return Report{}, compileError(timedOutMessage(perCase))
	case !parsed.ready && outOfMemory:
		return Report{}, compileError(OutOfMemoryMessage)
	case !parsed.ready:
		r.logger.Error().Int("exit_code", result.ExitCode).Str("stderr", truncate(result.Stderr, 512)).Msg("unreadable harness output")
		return Report{}, fmt.Errorf("harness produced no result (exit code %d)", result.ExitCode)
	}

	// The message for the first case without a result explains why the run stopped.
	stopped := terminatedMessage(result.ExitCode)
	switch {
	case result.TimedOut:
		stopped = timedOutMessage(perCase)
	case outOfMemory:
		stopped = OutOfMemoryMessage
	}

	report.Cases = make([]CaseResult, 0, len(req.Inputs))
	missing := 0
	for i := range req.Inputs {
		line, ok := parsed.cases[i]
		if !ok {
			if missing == 0 {
				if result.TimedOut {
					caseTimeouts.WithLabelValues(BackendDocker).Inc()
				}
				report.Cases = append(report.Cases, failedCase(stopped))
			} else {
				report.Cases = append(report.Cases, failedCase(NotRunMessage))
			}
			missing++
			continue
		}
		report.Cases = append(report.Cases, caseFromLine(line, perCase))
	}

	if missing > 0 {
		r.logger.Warn().
			Int("missing", missing).
			Int("exit_code", result.ExitCode).
			Bool("timed_out", result.TimedOut).
			Bool("oom_killed", outOfMemory).
			Bool("harness_finished", parsed.done).
			Msg("sandbox stopped before every case finished")
	}

	return report, nil
}

func (r *DockerRunner) command() []string {
	if r.cfg.MemoryLimitMB <= 0 {
		return []string{"node", "harness.js"}
	}
	// Leaves headroom under the container limit so V8 reports heap exhaustion itself.
	heapMB := max(r.cfg.MemoryLimitMB*3/4, 16)
	return []string{"node", fmt.Sprintf("--max-old-space-size=%d", heapMB), "harness.js"}
}

func caseFromLine(line harnessLine, perCase time.Duration) CaseResult {
	switch {
	case line.TimedOut:
		caseTimeouts.WithLabelValues(BackendDocker).Inc()
		return failedCase(timedOutMessage(perCase))
	case line.Error != nil:
		return failedCase(*line.Error)
	case line.Output != nil:
		return CaseResult{Output: json.RawMessage(*line.Output), Defined: true, Matched: line.Matched}
	default:
		return CaseResult{}
	}
}

func (r *DockerRunner) prepareWorkspace(req Request) (string, error) {
	workspace, err := os.MkdirTemp(r.cfg.WorkspaceRoot, "evaluation-")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	// The container user is unprivileged and must be able to read the mount.
	if err := os.Chmod(workspace, 0o755); err != nil {
		_ = os.RemoveAll(workspace)
		return "", fmt.Errorf("chmod workspace: %w", err)
	}

	// Passed as text so Node parses them itself.
	cases := make([]harnessCase, 0, len(req.Inputs))
	for i, input := range req.Inputs {
		cases = append(cases, harnessCase{Input: inputOrNull(input), Expected: expectedAt(req, i)})
	}
	encodedCases, err := json.Marshal(cases)
	if err != nil {
		_ = os.RemoveAll(workspace)
		return "", fmt.Errorf("encode cases: %w", err)
	}

	files := map[string][]byte{
		"harness.js":  nodeHarness,
		"solution.js": []byte(req.Source),
		"cases.json":  encodedCases,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(workspace, name), content, 0o644); err != nil {
			_ = os.RemoveAll(workspace)
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}

	return workspace, nil
}

// parseHarnessOutput collects every marker line. Lines the harness did not write, or
// that were cut off when the container was killed, are skipped.
func parseHarnessOutput(stdout string) harnessReport {
	parsed := harnessReport{cases: make(map[int]harnessLine)}
	for _, raw := range strings.Split(stdout, "\n") {
		payload, ok := strings.CutPrefix(strings.TrimSpace(raw), resultMarker)
		if !ok {
			continue
		}
		var line harnessLine
		if err := json.Unmarshal([]byte(payload), &line); err != nil {
			continue
		}
		switch {
		case line.CompileError != nil:
			parsed.compileError = line.CompileError
		case line.CompileTimedOut:
			parsed.compileTimedOut = true
		case line.Ready:
			parsed.ready = true
		case line.Done:
			parsed.done = true
		case line.Index != nil:
			parsed.cases[*line.Index] = line
		}
	}
	return parsed
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
