package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"video-merger/internal/domain"
)

// Request contains one job, the batch settings, and execution callbacks.
type Request struct {
	Job      domain.Job
	Settings domain.Settings
	OnLog    func(log CommandLog)
}

// Result contains the merged output path and the command invocation record.
type Result struct {
	OutputPath string
	Log        CommandLog
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// MergeError is a stage-aware error with optional command context.
type MergeError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats merge failures for logs and UI.
func (e *MergeError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *MergeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec. Cancelling the context kills
// the running process.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Pipeline executes one merge job: command construction plus supervised
// ffmpeg execution.
type Pipeline struct {
	builder  *Builder
	runner   commandRunner
	mkdirAll func(path string, perm os.FileMode) error
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline() *Pipeline {
	return &Pipeline{
		builder:  NewBuilder(),
		runner:   &execRunner{},
		mkdirAll: os.MkdirAll,
	}
}

// Run merges one video. It builds the command, ensures the output directory
// exists, and blocks until ffmpeg exits or the context is cancelled.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	cmd, err := p.builder.Build(req.Job, req.Settings)
	if err != nil {
		return Result{}, &MergeError{
			Stage:   "prepare",
			Message: err.Error(),
			Err:     err,
		}
	}

	if dir := strings.TrimSpace(req.Settings.OutputDir); dir != "" {
		if err := p.mkdirAll(dir, 0o755); err != nil {
			return Result{}, &MergeError{
				Stage:   "prepare",
				Message: fmt.Sprintf("cannot create output directory: %s", dir),
				Err:     err,
			}
		}
	}

	cmdResult, runErr := p.runner.Run(ctx, cmd.Path, cmd.Args...)
	log := CommandLog{
		Command:  cmd.Path,
		Args:     cmd.Args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   cmdResult.Stdout,
		Stderr:   cmdResult.Stderr,
	}
	emitLog(req.OnLog, log)
	if runErr != nil {
		if ctx.Err() != nil {
			return Result{}, &MergeError{
				Stage:      "transcode",
				Message:    "merge interrupted by cancellation",
				CommandLog: log,
				Err:        context.Canceled,
			}
		}
		return Result{}, &MergeError{
			Stage:      "transcode",
			Message:    "ffmpeg merge failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	return Result{
		OutputPath: OutputPath(req.Job, req.Settings),
		Log:        log,
	}, nil
}

// emitLog forwards command logs when a callback is configured.
func emitLog(cb func(log CommandLog), log CommandLog) {
	if cb != nil {
		cb(log)
	}
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	builder *Builder,
	runner commandRunner,
	mkdirAll func(path string, perm os.FileMode) error,
) *Pipeline {
	return &Pipeline{
		builder:  builder,
		runner:   runner,
		mkdirAll: mkdirAll,
	}
}
