package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/reviewboard/rbrelease/internal/domain/services"
)

// CommandExecutor runs external commands, echoing each command line and
// streaming its output to the console while capturing it
type CommandExecutor struct {
	stdout io.Writer
	stderr io.Writer
}

// NewCommandExecutor creates an executor that streams to the process console
func NewCommandExecutor() *CommandExecutor {
	return NewCommandExecutorWithOutput(os.Stdout, os.Stderr)
}

// NewCommandExecutorWithOutput creates an executor streaming to the given writers
func NewCommandExecutorWithOutput(stdout, stderr io.Writer) *CommandExecutor {
	return &CommandExecutor{stdout: stdout, stderr: stderr}
}

// ExecuteConfig contains configuration for running a command
type ExecuteConfig struct {
	Args       []string
	WorkingDir string
}

// ExecuteResult contains the result of command execution
type ExecuteResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// CommandLine renders args the way they are echoed to the console
func CommandLine(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			quoted[i] = fmt.Sprintf("%q", arg)
		} else {
			quoted[i] = arg
		}
	}
	return strings.Join(quoted, " ")
}

// Execute runs a command and always returns a result
func (ce *CommandExecutor) Execute(ctx context.Context, config ExecuteConfig) *ExecuteResult {
	startTime := time.Now()
	result := &ExecuteResult{ExitCode: -1}

	if len(config.Args) == 0 {
		result.Error = fmt.Errorf("no command given")
		return result
	}

	_, _ = fmt.Fprintf(ce.stdout, ">>> %s\n", CommandLine(config.Args))

	//nolint:gosec // G204: command lines are built by the release pipeline
	cmd := exec.CommandContext(ctx, config.Args[0], config.Args[1:]...)
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.MultiWriter(ce.stdout, &stdout)
	cmd.Stderr = io.MultiWriter(ce.stderr, &stderr)

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Error = fmt.Errorf("command interrupted: %w", ctxErr)
			return result
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// Run executes a command and converts any failure into an error wrapping
// services.ErrCommandFailed. The captured stdout is returned on success.
func (ce *CommandExecutor) Run(ctx context.Context, dir string, args ...string) (string, error) {
	result := ce.Execute(ctx, ExecuteConfig{Args: args, WorkingDir: dir})
	if !result.Success {
		_, _ = fmt.Fprintln(ce.stdout, "!!! Error invoking command.")
		return result.Stdout, fmt.Errorf("%w: %s (exit %d): %v",
			services.ErrCommandFailed, CommandLine(args), result.ExitCode, result.Error)
	}
	return result.Stdout, nil
}
