package git_cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a command. A non-zero exit is a Result, not an error; the
// error is reserved for commands that could not run at all.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return Result{Stdout: stdout.String(), Stderr: stderr.String()}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitErr.ExitCode()}, nil
		}
		return Result{}, err
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
