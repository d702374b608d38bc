// Package testharness runs the configured test command and captures its
// output (spec §4.7).
package testharness

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// Result is the outcome of one test run.
type Result struct {
	Success  bool
	ExitCode int
	Output   string
}

// Run spawns testCmd as a shell command in workDir, streaming stdout/stderr
// to stdout/stderr (if non-nil) while also capturing them. An empty testCmd
// is treated as "no test configured" and always succeeds with empty output.
// The harness does not interpret testCmd; quoting and word-splitting are
// the caller's responsibility via the shell.
func Run(ctx context.Context, testCmd, workDir string, stdout, stderr io.Writer) (Result, error) {
	if testCmd == "" {
		return Result{Success: true}, nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", testCmd)
	cmd.Dir = workDir

	var captured bytes.Buffer
	outWriters := []io.Writer{&captured}
	errWriters := []io.Writer{&captured}
	if stdout != nil {
		outWriters = append(outWriters, stdout)
	}
	if stderr != nil {
		errWriters = append(errWriters, stderr)
	}
	cmd.Stdout = io.MultiWriter(outWriters...)
	cmd.Stderr = io.MultiWriter(errWriters...)

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		exitCode = exitCodeOf(runErr)
	}
	return Result{
		Success:  runErr == nil,
		ExitCode: exitCode,
		Output:   captured.String(),
	}, nil
}

// exitCodeOf extracts the process exit code from a command error, falling
// back to 1 for errors that did not come from the process itself (e.g. the
// binary could not be started).
func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
