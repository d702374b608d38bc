// Package bootstrap drives vibec's self-hosting sequence: invoke the
// compiler one stage at a time, promoting any compiler or test runner the
// stage itself produced before moving on (spec §4.9).
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/strawberry-computer/vibec/internal/promptstore"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Options configures one bootstrap run.
type Options struct {
	ProjectRoot   string   // project workdir containing stacks/ and vibec.json
	Output        string   // output dir name, relative to ProjectRoot (e.g. "output")
	OutputRoot    string   // filepath.Join(ProjectRoot, Output); where current/, stacks/ snapshots live
	SeedDir       string   // fixed seed directory containing bin/<compiler>, <test-runner>, and an optional seed.yaml
	CompilerName  string   // e.g. "vibecc"; if empty, resolved from SeedDir/seed.yaml
	TestRunner    string   // e.g. "run-tests.sh", or "" to resolve from SeedDir/seed.yaml (still "" if neither sets it)
	Stacks        []string
	TestCmd       string
	Start, End    int // operator-supplied stage range; 0 means unset
}

// seedDescriptor is an optional seed.yaml inside SeedDir naming the fixed
// compiler and test runner to seed with, the way the teacher's config.Load
// unmarshals a structured file over built-in defaults. It only fills in
// names the operator left unset on Options.
type seedDescriptor struct {
	Compiler   string `yaml:"compiler"`
	TestRunner string `yaml:"testRunner"`
}

// loadSeedDescriptor reads seed.yaml from dir. A missing file is not an
// error; it yields a zero descriptor.
func loadSeedDescriptor(dir string) (seedDescriptor, error) {
	path := filepath.Join(dir, "seed.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seedDescriptor{}, nil
		}
		return seedDescriptor{}, fmt.Errorf("bootstrap: reading seed descriptor: %w", err)
	}
	var d seedDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return seedDescriptor{}, fmt.Errorf("bootstrap: parsing seed descriptor %q: %w", path, err)
	}
	return d, nil
}

// resolveSeedNames fills CompilerName/TestRunner from the seed directory's
// seed.yaml wherever Options left them unset.
func resolveSeedNames(opts Options) (Options, error) {
	descriptor, err := loadSeedDescriptor(opts.SeedDir)
	if err != nil {
		return opts, err
	}
	if opts.CompilerName == "" {
		opts.CompilerName = descriptor.Compiler
	}
	if opts.TestRunner == "" {
		opts.TestRunner = descriptor.TestRunner
	}
	return opts, nil
}

// Run executes the bootstrap algorithm end to end.
func Run(ctx context.Context, opts Options, prompts []promptstore.Prompt, log *zap.SugaredLogger) error {
	opts, err := resolveSeedNames(opts)
	if err != nil {
		return err
	}

	if err := ensureSeeded(opts); err != nil {
		return err
	}

	highest := highestStage(prompts)
	if highest == 0 {
		return fmt.Errorf("bootstrap: no prompts found across stacks %v", opts.Stacks)
	}

	start := opts.Start
	if start < 1 {
		start = 1
	}
	end := opts.End
	if end < 1 {
		end = highest
	}

	for s := start; s <= end; s++ {
		if log != nil {
			log.Infow("bootstrap: invoking compiler", "stage", s)
		}
		compilerPath := filepath.Join(opts.OutputRoot, "current", "bin", opts.CompilerName)
		args := []string{
			"compile",
			"--start", fmt.Sprint(s),
			"--end", fmt.Sprint(s),
			"--workdir", opts.ProjectRoot,
			"--output", opts.Output,
			"--test-cmd", opts.TestCmd,
		}
		for _, stack := range opts.Stacks {
			args = append(args, "--stack", stack)
		}

		cmd := exec.CommandContext(ctx, compilerPath, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("bootstrap: stage %d invocation failed: %w", s, exitErrOrWrap(err))
		}

		if err := promoteIfPresent(opts, s); err != nil {
			return fmt.Errorf("bootstrap: promoting artifacts from stage %d: %w", s, err)
		}
	}
	return nil
}

// ensureSeeded copies the fixed seed compiler/test-runner into
// <output>/current if they are not already present, marking them
// executable.
func ensureSeeded(opts Options) error {
	binDir := filepath.Join(opts.OutputRoot, "current", "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return fmt.Errorf("bootstrap: creating bin dir: %w", err)
	}

	compilerDst := filepath.Join(binDir, opts.CompilerName)
	if _, err := os.Stat(compilerDst); os.IsNotExist(err) {
		src := filepath.Join(opts.SeedDir, "bin", opts.CompilerName)
		if err := copyExecutable(src, compilerDst); err != nil {
			return fmt.Errorf("bootstrap: seeding compiler: %w", err)
		}
	}

	if opts.TestRunner != "" {
		runnerDst := filepath.Join(opts.OutputRoot, "current", opts.TestRunner)
		if _, err := os.Stat(runnerDst); os.IsNotExist(err) {
			src := filepath.Join(opts.SeedDir, opts.TestRunner)
			if _, err := os.Stat(src); err == nil {
				if err := copyExecutable(src, runnerDst); err != nil {
					return fmt.Errorf("bootstrap: seeding test runner: %w", err)
				}
			}
		}
	}
	return nil
}

// promoteIfPresent re-marks an updated compiler or test runner executable
// if the stage just run emitted one as an artifact. The Workspace Manager
// already merged any such artifact into <output>/current at its
// well-known path (bin/<compiler> or <test-runner>); this is the
// self-improvement latch of spec §4.9 step 3c — from the next stage
// onward, Run invokes whatever binary now lives at that path.
func promoteIfPresent(opts Options, stage int) error {
	compilerPath := filepath.Join(opts.OutputRoot, "current", "bin", opts.CompilerName)
	if err := markExecutable(compilerPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	if opts.TestRunner != "" {
		runnerPath := filepath.Join(opts.OutputRoot, "current", opts.TestRunner)
		if err := markExecutable(runnerPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// highestStage returns the largest prompt number across all prompts, 0 if
// empty.
func highestStage(prompts []promptstore.Prompt) int {
	max := 0
	for _, p := range prompts {
		if p.Number > max {
			max = p.Number
		}
	}
	return max
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return markExecutable(dst)
}

func markExecutable(path string) error {
	return os.Chmod(path, 0755)
}

func exitErrOrWrap(err error) error {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return fmt.Errorf("exit status %d", exitErr.ExitCode())
	}
	return err
}
