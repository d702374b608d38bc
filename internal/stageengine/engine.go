// Package stageengine drives the per-prompt compilation state machine:
// assemble, complete, parse, write, test, retry (spec §4.8).
package stageengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/strawberry-computer/vibec/internal/contextassembler"
	"github.com/strawberry-computer/vibec/internal/fileblocks"
	"github.com/strawberry-computer/vibec/internal/llmclient"
	"github.com/strawberry-computer/vibec/internal/pluginrunner"
	"github.com/strawberry-computer/vibec/internal/promptstore"
	"github.com/strawberry-computer/vibec/internal/runstate"
	"github.com/strawberry-computer/vibec/internal/testharness"
	"github.com/strawberry-computer/vibec/internal/workspace"
	"go.uber.org/zap"
)

// Outcome is the terminal result of one prompt's Attempt sequence.
type Outcome struct {
	Prompt     promptstore.Prompt
	Success    bool
	Iterations int
	Output     string // last captured test output, for doctor/status
}

// Engine owns one compile invocation over an ordered prompt list.
type Engine struct {
	LLM           *llmclient.Client
	PluginLoader  pluginrunner.Loader
	PromptsRoot   string // directory containing stacks/<stack>/...
	OutputRoot    string
	ArtifactsDir  string
	TestCmd       string
	Iterations    int
	PluginTimeout time.Duration
	Log           *zap.SugaredLogger
	RunID         string
	DryRun        bool
}

func (e *Engine) runID() string {
	if e.RunID != "" {
		return e.RunID
	}
	return uuid.New().String()
}

func (e *Engine) pluginTimeout() time.Duration {
	if e.PluginTimeout > 0 {
		return e.PluginTimeout
	}
	return 5000 * time.Millisecond
}

// Run iterates prompts in order, filtered to [start, end] when either bound
// is non-zero, executing each prompt's Attempt(k) state machine in turn. It
// stops at the first Done(failure) in non-dry-run mode.
func (e *Engine) Run(ctx context.Context, prompts []promptstore.Prompt, start, end int) ([]Outcome, error) {
	runID := e.runID()
	state, err := runstate.Load(e.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("stageengine: loading state: %w", err)
	}
	state.RunID = runID

	timing, err := runstate.LoadTiming(e.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("stageengine: loading timing: %w", err)
	}

	var outcomes []Outcome
	for _, p := range prompts {
		if start > 0 && p.Number < start {
			continue
		}
		if end > 0 && p.Number > end {
			continue
		}

		state.Advance(p.Number, p.Stack, p.Basename)
		state.Status = runstate.StatusRunning
		if err := state.Save(e.ArtifactsDir); err != nil {
			return outcomes, fmt.Errorf("stageengine: saving state: %w", err)
		}

		timing.AddStart(p.Basename)
		outcome, runErr := e.runPrompt(ctx, p)
		timing.AddEnd(p.Basename)
		if err := timing.Flush(e.ArtifactsDir); err != nil {
			return outcomes, fmt.Errorf("stageengine: flushing timing: %w", err)
		}
		if runErr != nil {
			return outcomes, runErr
		}

		outcomes = append(outcomes, outcome)

		if outcome.Success {
			state.Status = runstate.StatusCompleted
		} else {
			state.Status = runstate.StatusFailed
			state.FailedPrompt = p.Basename
		}
		if err := state.Save(e.ArtifactsDir); err != nil {
			return outcomes, fmt.Errorf("stageengine: saving state: %w", err)
		}

		if !outcome.Success && !e.DryRun {
			return outcomes, fmt.Errorf("stageengine: stage %d (%s/%s) failed after %d iteration(s)",
				p.Number, p.Stack, p.Basename, outcome.Iterations)
		}
	}
	return outcomes, nil
}

// runPrompt executes the Attempt(k) state machine for a single prompt.
func (e *Engine) runPrompt(ctx context.Context, p promptstore.Prompt) (Outcome, error) {
	statics, dynamics, err := promptstore.ListPlugins(e.PromptsRoot, p.Stack)
	if err != nil {
		return Outcome{}, fmt.Errorf("stageengine: listing plugins for %s: %w", p.Basename, err)
	}
	var plugins []pluginrunner.Named
	if e.PluginLoader != nil {
		plugins = pluginrunner.ToPromptStoreOrder(e.Log, dynamics, e.PluginLoader)
	}

	currentDir := filepath.Join(e.OutputRoot, "current")

	var feedback *contextassembler.TestFeedback
	iterations := e.Iterations
	if iterations < 1 {
		iterations = 1
	}

	var lastOutput string
	for k := 0; k < iterations; k++ {
		assembled := contextassembler.Build(e.Log, p, currentDir, statics, feedback)

		text, err := e.LLM.Complete(ctx, assembled)
		if err != nil {
			return Outcome{}, fmt.Errorf("stageengine: LLM completion for %s: %w", p.Basename, err)
		}

		blocks := fileblocks.Parse(text)
		if len(blocks) == 0 && text != "" && e.Log != nil {
			e.Log.Warnw("no artifacts parsed from a non-empty completion", "prompt", p.Basename)
		}

		artifacts := toArtifacts(blocks)
		if err := workspace.Write(artifacts, p.Stack, p.Basename, e.OutputRoot); err != nil {
			return Outcome{}, fmt.Errorf("stageengine: writing artifacts for %s: %w", p.Basename, err)
		}

		pluginCtx := pluginrunner.Context{
			Stack:         p.Stack,
			PromptNumber:  p.Number,
			PromptContent: assembled,
			WorkingDir:    currentDir,
			TestCmd:       e.TestCmd,
		}
		if feedback != nil {
			pluginCtx.TestResult = &pluginrunner.TestResult{ExitCode: feedback.ExitCode, Output: feedback.Output}
		}
		pluginrunner.RunAll(ctx, e.Log, plugins, pluginCtx, e.pluginTimeout())

		if e.TestCmd == "" {
			return Outcome{Prompt: p, Success: true, Iterations: k + 1}, nil
		}

		result, err := testharness.Run(ctx, e.TestCmd, currentDir, os.Stdout, os.Stderr)
		if err != nil {
			return Outcome{}, fmt.Errorf("stageengine: running tests for %s: %w", p.Basename, err)
		}
		lastOutput = result.Output

		if result.Success {
			return Outcome{Prompt: p, Success: true, Iterations: k + 1, Output: result.Output}, nil
		}

		if err := runstate.WriteFeedback(e.ArtifactsDir, p.Basename, result.Output); err != nil {
			return Outcome{}, fmt.Errorf("stageengine: writing feedback for %s: %w", p.Basename, err)
		}

		if k+1 == iterations {
			return Outcome{Prompt: p, Success: false, Iterations: k + 1, Output: result.Output}, nil
		}
		feedback = &contextassembler.TestFeedback{ExitCode: result.ExitCode, Output: result.Output}
	}
	return Outcome{Prompt: p, Success: false, Iterations: iterations, Output: lastOutput}, nil
}

func toArtifacts(blocks []fileblocks.FileBlock) []workspace.Artifact {
	out := make([]workspace.Artifact, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, workspace.Artifact{Path: b.Path, Content: b.Content})
	}
	return out
}
