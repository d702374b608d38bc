// Package pluginrunner executes dynamic plugins for a prompt with a bounded
// per-invocation wall-clock budget and a failure-isolation boundary (spec
// §4.3). Plugins communicate solely through side effects on the workspace;
// their return values are discarded.
package pluginrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/strawberry-computer/vibec/internal/promptstore"
	"go.uber.org/zap"
)

// TestResult mirrors contextassembler.TestFeedback; duplicated here (rather
// than imported) to keep pluginrunner free of a dependency on the assembler
// package — both sides depend on promptstore, not on each other.
type TestResult struct {
	ExitCode int
	Output   string
}

// Context is the semantic record passed to a plugin invocation (spec §4.3).
type Context struct {
	ConfigSnapshot any
	Stack          string
	PromptNumber   int
	PromptContent  string
	WorkingDir     string
	TestCmd        string
	TestResult     *TestResult
}

// Plugin is anything loadable that can be invoked with a Context. A plugin
// reports failure through its error return only; that error is logged, not
// propagated.
type Plugin interface {
	Invoke(ctx context.Context, pc Context) error
}

// Named pairs a loaded Plugin with its source filename, for sequential
// manifest/filename-order execution and error attribution. Timeout
// overrides the caller's default when a plugin manifest sets one for this
// plugin (promptstore.DynamicPlugin.Timeout); zero means "use the default".
type Named struct {
	Name    string
	Plugin  Plugin
	Timeout time.Duration
}

// RunAll executes plugins sequentially in the order given, each bounded by
// its own timeout if set, else defaultTimeout. A plugin that errors,
// panics, or exceeds its timeout is logged at error level and skipped;
// remaining plugins and the prompt are unaffected.
func RunAll(ctx context.Context, log *zap.SugaredLogger, plugins []Named, pc Context, defaultTimeout time.Duration) {
	for _, p := range plugins {
		timeout := defaultTimeout
		if p.Timeout > 0 {
			timeout = p.Timeout
		}
		runOne(ctx, log, p, pc, timeout)
	}
}

func runOne(ctx context.Context, log *zap.SugaredLogger, p Named, pc Context, timeout time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("plugin panicked: %v", r)
			}
		}()
		done <- p.Plugin.Invoke(runCtx, pc)
	}()

	select {
	case err := <-done:
		if err != nil && log != nil {
			log.Errorw("plugin failed", "plugin", p.Name, "error", err)
		}
	case <-runCtx.Done():
		if log != nil {
			log.Errorw("plugin timed out", "plugin", p.Name, "timeout", timeout)
		}
	}
}

// ToPromptStoreOrder adapts promptstore.DynamicPlugin entries (already
// ordered by ListPlugins: manifest order if a manifest lists them, else
// filename order) into Named values, keeping that order, using the given
// loader, skipping and logging any that fail to load.
func ToPromptStoreOrder(log *zap.SugaredLogger, dyn []promptstore.DynamicPlugin, load Loader) []Named {
	var out []Named
	for _, d := range dyn {
		p, err := load(d.Path)
		if err != nil {
			if log != nil {
				log.Errorw("failed to load plugin", "plugin", d.Name, "path", d.Path, "error", err)
			}
			continue
		}
		out = append(out, Named{Name: d.Name, Plugin: p, Timeout: d.Timeout})
	}
	return out
}

// Loader loads a Plugin from a filesystem path.
type Loader func(path string) (Plugin, error)
