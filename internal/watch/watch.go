// Package watch re-triggers a compile run whenever a prompt file under a
// stacks root changes, the way a plugin hot-loader watches its plugin
// directory for edits (adapted from the gateway's plugin loader in
// None9527-NGOClaw).
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Run is invoked once per detected change; the whole stage range is
// re-executed from scratch each time (no incremental rebuild).
type Run func(ctx context.Context) error

// Watch blocks, watching <stacksRoot>/stacks/<stack> for each configured
// stack (stacks whose directory does not exist are skipped) for changes to
// prompt files. It invokes run once at start and then again after every
// relevant event; events are not debounced. It returns when ctx is
// cancelled.
func Watch(ctx context.Context, stacksRoot string, stacks []string, log *zap.SugaredLogger, run Run) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, stack := range stacks {
		dir := filepath.Join(stacksRoot, "stacks", stack)
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("watch: checking stack dir %q: %w", dir, err)
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch: watching %q: %w", dir, err)
		}
	}

	if log != nil {
		log.Infow("watch: watching for prompt changes", "stacks", stacks)
	}

	if err := run(ctx); err != nil && log != nil {
		log.Errorw("watch: initial run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRelevant(event) {
				continue
			}
			if log != nil {
				log.Infow("watch: change detected, re-running", "file", event.Name, "op", event.Op.String())
			}
			if err := run(ctx); err != nil && log != nil {
				log.Errorw("watch: run failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if log != nil {
				log.Errorw("watch: watcher error", "error", err)
			}
		}
	}
}

// isRelevant filters out directory-creation and chmod-only noise, keeping
// writes, creates, renames and removes of prompt files.
func isRelevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod != 0 && event.Op == fsnotify.Chmod {
		return false
	}
	return filepath.Ext(event.Name) == ".md"
}
