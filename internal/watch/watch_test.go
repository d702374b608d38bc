package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestIsRelevant_PromptFileWrite(t *testing.T) {
	event := fsnotify.Event{Name: "/stacks/core/010_init.md", Op: fsnotify.Write}
	if !isRelevant(event) {
		t.Fatal("expected .md write to be relevant")
	}
}

func TestIsRelevant_NonMarkdownIgnored(t *testing.T) {
	event := fsnotify.Event{Name: "/stacks/core/.010_init.md.tmp", Op: fsnotify.Write}
	if isRelevant(event) {
		t.Fatal("expected non-.md file to be ignored")
	}
}

func TestWatch_RunsOnceImmediatelyThenOnChange(t *testing.T) {
	root := t.TempDir()
	stackDir := filepath.Join(root, "stacks", "core")
	if err := os.MkdirAll(stackDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	promptPath := filepath.Join(stackDir, "010_init.md")
	if err := os.WriteFile(promptPath, []byte("# Prompt"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var runs int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, []string{"core"}, nil, func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(promptPath, []byte("# Prompt changed"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	if atomic.LoadInt32(&runs) < 2 {
		t.Fatalf("expected at least 2 runs (initial + on change), got %d", runs)
	}
}
