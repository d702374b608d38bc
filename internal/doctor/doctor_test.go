package doctor

import (
	"testing"

	"github.com/strawberry-computer/vibec/internal/promptstore"
	"github.com/strawberry-computer/vibec/internal/runstate"
)

func TestRun_NoFailedRunPrintsMessage(t *testing.T) {
	dir := t.TempDir()
	st := &runstate.State{Status: runstate.StatusCompleted}
	if err := Run(dir, st, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_UnknownFailedPromptIsError(t *testing.T) {
	dir := t.TempDir()
	st := &runstate.State{Status: runstate.StatusFailed, FailedPrompt: "missing"}
	if err := Run(dir, st, nil); err == nil {
		t.Fatal("expected error for unknown failed prompt")
	}
}

func TestRun_PrintsDiagnosisForFailedPrompt(t *testing.T) {
	dir := t.TempDir()
	if err := runstate.EnsureDir(dir); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if err := runstate.WriteFeedback(dir, "020_build", "assertion failed: x != y"); err != nil {
		t.Fatalf("write feedback: %v", err)
	}

	st := &runstate.State{Status: runstate.StatusFailed, FailedPrompt: "020_build", RunID: "r1"}
	prompts := []promptstore.Prompt{
		{Stack: "core", Number: 20, Basename: "020_build", Outputs: []string{"pkg/foo.go"}},
	}

	if err := Run(dir, st, prompts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_InterruptedCountsAsFailure(t *testing.T) {
	dir := t.TempDir()
	if err := runstate.EnsureDir(dir); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	st := &runstate.State{Status: runstate.StatusInterrupted, FailedPrompt: "010_init", RunID: "r2"}
	prompts := []promptstore.Prompt{
		{Stack: "core", Number: 10, Basename: "010_init", Outputs: []string{"go.mod"}},
	}
	if err := Run(dir, st, prompts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTruncate_ShortTextPassesThrough(t *testing.T) {
	if got := truncate("hello", 200); got != "hello" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestTruncate_EmptyTextHasPlaceholder(t *testing.T) {
	if got := truncate("", 200); got != "(no captured output)" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestGatherTiming_MissingEnd(t *testing.T) {
	timing := &runstate.Timing{
		Entries: []runstate.TimingEntry{
			{Stage: "010_init"},
		},
	}
	result := gatherTiming(timing, "010_init")
	if result == "" {
		t.Fatal("expected non-empty result")
	}
}

func TestGatherTiming_NoData(t *testing.T) {
	timing := &runstate.Timing{}
	if got := gatherTiming(timing, "nonexistent"); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
