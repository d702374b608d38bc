package contextassembler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/strawberry-computer/vibec/internal/promptstore"
	"github.com/strawberry-computer/vibec/internal/systemprompt"
)

func TestBuild_RepeatsSystemAndPromptAroundContext(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo.go"), []byte("package foo"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	prompt := promptstore.Prompt{
		Raw:     "## Context: foo.go\ndo the thing\n",
		Context: []string{"foo.go"},
	}

	out := Build(nil, prompt, dir, nil, nil)

	if got := strings.Count(out, systemprompt.Text); got != 2 {
		t.Fatalf("expected system text twice, got %d", got)
	}
	if got := strings.Count(out, "do the thing"); got != 2 {
		t.Fatalf("expected raw prompt twice, got %d", got)
	}
	if !strings.Contains(out, "File: foo.go") {
		t.Fatalf("expected context block present, got:\n%s", out)
	}
	if got := strings.Count(out, "package foo"); got != 1 {
		t.Fatalf("expected context content once (not duplicated with sandwich), got %d", got)
	}
}

func TestBuild_MissingContextFileSkipped(t *testing.T) {
	dir := t.TempDir()
	prompt := promptstore.Prompt{Raw: "hello", Context: []string{"missing.go"}}
	out := Build(nil, prompt, dir, nil, nil)
	if strings.Contains(out, "File: missing.go") {
		t.Fatalf("missing context file should be skipped, got:\n%s", out)
	}
}

func TestBuild_StaticPluginsAppended(t *testing.T) {
	dir := t.TempDir()
	prompt := promptstore.Prompt{Raw: "hello"}
	plugins := []promptstore.StaticPlugin{{Name: "a.md", Text: "plugin-a-text"}}
	out := Build(nil, prompt, dir, plugins, nil)
	if got := strings.Count(out, "plugin-a-text"); got != 2 {
		t.Fatalf("expected plugin text in both halves of sandwich, got %d", got)
	}
}

func TestBuild_FeedbackBlockIncluded(t *testing.T) {
	dir := t.TempDir()
	prompt := promptstore.Prompt{Raw: "hello"}
	fb := &TestFeedback{ExitCode: 1, Output: "assertion failed"}
	out := Build(nil, prompt, dir, nil, fb)
	if !strings.Contains(out, "assertion failed") {
		t.Fatalf("expected feedback output present, got:\n%s", out)
	}
	if !strings.Contains(out, "exit code 1") {
		t.Fatalf("expected exit code mentioned, got:\n%s", out)
	}
}
