package promptstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePrompt(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestListPrompts_OrdersByNumberThenStack(t *testing.T) {
	root := t.TempDir()
	writePrompt(t, filepath.Join(root, "stacks", "core"), "010_setup.md", "## Output: a.go\n")
	writePrompt(t, filepath.Join(root, "stacks", "core"), "020_build.md", "## Output: b.go\n")
	writePrompt(t, filepath.Join(root, "stacks", "extras"), "010_extra.md", "## Output: c.go\n")

	prompts, err := ListPrompts(root, []string{"core", "extras"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(prompts))
	}
	if prompts[0].Stack != "core" || prompts[0].Number != 10 {
		t.Fatalf("unexpected first prompt: %+v", prompts[0])
	}
	if prompts[1].Stack != "extras" || prompts[1].Number != 10 {
		t.Fatalf("expected extras 10 second (stack-order tiebreak), got %+v", prompts[1])
	}
	if prompts[2].Stack != "core" || prompts[2].Number != 20 {
		t.Fatalf("unexpected third prompt: %+v", prompts[2])
	}
}

func TestListPrompts_IgnoresNonMatchingFiles(t *testing.T) {
	root := t.TempDir()
	writePrompt(t, filepath.Join(root, "stacks", "core"), "010_setup.md", "## Output: a.go\n")
	writePrompt(t, filepath.Join(root, "stacks", "core"), "notes.txt", "irrelevant")
	writePrompt(t, filepath.Join(root, "stacks", "core"), "abc_bad.md", "no leading number")

	prompts, err := ListPrompts(root, []string{"core"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d: %+v", len(prompts), prompts)
	}
}

func TestListPrompts_MissingStackIsError(t *testing.T) {
	root := t.TempDir()
	if _, err := ListPrompts(root, []string{"missing"}); err == nil {
		t.Fatal("expected error for missing stack directory")
	}
}

func TestParseDirectives(t *testing.T) {
	raw := "intro text\n" +
		"## Context: foo/bar.go, baz.go ,\n" +
		"## Output: one.go\n" +
		"body\n" +
		"## Output: two.go\n"
	outputs, context := parseDirectives(raw)
	if len(outputs) != 2 || outputs[0] != "one.go" || outputs[1] != "two.go" {
		t.Fatalf("unexpected outputs: %v", outputs)
	}
	if len(context) != 2 || context[0] != "foo/bar.go" || context[1] != "baz.go" {
		t.Fatalf("unexpected context: %v", context)
	}
}

func TestListPlugins_ClassifiesByExtension(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "stacks", "core", "plugins")
	writePrompt(t, dir, "notes.md", "static fragment")
	writePrompt(t, dir, "hook.so", "")
	writePrompt(t, dir, "ignored.txt", "")

	statics, dynamics, err := ListPlugins(root, "core")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statics) != 1 || statics[0].Name != "notes.md" || statics[0].Text != "static fragment" {
		t.Fatalf("unexpected statics: %+v", statics)
	}
	if len(dynamics) != 1 || dynamics[0].Name != "hook.so" {
		t.Fatalf("unexpected dynamics: %+v", dynamics)
	}
}

func TestListPlugins_ManifestReordersAndSetsTimeout(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "stacks", "core", "plugins")
	writePrompt(t, dir, "alpha.so", "")
	writePrompt(t, dir, "beta.so", "")
	writePrompt(t, dir, "manifest.yaml", "order:\n  - beta.so\n  - alpha.so\ntimeouts:\n  beta.so: 250ms\n")

	_, dynamics, err := ListPlugins(root, "core")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dynamics) != 2 || dynamics[0].Name != "beta.so" || dynamics[1].Name != "alpha.so" {
		t.Fatalf("expected manifest order beta,alpha; got %+v", dynamics)
	}
	if dynamics[0].Timeout != 250*time.Millisecond {
		t.Fatalf("expected beta.so timeout override, got %v", dynamics[0].Timeout)
	}
	if dynamics[1].Timeout != 0 {
		t.Fatalf("expected alpha.so to have no override, got %v", dynamics[1].Timeout)
	}
}

func TestListPlugins_UnlistedPluginsKeepOrderAfterManifestEntries(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "stacks", "core", "plugins")
	writePrompt(t, dir, "alpha.so", "")
	writePrompt(t, dir, "beta.so", "")
	writePrompt(t, dir, "gamma.so", "")
	writePrompt(t, dir, "manifest.yaml", "order:\n  - gamma.so\n")

	_, dynamics, err := ListPlugins(root, "core")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := []string{dynamics[0].Name, dynamics[1].Name, dynamics[2].Name}
	if names[0] != "gamma.so" || names[1] != "alpha.so" || names[2] != "beta.so" {
		t.Fatalf("expected gamma first then remaining filename order, got %v", names)
	}
}

func TestListPlugins_MissingDirIsEmpty(t *testing.T) {
	root := t.TempDir()
	statics, dynamics, err := ListPlugins(root, "core")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statics) != 0 || len(dynamics) != 0 {
		t.Fatalf("expected empty lists, got %v / %v", statics, dynamics)
	}
}
