package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(nil, Layer{WorkDir: strPtr(dir)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIModel != "anthropic/claude-3.7-sonnet" {
		t.Fatalf("unexpected default model: %q", cfg.APIModel)
	}
	if cfg.Iterations != 2 {
		t.Fatalf("expected default iterations 2, got %d", cfg.Iterations)
	}
	if cfg.PluginTimeout != 5000*time.Millisecond {
		t.Fatalf("unexpected default plugin timeout: %v", cfg.PluginTimeout)
	}
	if len(cfg.Stacks) != 1 || cfg.Stacks[0] != "core" {
		t.Fatalf("unexpected default stacks: %v", cfg.Stacks)
	}
}

func TestLoad_PrecedenceCLIOverEnvOverFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "vibec.json"), `{"apiModel": "from-file", "retries": 1}`)

	environ := []string{"VIBEC_API_MODEL=from-env", "VIBEC_RETRIES=2"}
	cfg, err := Load(environ, Layer{WorkDir: strPtr(dir)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIModel != "from-env" {
		t.Fatalf("expected env to beat file, got %q", cfg.APIModel)
	}
	if cfg.Retries != 2 {
		t.Fatalf("expected env retries 2, got %d", cfg.Retries)
	}

	cfg2, err := Load(environ, Layer{WorkDir: strPtr(dir), APIModel: strPtr("from-cli"), Retries: intPtr(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg2.APIModel != "from-cli" {
		t.Fatalf("expected cli to beat env, got %q", cfg2.APIModel)
	}
	if cfg2.Retries != 5 {
		t.Fatalf("expected cli retries 5, got %d", cfg2.Retries)
	}
}

func TestLoad_MalformedJSONIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "vibec.json"), `{not valid json`)
	if _, err := Load(nil, Layer{WorkDir: strPtr(dir)}); err == nil {
		t.Fatal("expected error for malformed vibec.json")
	}
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(nil, Layer{WorkDir: strPtr(dir)}); err != nil {
		t.Fatalf("unexpected error for absent config file: %v", err)
	}
}

func TestLoad_InvalidIterationsRejected(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(nil, Layer{WorkDir: strPtr(dir), Iterations: intPtr(0)}); err == nil {
		t.Fatal("expected error for iterations < 1")
	}
}

func TestLoad_StacksFromEnvIsCommaSeparated(t *testing.T) {
	dir := t.TempDir()
	environ := []string{"VIBEC_STACKS=core, extras ,third"}
	cfg, err := Load(environ, Layer{WorkDir: strPtr(dir)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"core", "extras", "third"}
	if len(cfg.Stacks) != len(want) {
		t.Fatalf("unexpected stacks: %v", cfg.Stacks)
	}
	for i, s := range want {
		if cfg.Stacks[i] != s {
			t.Fatalf("unexpected stacks: %v", cfg.Stacks)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
