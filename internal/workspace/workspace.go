// Package workspace persists generated artifacts and maintains the merged
// "current" workspace directory (spec §4.6).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/strawberry-computer/vibec/internal/promptstore"
)

// Artifact is one file extracted from an LLM completion, ready to be
// persisted into both a per-prompt snapshot and the merged current tree.
type Artifact struct {
	Path    string
	Content string
}

// Initialize ensures <outputRoot>/current exists, seeding it from
// <outputRoot>/bootstrap if that directory is present.
func Initialize(outputRoot string) error {
	current := filepath.Join(outputRoot, "current")
	if err := os.MkdirAll(current, 0755); err != nil {
		return fmt.Errorf("workspace: creating current: %w", err)
	}

	bootstrapDir := filepath.Join(outputRoot, "bootstrap")
	info, err := os.Stat(bootstrapDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("workspace: checking bootstrap dir: %w", err)
	}
	if !info.IsDir() {
		return nil
	}
	return copyTree(bootstrapDir, current)
}

// Write persists each artifact at both its stack/prompt snapshot location
// and the merged current location, using byte-exact content and atomic
// writes. After Write, snapshot and current hold identical bytes for every
// artifact path (spec §4.6 invariant).
func Write(artifacts []Artifact, stack, promptBasename, outputRoot string) error {
	snapshotDir := filepath.Join(outputRoot, "stacks", stack, promptBasename)
	currentDir := filepath.Join(outputRoot, "current")

	for _, a := range artifacts {
		if err := writeOne(filepath.Join(snapshotDir, a.Path), a.Content); err != nil {
			return fmt.Errorf("workspace: writing snapshot %s: %w", a.Path, err)
		}
		if err := writeOne(filepath.Join(currentDir, a.Path), a.Content); err != nil {
			return fmt.Errorf("workspace: writing current %s: %w", a.Path, err)
		}
	}
	return nil
}

// Reconstruct rebuilds current by replaying all stage snapshots whose stage
// number is strictly less than startStage, in ascending (number, stack
// order, filename) order across the given stacks, each replay overwriting
// existing files (Last-Wins). Used when the engine starts at a stage past
// the first so context files resolve correctly.
func Reconstruct(outputRoot string, prompts []promptstore.Prompt, startStage int) error {
	current := filepath.Join(outputRoot, "current")
	if err := os.RemoveAll(current); err != nil {
		return fmt.Errorf("workspace: clearing current: %w", err)
	}
	if err := Initialize(outputRoot); err != nil {
		return err
	}

	for _, p := range prompts {
		if p.Number >= startStage {
			continue
		}
		snapshotDir := filepath.Join(outputRoot, "stacks", p.Stack, p.Basename)
		if _, err := os.Stat(snapshotDir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("workspace: checking snapshot %s: %w", snapshotDir, err)
		}
		if err := copyTree(snapshotDir, current); err != nil {
			return fmt.Errorf("workspace: replaying snapshot %s: %w", snapshotDir, err)
		}
	}
	return nil
}

// writeOne writes content to path atomically: create parents, write to a
// uuid-suffixed temp file in the same directory, then rename over the
// target.
func writeOne(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.New().String()+".tmp")
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// copyTree copies every regular file under src into dst, preserving
// relative paths and overwriting existing files.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return writeOne(target, string(data))
	})
}
