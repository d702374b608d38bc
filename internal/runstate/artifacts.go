package runstate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates the run's bookkeeping directory structure under
// artifactsDir (distinct from the Workspace Manager's output tree).
func EnsureDir(artifactsDir string) error {
	dirs := []string{
		artifactsDir,
		filepath.Join(artifactsDir, "prompts"),
		filepath.Join(artifactsDir, "feedback"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating run dir %s: %w", d, err)
		}
	}
	return nil
}

// WriteFeedback records the captured test output that failed for a prompt,
// keyed by its basename, so the next iteration's retry can surface it.
func WriteFeedback(artifactsDir, promptBasename, content string) error {
	path := filepath.Join(artifactsDir, "feedback", fmt.Sprintf("from-%s.md", promptBasename))
	return writeFileAtomic(path, []byte(content), 0644)
}

// ReadFeedback returns the most recently written feedback for a prompt, or
// empty string if none exists yet.
func ReadFeedback(artifactsDir, promptBasename string) (string, error) {
	path := filepath.Join(artifactsDir, "feedback", fmt.Sprintf("from-%s.md", promptBasename))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// PromptPath returns the path a rendered prompt is persisted at for a given
// stage index, for operator inspection and doctor diagnostics.
func PromptPath(artifactsDir string, idx int) string {
	return filepath.Join(artifactsDir, "prompts", fmt.Sprintf("stage-%d.md", idx+1))
}
