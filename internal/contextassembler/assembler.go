// Package contextassembler turns one prompt into the single string sent to
// the LLM Client: the raw prompt text, its resolved context files, any
// static plugin fragments, and optional prior test-failure feedback, folded
// into a repeated "sandwich" that places the system instruction and prompt
// body at both ends of the request (spec §4.2).
package contextassembler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/strawberry-computer/vibec/internal/promptstore"
	"github.com/strawberry-computer/vibec/internal/systemprompt"
	"go.uber.org/zap"
)

// TestFeedback carries the captured result of a failed test run, injected
// into the next iteration's assembled prompt.
type TestFeedback struct {
	ExitCode int
	Output   string
}

// Build assembles prompt.Raw plus its context/plugin/feedback blocks into
// the sandwiched string handed to the LLM Client. workspaceDir is the
// directory context-file references are resolved against. Missing context
// files are logged and skipped, never fatal.
func Build(log *zap.SugaredLogger, prompt promptstore.Prompt, workspaceDir string, staticPlugins []promptstore.StaticPlugin, feedback *TestFeedback) string {
	contextBlock := buildContextBlock(log, prompt.Context, workspaceDir)
	pluginBlock := buildPluginBlock(staticPlugins)
	feedbackBlock := buildFeedbackBlock(feedback)

	body := prompt.Raw + pluginBlock + feedbackBlock

	var b strings.Builder
	b.WriteString(systemprompt.Text)
	b.WriteString("\n\n")
	b.WriteString(body)
	if contextBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(contextBlock)
	}
	b.WriteString("\n\n")
	b.WriteString(systemprompt.Text)
	b.WriteString("\n\n")
	b.WriteString(body)
	return b.String()
}

func buildContextBlock(log *zap.SugaredLogger, names []string, workspaceDir string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	for _, name := range names {
		path := filepath.Join(workspaceDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if log != nil {
				log.Warnw("context file not found, skipping", "name", name, "error", err)
			}
			continue
		}
		fmt.Fprintf(&b, "File: %s\n```\n%s\n```\n", name, string(data))
	}
	return b.String()
}

func buildPluginBlock(plugins []promptstore.StaticPlugin) string {
	var b strings.Builder
	for _, p := range plugins {
		b.WriteString("\n")
		b.WriteString(p.Text)
	}
	return b.String()
}

func buildFeedbackBlock(feedback *TestFeedback) string {
	if feedback == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n## Prior test output (exit code %d):\n```\n%s\n```\n", feedback.ExitCode, feedback.Output)
	return b.String()
}
