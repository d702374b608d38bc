// Package doctor summarizes the last failed stage deterministically: the
// failing prompt's declared outputs, captured test output, and timing,
// without any further LLM call (SPEC_FULL.md §C — vibec's doctor never
// invokes the model a second time; its core stays offline-safe).
package doctor

import (
	"fmt"
	"strings"

	"github.com/strawberry-computer/vibec/internal/promptstore"
	"github.com/strawberry-computer/vibec/internal/runstate"
	"github.com/strawberry-computer/vibec/internal/ux"
)

const maxOutputLines = 200

// Run prints a deterministic diagnosis of the run's last failure, or a
// "nothing to diagnose" message if the last run did not fail.
func Run(artifactsDir string, st *runstate.State, prompts []promptstore.Prompt) error {
	if st.Status != runstate.StatusFailed && st.Status != runstate.StatusInterrupted {
		fmt.Println("No failed run to diagnose.")
		return nil
	}

	var failed *promptstore.Prompt
	for i := range prompts {
		if prompts[i].Basename == st.FailedPrompt {
			failed = &prompts[i]
			break
		}
	}
	if failed == nil {
		return fmt.Errorf("doctor: failed prompt %q not found among configured stacks", st.FailedPrompt)
	}

	fmt.Printf("\n%s%s══ Doctor: stage %d (%s/%s) ══%s\n\n",
		ux.Bold, ux.Cyan, failed.Number, failed.Stack, failed.Basename, ux.Reset)

	fmt.Printf("%sDeclared outputs:%s %s\n", ux.Bold, ux.Reset, strings.Join(failed.Outputs, ", "))

	feedback, err := runstate.ReadFeedback(artifactsDir, failed.Basename)
	if err != nil {
		return fmt.Errorf("doctor: reading feedback: %w", err)
	}
	fmt.Printf("\n%sCaptured test output (last %d lines):%s\n%s\n", ux.Bold, maxOutputLines, ux.Reset, truncate(feedback, maxOutputLines))

	if timing, err := runstate.LoadTiming(artifactsDir); err == nil {
		if t := gatherTiming(timing, failed.Basename); t != "" {
			fmt.Printf("\n%sTiming:%s %s\n", ux.Bold, ux.Reset, t)
		}
	}

	fmt.Println()
	ux.ResumeHint(st.RunID)
	return nil
}

func truncate(text string, maxLines int) string {
	if text == "" {
		return "(no captured output)"
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	lines = lines[len(lines)-maxLines:]
	return fmt.Sprintf("... (truncated to last %d lines)\n%s", maxLines, strings.Join(lines, "\n"))
}

func gatherTiming(timing *runstate.Timing, stage string) string {
	for i := len(timing.Entries) - 1; i >= 0; i-- {
		e := timing.Entries[i]
		if e.Stage != stage {
			continue
		}
		if e.Duration != "" {
			return fmt.Sprintf("started %s, duration %s", e.Start.Format("15:04:05"), e.Duration)
		}
		return fmt.Sprintf("started %s (did not complete)", e.Start.Format("15:04:05"))
	}
	return ""
}

