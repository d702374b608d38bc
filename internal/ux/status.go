package ux

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/strawberry-computer/vibec/internal/promptstore"
	"github.com/strawberry-computer/vibec/internal/runstate"
)

// RenderStatus prints the full status display for a run: current position,
// completed/remaining prompts with per-stage durations, and a listing of
// the artifacts directory.
func RenderStatus(st *runstate.State, prompts []promptstore.Prompt, artifactsDir string) {
	timing, _ := runstate.LoadTiming(artifactsDir)

	fmt.Printf("%sRun:%s      %s\n", Bold, Reset, st.RunID)
	if st.Status == runstate.StatusCompleted {
		fmt.Printf("%sState:%s    %s%scompleted%s\n", Bold, Reset, Green, Bold, Reset)
	} else {
		fmt.Printf("%sState:%s    stage %d (%s/%s) — %s\n",
			Bold, Reset, st.StageNumber, st.Stack, st.PromptName, st.Status)
	}

	doneIdx := -1
	for i, p := range prompts {
		if p.Number == st.StageNumber && p.Stack == st.Stack && p.Basename == st.PromptName {
			doneIdx = i
			break
		}
	}

	if doneIdx > 0 {
		fmt.Printf("\n%sCompleted:%s\n", Bold, Reset)
		for i := 0; i < doneIdx; i++ {
			p := prompts[i]
			dur := findDuration(timing, p.Basename)
			fmt.Printf("  %s%d%s  %-20s %sdone%s  %s\n",
				Dim, p.Number, Reset, p.Stack+"/"+p.Basename, Green, Reset, dur)
		}
	}

	if doneIdx >= 0 {
		fmt.Printf("\n%sRemaining:%s\n", Bold, Reset)
		for i := doneIdx; i < len(prompts); i++ {
			p := prompts[i]
			marker := "  "
			if i == doneIdx {
				marker = fmt.Sprintf("%s→%s ", Yellow, Reset)
			}
			fmt.Printf("  %s%s%d%s  %-20s\n", marker, Dim, p.Number, Reset, p.Stack+"/"+p.Basename)
		}
	}

	fmt.Printf("\n%sArtifacts:%s\n", Bold, Reset)
	entries, err := os.ReadDir(artifactsDir)
	if err != nil {
		fmt.Printf("  %s(none)%s\n", Dim, Reset)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			subEntries, _ := os.ReadDir(filepath.Join(artifactsDir, e.Name()))
			if len(subEntries) > 0 {
				first := subEntries[0].Name()
				last := subEntries[len(subEntries)-1].Name()
				if first == last {
					fmt.Printf("  %s/%s/%s\n", artifactsDir, e.Name(), first)
				} else {
					fmt.Printf("  %s/%s/%s .. %s\n", artifactsDir, e.Name(), first, last)
				}
			}
		} else {
			fmt.Printf("  %s/%s\n", artifactsDir, e.Name())
		}
	}
	fmt.Println()
}

func findDuration(timing *runstate.Timing, stageLabel string) string {
	if timing == nil {
		return ""
	}
	for i := len(timing.Entries) - 1; i >= 0; i-- {
		if timing.Entries[i].Stage == stageLabel && timing.Entries[i].Duration != "" {
			return fmt.Sprintf("(%s)", timing.Entries[i].Duration)
		}
	}
	return ""
}
