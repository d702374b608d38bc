// Package fileblocks deterministically extracts file artifacts from an LLM
// completion (spec §4.5).
package fileblocks

import "strings"

// FileBlock represents a single extracted file from LLM output.
type FileBlock struct {
	Path    string
	Content string
}

// Parse extracts fenced code blocks of the form
//
//	File: path/to/file
//	```lang
//	content
//	```
//
// in order of appearance. The language tag is optional and ignored.
// Duplicates at the same path within one completion are allowed; the later
// occurrence's content supersedes, while the artifact keeps the position of
// its first occurrence (Last-Wins within a single response).
func Parse(text string) []FileBlock {
	lines := strings.Split(text, "\n")

	order := make([]string, 0)
	seen := make(map[string]int) // path -> index into order/content
	content := make(map[string]string)

	i := 0
	for i < len(lines) {
		line := lines[i]
		path, ok := matchFileHeader(line)
		if !ok {
			i++
			continue
		}
		// The next non-header line must open a fence; if it doesn't, this
		// "File:" line wasn't actually followed by a block and is skipped.
		if i+1 >= len(lines) || !isFenceOpen(lines[i+1]) {
			i++
			continue
		}

		var buf strings.Builder
		j := i + 2
		closed := false
		for j < len(lines) {
			if strings.TrimSpace(lines[j]) == "```" {
				closed = true
				break
			}
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(lines[j])
			j++
		}
		if !closed {
			// Unterminated fence: nothing further to parse as a block.
			i++
			continue
		}

		if _, exists := seen[path]; !exists {
			seen[path] = len(order)
			order = append(order, path)
		}
		content[path] = buf.String()

		i = j + 1
	}

	blocks := make([]FileBlock, 0, len(order))
	for _, path := range order {
		blocks = append(blocks, FileBlock{Path: path, Content: content[path]})
	}
	return blocks
}

func matchFileHeader(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	const prefix = "File:"
	if !strings.HasPrefix(trimmed, prefix) {
		return "", false
	}
	path := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
	if path == "" {
		return "", false
	}
	return path, true
}

func isFenceOpen(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```")
}
