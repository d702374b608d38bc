// Package systemprompt holds the single canonical instruction string sent to
// the LLM and embedded in the assembled-prompt sandwich.
package systemprompt

// Text is the instruction that tells the model the exact artifact grammar
// it must emit. It appears as the chat "system" message (see llmclient) and
// at both ends of the sandwich built by contextassembler.
const Text = "Generate code files in this exact format for each file: " +
	"File: path/to/file\n```lang\ncontent\n```. " +
	"Ensure every response includes ALL files requested in the prompt's `## Output:` sections. " +
	"Do not skip any requested outputs."
