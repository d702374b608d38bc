// Package promptstore enumerates prompt files and plugin files under a
// stacks root and establishes the global processing order (spec §4.1).
package promptstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var promptNameRe = regexp.MustCompile(`^(\d+)_[^/]+\.md$`)

// Prompt is one ordered compilation step: identity (stack, number) plus the
// directives parsed out of its raw text.
type Prompt struct {
	Stack    string
	Number   int
	Path     string // absolute source path
	Basename string // filename without extension, used as the snapshot dir name
	Raw      string
	Outputs  []string // from "## Output:" lines, accumulated
	Context  []string // from a "## Context:" line, comma-split
}

// StaticPlugin is a textual fragment appended verbatim to every prompt in
// its stack.
type StaticPlugin struct {
	Name string
	Text string
}

// DynamicPlugin is a loadable side-effectful hook, identified by filename.
type DynamicPlugin struct {
	Name    string
	Path    string
	Timeout time.Duration // zero means the caller's default applies
}

// pluginManifest is the optional manifest.yaml sitting alongside a stack's
// dynamic plugins. It lets an operator override the default filename-sort
// execution order and tighten or relax the per-plugin timeout, the same way
// the teacher's config.Load unmarshals a structured file and layers it over
// built-in defaults.
type pluginManifest struct {
	Order    []string          `yaml:"order"`
	Timeouts map[string]string `yaml:"timeouts"`
}

// loadPluginManifest reads manifest.yaml from a plugins directory. A
// missing manifest is not an error; ListPlugins falls back to filename
// order and caller-supplied default timeouts.
func loadPluginManifest(dir string) (pluginManifest, error) {
	path := filepath.Join(dir, "manifest.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pluginManifest{}, nil
		}
		return pluginManifest{}, fmt.Errorf("promptstore: reading plugin manifest %q: %w", path, err)
	}
	var m pluginManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return pluginManifest{}, fmt.Errorf("promptstore: parsing plugin manifest %q: %w", path, err)
	}
	return m, nil
}

// applyManifest reorders dynamic plugins per manifest.Order (manifest
// entries first, in listed order; anything unlisted keeps its existing
// relative order appended after) and attaches any per-plugin timeout
// override.
func applyManifest(dyn []DynamicPlugin, m pluginManifest) []DynamicPlugin {
	if len(m.Order) == 0 && len(m.Timeouts) == 0 {
		return dyn
	}

	byName := make(map[string]DynamicPlugin, len(dyn))
	for _, d := range dyn {
		if s, ok := m.Timeouts[d.Name]; ok {
			if parsed, err := time.ParseDuration(s); err == nil {
				d.Timeout = parsed
			}
		}
		byName[d.Name] = d
	}

	var ordered []DynamicPlugin
	seen := make(map[string]bool, len(dyn))
	for _, name := range m.Order {
		if d, ok := byName[name]; ok && !seen[name] {
			ordered = append(ordered, d)
			seen[name] = true
		}
	}
	for _, d := range dyn {
		if !seen[d.Name] {
			ordered = append(ordered, d)
			seen[d.Name] = true
		}
	}
	return ordered
}

// ListPrompts scans stacks/<stack>/ for each configured stack, parses
// directives out of every matching prompt file, and returns the union
// sorted ascending by stage number, stable by stack order then filename.
func ListPrompts(root string, stacks []string) ([]Prompt, error) {
	var all []Prompt
	for _, stack := range stacks {
		dir := filepath.Join(root, "stacks", stack)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("promptstore: reading stack %q: %w", stack, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			m := promptNameRe.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			number, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			path := filepath.Join(dir, e.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("promptstore: reading prompt %q: %w", path, err)
			}
			outputs, context := parseDirectives(string(raw))
			all = append(all, Prompt{
				Stack:    stack,
				Number:   number,
				Path:     path,
				Basename: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
				Raw:      string(raw),
				Outputs:  outputs,
				Context:  context,
			})
		}
	}

	stackOrder := make(map[string]int, len(stacks))
	for i, s := range stacks {
		stackOrder[s] = i
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Number != all[j].Number {
			return all[i].Number < all[j].Number
		}
		if stackOrder[all[i].Stack] != stackOrder[all[j].Stack] {
			return stackOrder[all[i].Stack] < stackOrder[all[j].Stack]
		}
		return all[i].Basename < all[j].Basename
	})
	return all, nil
}

// ListPlugins scans stacks/<stack>/plugins/ and classifies entries by
// extension: ".md" is static text, ".so" is a dynamic loadable plugin (the
// idiomatic Go analog of a loadable function-valued artifact; see
// pluginrunner). A missing plugins directory yields empty lists, not an
// error.
func ListPlugins(root, stack string) ([]StaticPlugin, []DynamicPlugin, error) {
	dir := filepath.Join(root, "stacks", stack, "plugins")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("promptstore: reading plugins for stack %q: %w", stack, err)
	}

	var staticNames, dynamicNames []string
	staticText := map[string]string{}
	dynamicPath := map[string]string{}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch filepath.Ext(name) {
		case ".md":
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("promptstore: reading static plugin %q: %w", path, err)
			}
			staticText[name] = string(data)
			staticNames = append(staticNames, name)
		case ".so":
			dynamicPath[name] = filepath.Join(dir, name)
			dynamicNames = append(dynamicNames, name)
		}
	}

	sort.Strings(staticNames)
	sort.Strings(dynamicNames)

	statics := make([]StaticPlugin, 0, len(staticNames))
	for _, n := range staticNames {
		statics = append(statics, StaticPlugin{Name: n, Text: staticText[n]})
	}
	dynamics := make([]DynamicPlugin, 0, len(dynamicNames))
	for _, n := range dynamicNames {
		dynamics = append(dynamics, DynamicPlugin{Name: n, Path: dynamicPath[n]})
	}

	manifest, err := loadPluginManifest(dir)
	if err != nil {
		return nil, nil, err
	}
	dynamics = applyManifest(dynamics, manifest)

	return statics, dynamics, nil
}

// parseDirectives extracts "## Context:" and "## Output:" directive lines.
// Each must be on its own line; multiple "## Output:" lines accumulate.
func parseDirectives(raw string) (outputs []string, context []string) {
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "## Context:"):
			rest := strings.TrimPrefix(line, "## Context:")
			for _, part := range strings.Split(rest, ",") {
				if part = strings.TrimSpace(part); part != "" {
					context = append(context, part)
				}
			}
		case strings.HasPrefix(line, "## Output:"):
			if rest := strings.TrimSpace(strings.TrimPrefix(line, "## Output:")); rest != "" {
				outputs = append(outputs, rest)
			}
		}
	}
	return outputs, context
}
