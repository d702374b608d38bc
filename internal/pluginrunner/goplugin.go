// +build !windows

package pluginrunner

import (
	"fmt"
	"plugin"
)

// LoadGoPlugin loads a dynamic plugin compiled as a Go plugin (.so). The
// plugin must export a package-level function named "New" whose type is
// exactly `func() pluginrunner.Plugin`; a New returning any other type,
// even one with the same method set, is rejected. This is the idiomatic Go analog of a dynamically loadable
// module: a side-effecting capability the host invokes by name, the same
// way the source ecosystem's dynamic plugin contract calls a loaded
// function with a context argument and no propagated return text.
func LoadGoPlugin(path string) (Plugin, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pluginrunner: opening %s: %w", path, err)
	}
	sym, err := p.Lookup("New")
	if err != nil {
		return nil, fmt.Errorf("pluginrunner: %s missing New symbol: %w", path, err)
	}
	ctor, ok := sym.(func() Plugin)
	if !ok {
		return nil, fmt.Errorf("pluginrunner: %s New has wrong signature, want func() pluginrunner.Plugin", path)
	}
	return ctor(), nil
}
