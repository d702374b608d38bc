// Package cliconfig merges configuration from CLI flags, environment
// variables, a vibec.json file, and built-in defaults, in that precedence
// order (CLI > environment > file > defaults).
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the fully-resolved, immutable configuration for one engine
// invocation.
type Config struct {
	WorkDir       string
	Stacks        []string
	DryRun        bool
	Start         int
	End           int
	APIURL        string
	APIKey        string
	APIModel      string
	TestCmd       string
	Retries       int
	Iterations    int
	PluginTimeout time.Duration
	Output        string
}

// Layer carries optionally-set values from a single configuration source.
// A nil field means "not provided by this source".
type Layer struct {
	WorkDir       *string
	Stacks        []string
	DryRun        *bool
	Start         *int
	End           *int
	APIURL        *string
	APIKey        *string
	APIModel      *string
	TestCmd       *string
	Retries       *int
	Iterations    *int
	PluginTimeout *int // milliseconds
	Output        *string
}

// Defaults returns the built-in configuration values from spec §6.
func Defaults() Config {
	return Config{
		WorkDir:       ".",
		Stacks:        []string{"core"},
		APIURL:        "https://openrouter.ai/api/v1",
		APIModel:      "anthropic/claude-3.7-sonnet",
		Iterations:    2,
		PluginTimeout: 5000 * time.Millisecond,
		Output:        "output",
	}
}

func (c *Config) apply(l Layer) {
	if l.WorkDir != nil {
		c.WorkDir = *l.WorkDir
	}
	if l.Stacks != nil {
		c.Stacks = l.Stacks
	}
	if l.DryRun != nil {
		c.DryRun = *l.DryRun
	}
	if l.Start != nil {
		c.Start = *l.Start
	}
	if l.End != nil {
		c.End = *l.End
	}
	if l.APIURL != nil {
		c.APIURL = *l.APIURL
	}
	if l.APIKey != nil {
		c.APIKey = *l.APIKey
	}
	if l.APIModel != nil {
		c.APIModel = *l.APIModel
	}
	if l.TestCmd != nil {
		c.TestCmd = *l.TestCmd
	}
	if l.Retries != nil {
		c.Retries = *l.Retries
	}
	if l.Iterations != nil {
		c.Iterations = *l.Iterations
	}
	if l.PluginTimeout != nil {
		c.PluginTimeout = time.Duration(*l.PluginTimeout) * time.Millisecond
	}
	if l.Output != nil {
		c.Output = *l.Output
	}
}

// Load resolves a Config from the config file under the winning workdir,
// the process environment, and the CLI layer, applied in ascending
// precedence (file, then env, then cli).
func Load(environ []string, cli Layer) (*Config, error) {
	cfg := Defaults()

	el, err := loadEnvLayer(environ)
	if err != nil {
		return nil, err
	}

	workdir := cfg.WorkDir
	if el.WorkDir != nil {
		workdir = *el.WorkDir
	}
	if cli.WorkDir != nil {
		workdir = *cli.WorkDir
	}

	fl, err := loadFileLayer(filepath.Join(workdir, "vibec.json"))
	if err != nil {
		return nil, err
	}

	cfg.apply(fl)
	cfg.apply(el)
	cfg.apply(cli)
	cfg.WorkDir = workdir

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type fileConfig struct {
	WorkDir       *string  `json:"workdir"`
	Stacks        []string `json:"stacks"`
	DryRun        *bool    `json:"dryRun"`
	Start         *int     `json:"start"`
	End           *int     `json:"end"`
	APIURL        *string  `json:"apiUrl"`
	APIKey        *string  `json:"apiKey"`
	APIModel      *string  `json:"apiModel"`
	TestCmd       *string  `json:"testCmd"`
	Retries       *int     `json:"retries"`
	Iterations    *int     `json:"iterations"`
	PluginTimeout *int     `json:"pluginTimeout"`
	Output        *string  `json:"output"`
}

// loadFileLayer reads vibec.json. A missing file is silently ignored;
// malformed JSON is a fatal InvalidConfig error (spec §6, §7).
func loadFileLayer(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Layer{}, nil
		}
		return Layer{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return Layer{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return Layer{
		WorkDir: fc.WorkDir, Stacks: fc.Stacks, DryRun: fc.DryRun,
		Start: fc.Start, End: fc.End, APIURL: fc.APIURL, APIKey: fc.APIKey,
		APIModel: fc.APIModel, TestCmd: fc.TestCmd, Retries: fc.Retries,
		Iterations: fc.Iterations, PluginTimeout: fc.PluginTimeout, Output: fc.Output,
	}, nil
}

// loadEnvLayer reads VIBEC_<UPPER_SNAKE> environment variables out of a
// process-environment-shaped slice ("KEY=VALUE" entries, as from os.Environ).
func loadEnvLayer(environ []string) (Layer, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	var l Layer
	if v, ok := env["VIBEC_WORKDIR"]; ok {
		l.WorkDir = &v
	}
	if v, ok := env["VIBEC_STACKS"]; ok {
		var stacks []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				stacks = append(stacks, s)
			}
		}
		l.Stacks = stacks
	}
	if v, ok := env["VIBEC_DRY_RUN"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Layer{}, fmt.Errorf("config: invalid VIBEC_DRY_RUN %q: %w", v, err)
		}
		l.DryRun = &b
	}
	if n, err := envInt(env, "VIBEC_START"); err != nil {
		return Layer{}, err
	} else if n != nil {
		l.Start = n
	}
	if n, err := envInt(env, "VIBEC_END"); err != nil {
		return Layer{}, err
	} else if n != nil {
		l.End = n
	}
	if v, ok := env["VIBEC_API_URL"]; ok {
		l.APIURL = &v
	}
	if v, ok := env["VIBEC_API_KEY"]; ok {
		l.APIKey = &v
	}
	if v, ok := env["VIBEC_API_MODEL"]; ok {
		l.APIModel = &v
	}
	if v, ok := env["VIBEC_TEST_CMD"]; ok {
		l.TestCmd = &v
	}
	if n, err := envInt(env, "VIBEC_RETRIES"); err != nil {
		return Layer{}, err
	} else if n != nil {
		l.Retries = n
	}
	if n, err := envInt(env, "VIBEC_ITERATIONS"); err != nil {
		return Layer{}, err
	} else if n != nil {
		l.Iterations = n
	}
	if n, err := envInt(env, "VIBEC_PLUGIN_TIMEOUT"); err != nil {
		return Layer{}, err
	} else if n != nil {
		l.PluginTimeout = n
	}
	if v, ok := env["VIBEC_OUTPUT"]; ok {
		l.Output = &v
	}
	return l, nil
}

func envInt(env map[string]string, key string) (*int, error) {
	v, ok := env[key]
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return &n, nil
}

// validate checks range constraints from spec §6's configuration table.
func validate(c *Config) error {
	if len(c.Stacks) == 0 {
		return fmt.Errorf("config: 'stacks' must not be empty")
	}
	if c.Start < 0 {
		return fmt.Errorf("config: 'start' must be >= 0")
	}
	if c.End < 0 {
		return fmt.Errorf("config: 'end' must be >= 0")
	}
	if c.Start > 0 && c.End > 0 && c.Start > c.End {
		return fmt.Errorf("config: 'start' (%d) must be <= 'end' (%d)", c.Start, c.End)
	}
	if c.Retries < 0 {
		return fmt.Errorf("config: 'retries' must be >= 0")
	}
	if c.Iterations < 1 {
		return fmt.Errorf("config: 'iterations' must be >= 1")
	}
	if c.PluginTimeout <= 0 {
		return fmt.Errorf("config: 'pluginTimeout' must be > 0")
	}
	if c.Output == "" {
		return fmt.Errorf("config: 'output' must not be empty")
	}
	return nil
}
