// Command vibecc drives the Stage Engine, the Bootstrap Driver, and the
// operator-facing status/doctor/watch subcommands described in spec.md.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/strawberry-computer/vibec/internal/bootstrap"
	"github.com/strawberry-computer/vibec/internal/cliconfig"
	"github.com/strawberry-computer/vibec/internal/doctor"
	"github.com/strawberry-computer/vibec/internal/llmclient"
	"github.com/strawberry-computer/vibec/internal/pluginrunner"
	"github.com/strawberry-computer/vibec/internal/promptstore"
	"github.com/strawberry-computer/vibec/internal/runstate"
	"github.com/strawberry-computer/vibec/internal/stageengine"
	"github.com/strawberry-computer/vibec/internal/ux"
	"github.com/strawberry-computer/vibec/internal/watch"
	"github.com/strawberry-computer/vibec/internal/workspace"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	app := &cli.Command{
		Name:        "vibecc",
		Usage:       "Self-bootstrapping, prompt-driven code generator",
		Description: "vibecc compiles a stack of numbered prompts into generated source, one stage at a time.",
		Commands: []*cli.Command{
			compileCmd(),
			bootstrapCmd(),
			statusCmd(),
			doctorCmd(),
			watchCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand that resolves a cliconfig.Config.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "workdir", Usage: "project root containing stacks/ and vibec.json"},
		&cli.StringSliceFlag{Name: "stack", Usage: "stack to compile (repeatable)"},
		&cli.BoolFlag{Name: "dry-run", Usage: "skip network calls, use the built-in LLM fixture"},
		&cli.IntFlag{Name: "start", Usage: "first stage number to run (inclusive)"},
		&cli.IntFlag{Name: "end", Usage: "last stage number to run (inclusive)"},
		&cli.StringFlag{Name: "api-url", Usage: "chat-completion endpoint base URL"},
		&cli.StringFlag{Name: "api-key", Usage: "API key for the LLM endpoint"},
		&cli.StringFlag{Name: "api-model", Usage: "model identifier to request"},
		&cli.StringFlag{Name: "test-cmd", Usage: "shell command run after each stage's artifacts are written"},
		&cli.IntFlag{Name: "retries", Usage: "LLM completion retry count"},
		&cli.IntFlag{Name: "iterations", Usage: "max attempts per prompt before giving up"},
		&cli.IntFlag{Name: "plugin-timeout", Usage: "per-plugin timeout, in milliseconds"},
		&cli.StringFlag{Name: "output", Usage: "output directory, relative to workdir"},
	}
}

// layerFromCmd builds a cliconfig.Layer from whichever common flags were
// explicitly set on the command line.
func layerFromCmd(cmd *cli.Command) cliconfig.Layer {
	var l cliconfig.Layer
	if cmd.IsSet("workdir") {
		v := cmd.String("workdir")
		l.WorkDir = &v
	}
	if cmd.IsSet("stack") {
		l.Stacks = cmd.StringSlice("stack")
	}
	if cmd.IsSet("dry-run") {
		v := cmd.Bool("dry-run")
		l.DryRun = &v
	}
	if cmd.IsSet("start") {
		v := int(cmd.Int("start"))
		l.Start = &v
	}
	if cmd.IsSet("end") {
		v := int(cmd.Int("end"))
		l.End = &v
	}
	if cmd.IsSet("api-url") {
		v := cmd.String("api-url")
		l.APIURL = &v
	}
	if cmd.IsSet("api-key") {
		v := cmd.String("api-key")
		l.APIKey = &v
	}
	if cmd.IsSet("api-model") {
		v := cmd.String("api-model")
		l.APIModel = &v
	}
	if cmd.IsSet("test-cmd") {
		v := cmd.String("test-cmd")
		l.TestCmd = &v
	}
	if cmd.IsSet("retries") {
		v := int(cmd.Int("retries"))
		l.Retries = &v
	}
	if cmd.IsSet("iterations") {
		v := int(cmd.Int("iterations"))
		l.Iterations = &v
	}
	if cmd.IsSet("plugin-timeout") {
		v := int(cmd.Int("plugin-timeout"))
		l.PluginTimeout = &v
	}
	if cmd.IsSet("output") {
		v := cmd.String("output")
		l.Output = &v
	}
	return l
}

func loadConfig(cmd *cli.Command) (*cliconfig.Config, error) {
	return cliconfig.Load(os.Environ(), layerFromCmd(cmd))
}

// newLogger builds the zap logger threaded through the engine, plugin
// runner, and LLM client. VIBEC_DEBUG=1 lowers the level to debug.
func newLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if os.Getenv("VIBEC_DEBUG") == "1" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Sugar(), nil
}

func artifactsDirFor(cfg *cliconfig.Config) string {
	return filepath.Join(cfg.WorkDir, cfg.Output, "artifacts")
}

func outputRootFor(cfg *cliconfig.Config) string {
	return filepath.Join(cfg.WorkDir, cfg.Output)
}

func compileCmd() *cli.Command {
	return &cli.Command{
		Name:  "compile",
		Usage: "Run the Stage Engine over a prompt stack",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			return runCompile(ctx, cfg, log)
		},
	}
}

func runCompile(ctx context.Context, cfg *cliconfig.Config, log *zap.SugaredLogger) error {
	outputRoot := outputRootFor(cfg)
	if err := workspace.Initialize(outputRoot); err != nil {
		return err
	}

	prompts, err := promptstore.ListPrompts(cfg.WorkDir, cfg.Stacks)
	if err != nil {
		return err
	}

	if cfg.Start > 0 {
		if err := workspace.Reconstruct(outputRoot, prompts, cfg.Start); err != nil {
			return err
		}
	}

	llmCfg := llmclient.Config{
		APIURL:   cfg.APIURL,
		APIKey:   cfg.APIKey,
		APIModel: cfg.APIModel,
		DryRun:   cfg.DryRun,
		Retries:  cfg.Retries,
	}
	if err := llmclient.Preflight(llmCfg); err != nil {
		return err
	}

	runID := uuid.New().String()
	engine := &stageengine.Engine{
		LLM:           llmclient.New(llmCfg, http.DefaultClient, log),
		PluginLoader:  pluginrunner.Loader(pluginrunner.LoadGoPlugin),
		PromptsRoot:   cfg.WorkDir,
		OutputRoot:    outputRoot,
		ArtifactsDir:  artifactsDirFor(cfg),
		TestCmd:       cfg.TestCmd,
		Iterations:    cfg.Iterations,
		PluginTimeout: cfg.PluginTimeout,
		Log:           log,
		RunID:         runID,
		DryRun:        cfg.DryRun,
	}

	outcomes, runErr := engine.Run(ctx, prompts, cfg.Start, cfg.End)
	for i, o := range outcomes {
		ux.StageHeader(i, len(outcomes), o.Prompt.Stack, o.Prompt.Basename)
		if o.Success {
			ux.StageComplete(i, 0)
		} else {
			ux.StageFail(i, o.Prompt.Basename, "tests did not pass")
		}
	}

	if runErr != nil {
		ux.ResumeHint(runID)
		return runErr
	}

	ux.Success(len(outcomes))
	return nil
}

func bootstrapCmd() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{Name: "seed-dir", Usage: "directory containing the fixed seed compiler", Required: true},
		&cli.StringFlag{Name: "compiler-name", Value: "vibecc", Usage: "compiler binary name under bin/"},
		&cli.StringFlag{Name: "test-runner", Usage: "optional test runner script name"},
	)
	return &cli.Command{
		Name:  "bootstrap",
		Usage: "Run the self-hosting bootstrap sequence",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			prompts, err := promptstore.ListPrompts(cfg.WorkDir, cfg.Stacks)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			opts := bootstrap.Options{
				ProjectRoot:  cfg.WorkDir,
				Output:       cfg.Output,
				OutputRoot:   outputRootFor(cfg),
				SeedDir:      cmd.String("seed-dir"),
				CompilerName: cmd.String("compiler-name"),
				TestRunner:   cmd.String("test-runner"),
				Stacks:       cfg.Stacks,
				TestCmd:      cfg.TestCmd,
				Start:        cfg.Start,
				End:          cfg.End,
			}
			return bootstrap.Run(ctx, opts, prompts, log)
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the persisted run state",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			prompts, err := promptstore.ListPrompts(cfg.WorkDir, cfg.Stacks)
			if err != nil {
				return err
			}
			artifactsDir := artifactsDirFor(cfg)
			st, err := runstate.Load(artifactsDir)
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			ux.RenderStatus(st, prompts, artifactsDir)
			return nil
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Deterministically summarize the last failed stage",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			prompts, err := promptstore.ListPrompts(cfg.WorkDir, cfg.Stacks)
			if err != nil {
				return err
			}
			artifactsDir := artifactsDirFor(cfg)
			st, err := runstate.Load(artifactsDir)
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			return doctor.Run(artifactsDir, st, prompts)
		},
	}
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Re-run the Stage Engine whenever a prompt file changes",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			return watch.Watch(ctx, cfg.WorkDir, cfg.Stacks, log, func(ctx context.Context) error {
				return runCompile(ctx, cfg, log)
			})
		},
	}
}
