// Package main provides the arox CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"arox/internal/agent"
	"arox/internal/chat"
	"arox/internal/config"
	"arox/internal/llm"
	"arox/internal/project"
	"arox/internal/store"
	"arox/internal/termio"
)

var (
	configPath string
	workspace  string
	modelRef   string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arox",
	Short: "arox - interactive LLM coding/chat agent",
	Long: `arox is an interactive LLM coding agent.

It owns the conversation transcript, decides which context (files,
repository map, model-specific prompts) to inject before each model
call, and exposes slash commands (/add, /drop, /model, /save, /reset,
/info, /invoke-tool, ...) that mutate that state out of band.

Run without arguments to start the interactive chat loop; Ctrl-D ends
the session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "arox.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&modelRef, "model", "m", "", "Model reference (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if workspace != "" {
		cfg.Workspace = workspace
	}
	if modelRef != "" {
		cfg.Agent.ModelRef = modelRef
	}
	ws, err := cfg.ResolveWorkspace()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey, logger)
	if err != nil {
		return fmt.Errorf("no completion client (set AROX_API_KEY or GEMINI_API_KEY): %w", err)
	}

	pm := project.NewManager(ws, logger)
	params := chat.Params{
		Workspace:    ws,
		SystemPrompt: cfg.Agent.SystemPrompt,
		ModelRef:     cfg.Agent.ModelRef,
		ModelPrompts: modelPrompts(cfg),
		Logger:       logger,
	}
	var state *chat.State
	if cfg.Agent.Coder {
		state = chat.NewCoderState(params, pm, cfg.Agent.RepoMap).State
	} else {
		state = chat.NewState(params)
	}

	var history *store.HistoryStore
	if p := cfg.HistoryPath(ws); p != "" {
		history, err = store.Open(p, logger)
		if err != nil {
			logger.Warn("session history disabled", zap.Error(err))
			history = nil
		} else {
			defer history.Close()
		}
	}

	ag, err := agent.New(agent.Options{
		Name:        cfg.Agent.Name,
		Workspace:   ws,
		ModelParams: cfg.Agent.ModelParams,
		MaxRounds:   cfg.Agent.MaxRounds,
		Channel:     termio.NewTextChannel(os.Stdin, os.Stdout),
		State:       state,
		Client:      client,
		History:     history,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// The watcher re-marks committed context files pending when they
	// change on disk; it stops when the agent loop ends.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, _ := errgroup.WithContext(loopCtx)
	if watcher, werr := project.NewWatcher(ws, state.Files(), logger); werr != nil {
		logger.Warn("file watcher disabled", zap.Error(werr))
	} else {
		g.Go(func() error { return watcher.Run(loopCtx) })
	}
	g.Go(func() error {
		defer cancel()
		return ag.Start(loopCtx)
	})
	return g.Wait()
}

func modelPrompts(cfg *config.Config) []chat.ModelPrompt {
	out := make([]chat.ModelPrompt, 0, len(cfg.Agent.ModelPrompt))
	for _, mp := range cfg.Agent.ModelPrompt {
		out = append(out, chat.ModelPrompt{Prompt: mp.Prompt, Pattern: mp.Pattern})
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
