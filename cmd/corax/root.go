package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"corax/internal/agent"
	"corax/internal/config"
	"corax/internal/llm"
	"corax/internal/memory"
	"corax/internal/observability"
)

var version = "dev"

type rootOptions struct {
	strategy string
	model    string
	baseURL  string
	verbose  bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "corax",
		Short:         "corax is a tag-protocol reasoning agent",
		Long:          "corax runs ReAct and CoAct reasoning loops over any OpenAI-compatible model,\nexposing tool use and planning progress as a live event stream.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.strategy, "strategy", "", "reasoning strategy: react or coact")
	flags.StringVar(&opts.model, "model", "", "model name")
	flags.StringVar(&opts.baseURL, "base-url", "", "OpenAI-compatible API base URL")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newChatCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the corax version",
		Run: func(*cobra.Command, []string) {
			fmt.Println("corax " + version)
		},
	})
	return cmd
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}
}

// buildRuntime resolves config, applies flag overrides and assembles the
// runtime with its model client, memory store and builtin tools.
func buildRuntime(opts *rootOptions) (*agent.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.strategy != "" {
		cfg.Strategy = opts.strategy
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.verbose {
		cfg.Verbose = true
	}

	level := observability.LevelWarn
	if cfg.Verbose {
		level = observability.LevelDebug
	}
	logger := observability.NewLogger(os.Stderr, level)

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	client := llm.NewClient(llm.ClientOptions{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Logger:  logger,
	})

	store, err := memory.NewStore(memory.Options{
		Logger: logger,
		Dir:    cfg.MemoryDir,
	})
	if err != nil {
		return nil, err
	}

	rt, err := agent.New(agent.Config{
		Strategy:       agent.Strategy(cfg.Strategy),
		MaxIterations:  cfg.MaxIterations,
		TaskIterations: cfg.TaskIterations,
		MaxReplans:     cfg.MaxReplans,
	}, agent.Deps{
		LLM:     client,
		Tools:   newBuiltinTools(store),
		History: store,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build runtime: %w", err)
	}
	return rt, nil
}
