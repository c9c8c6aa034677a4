package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/adapters/store"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/di"
)

var flags di.CLIFlags

func main() {
	// API keys usually live in .env; a missing file is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mail-sorter",
		Short:         "Sort mail senders into folders with rules, learned rules and an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	pf.StringVar(&flags.Provider, "provider", "", "LLM provider override (gemini, openai, bedrock)")
	pf.StringVar(&flags.StoreType, "store", "", "Store type override (sqlite, mysql, postgres, memory)")
	pf.StringVar(&flags.RuleSetPath, "rules-file", "", "Use this rule-set file instead of the configured repository")

	root.AddCommand(
		newClassifyCmd(),
		newApplyCmd(),
		newLearnCmd(),
		newGCCmd(),
		newRulesCmd(),
		newLearnedCmd(),
		newServeCmd(),
	)
	return root
}

// invoke builds the container, runs fn with its dependencies injected and releases
// the store and rule-set repository afterwards
func invoke(fn any) error {
	container, err := di.BuildCLIContainer(&flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	runErr := container.Invoke(fn)
	if err := container.Invoke(closeResources); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return dig.RootCause(runErr)
	}
	return nil
}

func closeResources(logger *zap.Logger, s store.Store, repo core.RuleSetRepository) {
	defer logger.Sync()

	if err := s.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}
	if closer, ok := repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close rule-set repository", zap.Error(err))
		}
	}
}
