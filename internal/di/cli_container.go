package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/logging"
)

// CLIFlags contains the global command line flags
type CLIFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool

	// Overrides applied on top of the configuration file
	Provider    string
	StoreType   string
	RuleSetPath string
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	cfg, err := config.New(flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, flags)

	var logger *zap.Logger
	if flags.Verbose || flags.JSONLog {
		logger, err = logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	} else {
		logger, err = logging.InitLogger(cfg)
	}
	if err != nil {
		return nil, err
	}

	if used := cfg.GetViper().ConfigFileUsed(); used != "" {
		logger.Debug("Loaded configuration from file", zap.String("file", used))
	}

	return Build(cfg, logger)
}

// applyFlags copies explicitly set flags over the loaded configuration
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Provider != "" {
		cfg.Set("llm.provider", flags.Provider)
	}
	if flags.StoreType != "" {
		cfg.Set("store.type", flags.StoreType)
	}
	if flags.RuleSetPath != "" {
		cfg.Set("ruleset.type", "file")
		cfg.Set("ruleset.path", flags.RuleSetPath)
	}
}
