package factory

import (
	"fmt"

	"github.com/mikey/llm-mail-sorter/internal/adapters/ruleset"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// RuleSetFactory creates rule-set repositories based on configuration
type RuleSetFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRuleSetFactory creates a new rule-set factory
func NewRuleSetFactory(cfg *config.Config, logger *zap.Logger) *RuleSetFactory {
	return &RuleSetFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRepository creates a rule-set repository based on the configuration
func (f *RuleSetFactory) CreateRepository() (core.RuleSetRepository, error) {
	rsCfg := f.cfg.GetRuleSet()

	switch rsCfg.Type {
	case "file":
		return ruleset.NewFileRepository(rsCfg.Path, f.logger), nil
	case "redis":
		return ruleset.NewRedisRepository(rsCfg.RedisAddr, rsCfg.RedisPassword, rsCfg.RedisDB, rsCfg.RedisKey, f.logger)
	default:
		return nil, fmt.Errorf("unsupported rule-set type: %s", rsCfg.Type)
	}
}
