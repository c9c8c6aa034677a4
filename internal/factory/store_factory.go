package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/llm-mail-sorter/internal/adapters/store"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates record and learned rule stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	clock  core.Clock
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, clock core.Clock, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// CreateStore creates a store based on the configuration
func (f *StoreFactory) CreateStore() (store.Store, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		f.logger.Warn("Using in-memory store; records are lost on exit")
		return store.NewMemoryStore(f.clock, f.logger), nil
	case "sqlite":
		if storeCfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		return store.NewSQLiteStore(storeCfg.SQLitePath, f.clock, f.logger)
	case "mysql":
		return store.NewMySQLStore(storeCfg.MySQLDSN, f.clock, f.logger)
	case "postgres":
		return store.NewPostgresStore(storeCfg.PostgresDSN, f.clock, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}
