package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/adapters/store"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/factory"
	"github.com/mikey/llm-mail-sorter/internal/logging"
	"github.com/mikey/llm-mail-sorter/internal/metrics"
	"github.com/mikey/llm-mail-sorter/internal/ports"
	"github.com/mikey/llm-mail-sorter/internal/utils"
)

// BuildContainer creates a container from the default configuration search path
func BuildContainer() (*dig.Container, error) {
	cfg, err := config.New("")
	if err != nil {
		return nil, err
	}
	logger, err := logging.InitLogger(cfg)
	if err != nil {
		return nil, err
	}
	return Build(cfg, logger)
}

// Build registers every component on top of an already loaded configuration and logger.
// Providers run lazily, so commands that never reach the oracle need no LLM credentials.
func Build(cfg *config.Config, logger *zap.Logger) (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		func() *zap.Logger { return logger },
		func() core.Clock { return core.SystemClock{} },
		utils.NewTextProcessor,

		// Register factories
		factory.NewLLMFactory,
		factory.NewStoreFactory,
		factory.NewRuleSetFactory,
		factory.NewIngestFactory,
		factory.NewClassifierFactory,

		// Register storage
		func(f *factory.StoreFactory) (store.Store, error) {
			return f.CreateStore()
		},
		func(s store.Store) core.RecordStore { return s },
		func(s store.Store) core.LearnedRuleStore { return s },
		func(f *factory.RuleSetFactory) (core.RuleSetRepository, error) {
			return f.CreateRepository()
		},

		// Register observers
		func() *prometheus.Registry {
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			return reg
		},
		func(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) },
		logging.NewPassLogger,
		func(p *logging.PassLogger, m *metrics.Metrics) core.Observer {
			return core.Observers{p, m}
		},

		// Register oracle
		func(f *factory.LLMFactory) (ports.Completer, error) {
			return f.CreateCompleter()
		},
		func(f *factory.ClassifierFactory) (*core.RuleTable, error) {
			return f.CreateRuleTable()
		},
		func(f *factory.ClassifierFactory) core.Pacer {
			return f.CreatePacer()
		},
		func(
			f *factory.ClassifierFactory,
			lf *factory.LLMFactory,
			completer ports.Completer,
			table *core.RuleTable,
			text *utils.TextProcessor,
		) core.Oracle {
			return f.CreateOracle(completer, table, text, lf.MaxContextSize())
		},
		func(f *factory.ClassifierFactory, o core.Oracle, pacer core.Pacer, observer core.Observer) *core.Batcher {
			return f.CreateBatcher(o, pacer, observer)
		},

		// Register services
		func(
			f *factory.ClassifierFactory,
			records core.RecordStore,
			rules core.LearnedRuleStore,
			o core.Oracle,
			pacer core.Pacer,
			table *core.RuleTable,
			logger *zap.Logger,
		) *core.Synthesizer {
			return core.NewSynthesizer(records, rules, o, pacer, table, f.SynthesisConfig(), logger)
		},
		func(
			f *factory.ClassifierFactory,
			records core.RecordStore,
			rules core.LearnedRuleStore,
			repo core.RuleSetRepository,
			table *core.RuleTable,
			batcher *core.Batcher,
			synthesizer *core.Synthesizer,
			clock core.Clock,
			logger *zap.Logger,
			observer core.Observer,
		) (*core.ClassificationService, error) {
			return core.NewClassificationService(records, rules, repo, table, batcher, synthesizer,
				clock, f.ServiceConfig(), logger, observer)
		},
		func(
			f *factory.ClassifierFactory,
			records core.RecordStore,
			repo core.RuleSetRepository,
			logger *zap.Logger,
			observer core.Observer,
		) *core.RuleApplier {
			return core.NewRuleApplier(records, repo, f.LifecyclePolicy(), logger, observer)
		},
		core.NewCorrections,

		// Register ingest
		func(f *factory.IngestFactory) ports.Ingestor {
			return f.CreateIngestor()
		},
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return nil, err
		}
	}

	return container, nil
}
