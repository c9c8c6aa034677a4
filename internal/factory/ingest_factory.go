package factory

import (
	"github.com/mikey/llm-mail-sorter/internal/adapters/ingest"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/ports"
	"github.com/mikey/llm-mail-sorter/internal/utils"
	"go.uber.org/zap"
)

// IngestFactory creates mail ingestors based on configuration
type IngestFactory struct {
	cfg     *config.Config
	records core.RecordStore
	text    *utils.TextProcessor
	clock   core.Clock
	logger  *zap.Logger
}

// NewIngestFactory creates a new ingest factory
func NewIngestFactory(
	cfg *config.Config,
	records core.RecordStore,
	text *utils.TextProcessor,
	clock core.Clock,
	logger *zap.Logger,
) *IngestFactory {
	return &IngestFactory{
		cfg:     cfg,
		records: records,
		text:    text,
		clock:   clock,
		logger:  logger,
	}
}

// CreateIngestor creates the SMTP ingestor
func (f *IngestFactory) CreateIngestor() ports.Ingestor {
	ingestCfg := f.cfg.GetIngest()
	return ingest.NewSMTPIngestor(
		f.records,
		f.text,
		f.clock,
		ingestCfg.ListenAddress,
		ingestCfg.Domain,
		ingestCfg.LocalDomains,
		ingestCfg.SnippetSize,
		ingestCfg.MaxMessageBytes,
		f.logger,
	)
}
