package ruleset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// FileRepository keeps the rule-set as a JSON document on disk
type FileRepository struct {
	path   string
	logger *zap.Logger
}

// NewFileRepository creates a repository backed by path
func NewFileRepository(path string, logger *zap.Logger) *FileRepository {
	return &FileRepository{path: path, logger: logger}
}

// Load reads the rule-set; a missing file is core.ErrRuleSetNotFound
func (r *FileRepository) Load(ctx context.Context) (core.RuleSet, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrRuleSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule-set: %w", err)
	}
	return decodeRuleSet(data)
}

// Save replaces the rule-set file atomically
func (r *FileRepository) Save(ctx context.Context, rs core.RuleSet) error {
	if rs == nil {
		rs = core.RuleSet{}
	}
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rule-set: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create rule-set directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ruleset-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary rule-set: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rule-set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write rule-set: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace rule-set: %w", err)
	}

	r.logger.Debug("Saved rule-set", zap.String("path", r.path), zap.Int("entries", len(rs)))
	return nil
}
