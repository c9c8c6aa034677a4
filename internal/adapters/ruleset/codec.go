package ruleset

import (
	"encoding/json"
	"fmt"

	"github.com/mikey/llm-mail-sorter/internal/core"
)

// decodeEntry reads one rule-set value. Older rule-sets stored a bare category
// string per sender; those entries come back as Manual_Migrated.
func decodeEntry(raw []byte) (*core.RuleSetEntry, error) {
	var category string
	if err := json.Unmarshal(raw, &category); err == nil {
		return &core.RuleSetEntry{
			Category: category,
			Source:   core.SourceManualMigrated,
		}, nil
	}

	var entry core.RuleSetEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	if entry.Source == "" {
		entry.Source = core.SourceManualMigrated
	}
	return &entry, nil
}

func decodeRuleSet(data []byte) (core.RuleSet, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rule-set: %w", err)
	}
	rs := make(core.RuleSet, len(raw))
	for sender, value := range raw {
		entry, err := decodeEntry(value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rule-set entry for %s: %w", sender, err)
		}
		rs[sender] = entry
	}
	return rs, nil
}
