package store

import (
	"errors"

	"github.com/mikey/llm-mail-sorter/internal/core"
)

// ErrRecordNotFound is returned when a record id is unknown
var ErrRecordNotFound = errors.New("record not found")

// Store is a record store that also keeps learned rules
type Store interface {
	core.RecordStore
	core.LearnedRuleStore
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
