package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/ports"
	"github.com/mikey/llm-mail-sorter/internal/utils"
	"go.uber.org/zap"
)

const classifySystem = "You are an email triage assistant. You sort senders into a fixed set of folders. Respond only with JSON."

const classifyFormat = `Assign each sender below to exactly one of these categories:
%s
Use the sender address and the recent subjects. If none fits, use "Unclassified".

Senders (JSON):
%s

Respond with a JSON object mapping every sender address to an object with:
- category: one of the category names above
- rationale: one short sentence explaining the choice

Respond only with the JSON object and nothing else.`

const proposeSystem = "You write precise regular expressions for email routing rules. Respond only with JSON."

const proposeFormat = `A user manually filed the messages below. Propose general, case-insensitive regular
expressions that route similar future mail to the same category. Each expression is matched against
"<sender> <subject> <subject> ...". Prefer sender domains and distinctive subject wording.
Every expression must match the positive examples of its category and none of the negative examples.
Lookaround and \b word boundaries are supported.

Categories:
%s

Positive examples (JSON):
%s

Negative examples (JSON):
%s

Respond with a JSON object mapping each regular expression to its category name.
Respond only with the JSON object and nothing else.`

// LLMOracle implements core.Oracle on top of a language model completer
type LLMOracle struct {
	completer      ports.Completer
	table          *core.RuleTable
	text           *utils.TextProcessor
	maxContextSize int
	logger         *zap.Logger
}

// NewLLMOracle creates a new LLM-backed oracle
func NewLLMOracle(
	completer ports.Completer,
	table *core.RuleTable,
	text *utils.TextProcessor,
	maxContextSize int,
	logger *zap.Logger,
) *LLMOracle {
	return &LLMOracle{
		completer:      completer,
		table:          table,
		text:           text,
		maxContextSize: maxContextSize,
		logger:         logger,
	}
}

type promptItem struct {
	Sender   string `json:"sender"`
	Subjects string `json:"subjects"`
}

type promptExample struct {
	Sender   string `json:"sender"`
	Subject  string `json:"subject"`
	Category string `json:"category"`
}

// ClassifyBatch asks the model to categorize every item in one request
func (o *LLMOracle) ClassifyBatch(ctx context.Context, items []core.BatchItem) (map[string]core.Verdict, error) {
	batch := make([]promptItem, len(items))
	for i, it := range items {
		batch[i] = promptItem{
			Sender:   it.ID,
			Subjects: o.text.ProcessText(it.Context, o.maxContextSize),
		}
	}
	payload, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	prompt := fmt.Sprintf(classifyFormat, o.categoryList(), payload)
	reply, err := o.complete(ctx, classifySystem, prompt)
	if err != nil {
		return nil, err
	}
	return core.NormalizeVerdicts(reply)
}

// ProposePatterns asks the model for rules generalizing the positive examples
func (o *LLMOracle) ProposePatterns(ctx context.Context, positives, negatives []core.Example) (map[string]string, error) {
	pos, err := json.MarshalIndent(o.examples(positives), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode examples: %w", err)
	}
	neg, err := json.MarshalIndent(o.examples(negatives), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode examples: %w", err)
	}

	prompt := fmt.Sprintf(proposeFormat, o.categoryList(), pos, neg)
	reply, err := o.complete(ctx, proposeSystem, prompt)
	if err != nil {
		return nil, err
	}
	return core.NormalizeProposals(reply)
}

func (o *LLMOracle) complete(ctx context.Context, system, prompt string) ([]byte, error) {
	reply, err := o.completer.Complete(ctx, ports.CompletionRequest{
		System: system,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.completer.Name(), err)
	}

	doc, err := extractJSON(reply)
	if err != nil {
		o.logger.Debug("Unparseable model reply",
			zap.String("model", o.completer.Name()),
			zap.String("reply", o.text.TruncateText(reply, 500)))
		return nil, err
	}
	return doc, nil
}

func (o *LLMOracle) categoryList() string {
	var b strings.Builder
	for _, c := range o.table.Categories {
		b.WriteString("- ")
		b.WriteString(c.Name)
		if c.Description != "" {
			b.WriteString(": ")
			b.WriteString(c.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (o *LLMOracle) examples(in []core.Example) []promptExample {
	out := make([]promptExample, len(in))
	for i, e := range in {
		out[i] = promptExample{
			Sender:   e.Sender,
			Subject:  o.text.ProcessText(e.Subject, o.maxContextSize),
			Category: e.Category,
		}
	}
	return out
}

// extractJSON finds the JSON document in a model reply that may carry prose or code fences
func extractJSON(reply string) ([]byte, error) {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, fmt.Errorf("no JSON found in model reply")
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return nil, fmt.Errorf("no JSON found in model reply")
	}

	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("malformed JSON in model reply")
	}
	return candidate, nil
}
