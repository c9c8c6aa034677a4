package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

var (
	wrapperKeys   = []string{"results", "classifications", "items", "data", "patterns", "rules"}
	idKeys        = []string{"sender", "id", "email", "address"}
	categoryKeys  = []string{"category", "label"}
	rationaleKeys = []string{"rationale", "reasoning", "reason", "explanation"}
)

// NormalizeVerdicts coalesces the oracle's classification response into id -> verdict.
// Accepted shapes:
//
//	{"a@x.com": {"category": "Finance", "rationale": "..."}}   (or "a@x.com": "Finance")
//	[{"a@x.com": {...}}, {"b@y.com": "Dev_Tech"}]
//	[{"sender": "a@x.com", "category": "Finance", "rationale": "..."}]
//
// optionally wrapped as {"results": [...]}. Items that fit none of them are dropped.
// Only a response that is not JSON at all is an error.
func NormalizeVerdicts(raw []byte) (map[string]Verdict, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid oracle response: %w", err)
	}
	out := make(map[string]Verdict)
	collectVerdicts(unwrap(doc), out)
	return out, nil
}

func collectVerdicts(doc any, out map[string]Verdict) {
	switch v := doc.(type) {
	case map[string]any:
		if id, ok := embeddedID(v); ok {
			addVerdict(out, id, v)
			return
		}
		for id, val := range v {
			addVerdict(out, id, val)
		}
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if id, ok := embeddedID(obj); ok {
				addVerdict(out, id, obj)
				continue
			}
			if len(obj) == 1 {
				for id, val := range obj {
					addVerdict(out, id, val)
				}
			}
		}
	}
}

func addVerdict(out map[string]Verdict, id string, val any) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if _, exists := out[id]; exists {
		return
	}
	if v, ok := verdictFrom(val); ok {
		out[id] = v
	}
}

func verdictFrom(val any) (Verdict, bool) {
	switch v := val.(type) {
	case string:
		c := strings.TrimSpace(v)
		return Verdict{Category: c}, c != ""
	case map[string]any:
		c := firstString(v, categoryKeys)
		if c == "" {
			return Verdict{}, false
		}
		return Verdict{Category: c, Rationale: firstString(v, rationaleKeys)}, true
	}
	return Verdict{}, false
}

// NormalizeProposals coalesces the oracle's pattern proposals into pattern -> category.
// Accepted shapes are {"pattern": "Category"}, {"Category": ["p1", "p2"]},
// [{"pattern": "p", "category": "C"}] and [{"p": "C"}], optionally wrapped.
func NormalizeProposals(raw []byte) (map[string]string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid oracle response: %w", err)
	}
	out := make(map[string]string)
	switch v := unwrap(doc).(type) {
	case map[string]any:
		for key, val := range v {
			switch inner := val.(type) {
			case string:
				addProposal(out, key, inner)
			case []any:
				for _, p := range inner {
					if s, ok := p.(string); ok {
						addProposal(out, s, key)
					}
				}
			}
		}
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if p, ok := obj["pattern"].(string); ok {
				addProposal(out, p, firstString(obj, categoryKeys))
				continue
			}
			if len(obj) == 1 {
				for p, c := range obj {
					if s, ok := c.(string); ok {
						addProposal(out, p, s)
					}
				}
			}
		}
	}
	return out, nil
}

func addProposal(out map[string]string, pattern, category string) {
	pattern = strings.TrimSpace(pattern)
	category = strings.TrimSpace(category)
	if pattern == "" || category == "" {
		return
	}
	if _, exists := out[pattern]; !exists {
		out[pattern] = category
	}
}

// unwrap strips a single-key envelope such as {"results": [...]}
func unwrap(doc any) any {
	obj, ok := doc.(map[string]any)
	if !ok || len(obj) != 1 {
		return doc
	}
	for _, key := range wrapperKeys {
		if inner, ok := obj[key]; ok {
			switch inner.(type) {
			case []any, map[string]any:
				return inner
			}
		}
	}
	return doc
}

func embeddedID(obj map[string]any) (string, bool) {
	if firstString(obj, categoryKeys) == "" {
		return "", false
	}
	id := firstString(obj, idKeys)
	return id, id != ""
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
